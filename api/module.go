package api

import (
	"context"
	"fmt"
	"reflect"
)

// Module returns functions exported in a module, post-instantiation.
//
// # Notes
//
//   - Closing the tinywasm.Runtime closes any Module it instantiated.
//   - This is an interface for decoupling, not third-party implementations.
//     All implementations live in this module.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type Module interface {
	fmt.Stringer

	// Name is the name this module was instantiated with. Exported
	// functions can be imported with this name.
	Name() string

	// Memory returns a memory defined in this module or nil if there was
	// none.
	Memory() Memory

	// ExportedFunction returns a function exported from this module or
	// nil if it wasn't.
	ExportedFunction(name string) Function

	// ExportedMemory returns a memory exported from this module or nil if
	// it wasn't.
	ExportedMemory(name string) Memory

	// ExportedGlobal returns a global exported from this module or nil if
	// it wasn't.
	ExportedGlobal(name string) Global

	// CloseWithExitCode releases resources allocated for this Module. Use
	// a non-zero exitCode parameter to indicate a failure to
	// ExportedFunction callers. When the context is nil, it defaults to
	// context.Background.
	//
	// The error returned here, if present, is about resource
	// de-allocation (such as I/O errors). Only the last error is
	// returned, so a non-nil return means at least one error happened.
	// Regardless of error, this module instance will be removed, making
	// its name available again.
	CloseWithExitCode(ctx context.Context, exitCode uint32) error

	// Closer closes this module by delegating to CloseWithExitCode with
	// an exit code of zero.
	Closer
}

// Closer closes a resource.
type Closer interface {
	// Close closes the resource. When the context is nil, it defaults to
	// context.Background.
	Close(context.Context) error
}

// FunctionDefinition is a WebAssembly function exported or imported by a
// module (tinywasm.CompiledModule).
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#exports%E2%91%A0
type FunctionDefinition interface {
	// ModuleName is the possibly empty name of the module defining this
	// function.
	ModuleName() string

	// Index is the position in the module's function index namespace,
	// imports first.
	Index() uint32

	// Name is the module-defined name of the function, which is not
	// necessarily the same as its export name.
	Name() string

	// DebugName identifies this function based on its Index or Name in
	// the module. This is used for errors and stack traces. Ex.
	// "env.abort".
	//
	// When the function name is empty, a substitute name is generated by
	// prefixing '$' to its position in the index namespace. Ex ".$0" is
	// the first function (possibly imported) in an unnamed module.
	DebugName() string

	// Import returns true with the module and function name when this
	// function is imported. Otherwise, it returns false.
	Import() (moduleName, name string, isImport bool)

	// ExportNames include all exported names for the given function.
	ExportNames() []string

	// GoFunc returns nil for every function, including one implemented by
	// the embedder instead of a Wasm binary: the reflected Go function
	// behind a host function is not exposed. A host function sees the
	// memory of the module that defines it, not the caller's.
	GoFunc() *reflect.Value

	// ParamTypes are the possibly empty sequence of value types accepted
	// by a function with this signature.
	ParamTypes() []ValueType

	// ResultTypes are the results of the function.
	//
	// Note: WebAssembly 1.0 with the multi-value extension permits more
	// than one result.
	ResultTypes() []ValueType
}

// Function is a WebAssembly function exported from an instantiated module.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#syntax-func
type Function interface {
	// Definition is metadata about this function from its defining
	// module.
	Definition() FunctionDefinition

	// Call invokes the function with parameters encoded according to
	// ParamTypes. Results are encoded according to ResultTypes. An error
	// is returned for any failure looking up or invoking the function,
	// including a trap raised during execution. When the context is nil,
	// it defaults to context.Background.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Global is a WebAssembly 1.0 (20191205) global exported from an
// instantiated module.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#globals%E2%91%A0
type Global interface {
	fmt.Stringer

	// Type describes the numeric type of the global.
	Type() ValueType

	// Get returns the last known value of this global.
	Get() uint64
}

// MutableGlobal is a Global whose value can be updated at runtime
// (variable).
type MutableGlobal interface {
	Global

	// Set updates the value of this global.
	Set(v uint64)
}

// Memory allows restricted access to a module's linear memory. Notably, this
// does not allow growing.
//
// # Notes
//
//   - All functions accept a context.Context, which when nil, defaults to
//     context.Background.
//   - This includes all value types available in WebAssembly 1.0
//     (20191205) and all are encoded little-endian.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#storage%E2%91%A0
type Memory interface {
	// Size returns the size in bytes available. Ex. If the underlying
	// memory has 1 page: 65536
	Size() uint32

	// Grow increases memory by the delta in pages (65536 bytes per
	// page). The return value is the previous memory size in pages, or
	// false if the delta was ignored as it exceeds the max memory.
	Grow(deltaPages uint32) (previousPages uint32, ok bool)

	// ReadByte reads a single byte from the underlying buffer at the
	// offset or returns false if out of range.
	ReadByte(offset uint32) (byte, bool)

	// ReadUint16Le reads a uint16 in little-endian encoding from the
	// underlying buffer at the offset or returns false if out of range.
	ReadUint16Le(offset uint32) (uint16, bool)

	// ReadUint32Le reads a uint32 in little-endian encoding from the
	// underlying buffer at the offset or returns false if out of range.
	ReadUint32Le(offset uint32) (uint32, bool)

	// ReadFloat32Le reads a float32 from 32 IEEE 754 little-endian
	// encoded bits in the underlying buffer at the offset or returns
	// false if out of range.
	ReadFloat32Le(offset uint32) (float32, bool)

	// ReadUint64Le reads a uint64 in little-endian encoding from the
	// underlying buffer at the offset or returns false if out of range.
	ReadUint64Le(offset uint32) (uint64, bool)

	// ReadFloat64Le reads a float64 from 64 IEEE 754 little-endian
	// encoded bits in the underlying buffer at the offset or returns
	// false if out of range.
	ReadFloat64Le(offset uint32) (float64, bool)

	// Read reads byteCount bytes from the underlying buffer at the
	// offset or returns false if out of range.
	//
	// This returns a view of the underlying memory, not a copy. Writes to
	// the returned slice are visible to Wasm, and vice versa.
	Read(offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte to the underlying buffer at the
	// offset or returns false if out of range.
	WriteByte(offset uint32, v byte) bool

	// WriteUint16Le writes the value in little-endian encoding to the
	// underlying buffer at the offset or returns false if out of range.
	WriteUint16Le(offset uint32, v uint16) bool

	// WriteUint32Le writes the value in little-endian encoding to the
	// underlying buffer at the offset or returns false if out of range.
	WriteUint32Le(offset, v uint32) bool

	// WriteFloat32Le writes the value in 32 IEEE 754 little-endian
	// encoded bits to the underlying buffer at the offset or returns
	// false if out of range.
	WriteFloat32Le(offset uint32, v float32) bool

	// WriteUint64Le writes the value in little-endian encoding to the
	// underlying buffer at the offset or returns false if out of range.
	WriteUint64Le(offset uint32, v uint64) bool

	// WriteFloat64Le writes the value in 64 IEEE 754 little-endian
	// encoded bits to the underlying buffer at the offset or returns
	// false if out of range.
	WriteFloat64Le(offset uint32, v float64) bool

	// Write writes the slice to the underlying buffer at the offset or
	// returns false if out of range.
	Write(offset uint32, v []byte) bool
}
