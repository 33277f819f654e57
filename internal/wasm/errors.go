package wasm

import "fmt"

// DecodeError groups the parse/decode failures of §7: malformed binary
// encoding, unsupported preamble version, out-of-order or duplicate
// sections, and invalid UTF-8 names.
type DecodeError struct {
	// Offset is the byte offset into the module where decoding failed,
	// or -1 if not applicable.
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed module at offset %#x: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("malformed module: %s", e.Reason)
}

func newDecodeError(offset int, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError is raised when a structurally well-formed module fails
// the operand-stack type-checking pass of §4.2.
type ValidationError struct {
	Offset int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid module at offset %#x: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("invalid module: %s", e.Reason)
}

func newValidationError(offset int, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// ImportMismatchError is raised during instantiation when a host-supplied
// extern does not satisfy a declared import's type.
type ImportMismatchError struct {
	Module, Name string
	Reason       string
}

func (e *ImportMismatchError) Error() string {
	return fmt.Sprintf("import %s.%s: %s", e.Module, e.Name, e.Reason)
}

// InvalidInitializerError is raised when a constant initializer expression
// uses an instruction other than t.const, global.get of an imported
// immutable global, ref.null, or ref.func.
type InvalidInitializerError struct {
	Reason string
}

func (e *InvalidInitializerError) Error() string {
	return fmt.Sprintf("invalid constant initializer: %s", e.Reason)
}

// InstantiationTrapError wraps a runtime Trap raised while instantiating a
// module, either during an active segment copy or while running the start
// function. The failed instance is not registered in the store; the store
// entries it had allocated are left in place.
type InstantiationTrapError struct {
	Cause error
}

func (e *InstantiationTrapError) Error() string {
	return fmt.Sprintf("trap during instantiation: %s", e.Cause)
}

func (e *InstantiationTrapError) Unwrap() error { return e.Cause }

// UnsupportedError is raised for constructs the spec explicitly excludes:
// multi-memory, memory64, SIMD, threads, and similar 2.0+ features not
// among the "accepted 2.0 extensions" of §6.
type UnsupportedError struct {
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported: %s", e.Feature)
}
