package wasm

import (
	"context"
	"fmt"
	"sync"
)

// Store is the process-wide runtime state §3 describes: flat, dense arrays
// of instances addressed by integer handle, shared by every module
// instantiated against it. A Store is owned by exactly one engine and is
// never accessed concurrently without external synchronization — see
// SPEC_FULL's concurrency section.
type Store struct {
	mu sync.Mutex

	Functions []*FunctionInstance
	Tables    []*TableInstance
	Memories  []*MemoryInstance
	Globals   []*GlobalInstance
	Elements  []*ElementInstance
	Datas     []*DataInstance

	modules map[string]*ModuleInstance

	// EnabledFeatures governs what CompileModule accepts, and is fixed at
	// Store creation to keep every instantiation against it consistent.
	EnabledFeatures Features

	// MemoryMaxPages becomes the Max of any memory whose module declares no
	// maximum of its own, bounding memory.grow; a memory's initial
	// allocation of Min pages is not checked against it. Defaults to the
	// full 65536-page address space; an embedder lowers this via
	// RuntimeConfig.WithMemoryMaxPages.
	MemoryMaxPages uint32
}

// DefaultMemoryMaxPages is the page ceiling (4GiB of linear memory) a Store
// applies to a no-max memory when nothing narrower has been configured.
const DefaultMemoryMaxPages = 65536

// NewStore constructs an empty Store.
func NewStore(features Features) *Store {
	return &Store{
		modules:         map[string]*ModuleInstance{},
		EnabledFeatures: features,
		MemoryMaxPages:  DefaultMemoryMaxPages,
	}
}

// FunctionInstance is either a module-defined (Wasm) function, in which
// case Module/Body/Type point at its owning instance and decoded code, or a
// host function, in which case GoFunc is the callback the engine invokes
// directly instead of interpreting a Body.
type FunctionInstance struct {
	Type *FuncType

	// Module-defined function fields. Body is nil for a host function.
	Module *ModuleInstance
	Body   []Instruction
	LocalTypes []ValType
	MaxStackHeight int

	// Host function fields. GoFunc is non-nil exactly when this instance
	// represents a host import rather than Wasm-defined code.
	GoFunc HostFunc

	// DebugName is used in traps and, where available, the function
	// listener; it is not part of the linking contract.
	DebugName string
}

// IsHostFunction reports whether this instance calls out to Go code rather
// than interpreting a Body.
func (f *FunctionInstance) IsHostFunction() bool { return f.GoFunc != nil }

// HostFunc is the calling convention §6/§9 defines for host functions: a
// typed argument vector in, a typed result vector or trap out. The slice
// lengths match f.Type.Params/Results; values are encoded per
// api.ValueType's Encode*/Decode* helpers. ctx is the context passed to the
// call that ultimately reached this import, propagated unchanged through
// any intervening Wasm call frames.
type HostFunc func(ctx context.Context, cc CallContext, params []uint64) ([]uint64, error)

// CallContext is the subset of a live call the host sees: the module that
// defines the host function and that module's memory 0 (host functions
// commonly need to read/write linear memory by pointer+length), not the
// calling module's.
type CallContext struct {
	Memory *MemoryInstance
	Module *ModuleInstance
}

// TableInstance is the runtime representation of a table: a slice of
// references, typed Funcref or Externref uniformly for the table's
// lifetime, plus its declared maximum.
type TableInstance struct {
	Type ValType
	Max  *uint32
	// References hold an opaque uint64: for Funcref, an index into
	// Store.Functions + 1 (0 means null); for Externref, the host value
	// encoded via api.EncodeExternref, with the low bit reserved... in
	// practice this store keeps it simple and treats 0 as null uniformly.
	References []uint64
}

// MemoryInstance is one linear memory: a contiguous, growable byte slice
// sized in 64KiB pages.
type MemoryInstance struct {
	Data []byte
	Min  uint32
	Max  uint32 // absolute cap in pages; Store.MemoryMaxPages when the module declares none.
}

// PageSize is the fixed linear memory page size, §3.
const PageSize = 65536

// Size returns the current size in pages.
func (m *MemoryInstance) Size() uint32 { return uint32(len(m.Data) / PageSize) }

// Grow attempts to grow the memory by delta pages, returning the previous
// size in pages, or false if growth would exceed Max.
func (m *MemoryInstance) Grow(delta uint32) (previousPages uint32, ok bool) {
	cur := m.Size()
	if delta == 0 {
		return cur, true
	}
	newSize := uint64(cur) + uint64(delta)
	if newSize > uint64(m.Max) {
		return 0, false
	}
	grown := make([]byte, newSize*PageSize)
	copy(grown, m.Data)
	m.Data = grown
	return cur, true
}

// GlobalInstance is one global variable's current value plus its type.
// Values are stored in the same uint64 encoding api.ValueType documents.
type GlobalInstance struct {
	Type  GlobalType
	Value uint64
}

// ElementInstance is a passive element segment's remaining contents: the
// slice it was decoded with, until elem.drop clears it to nil, making it
// "dropped". table.init copies from it and leaves it in place.
type ElementInstance struct {
	Type ValType
	// References mirrors TableInstance.References's encoding.
	References []uint64
}

// Dropped reports whether this segment has already been dropped.
func (e *ElementInstance) Dropped() bool { return e.References == nil }

// DataInstance is a passive data segment's remaining bytes, until
// data.drop clears it. memory.init copies from it and leaves it in place.
type DataInstance struct {
	Bytes []byte
}

// Dropped reports whether this segment has already been dropped.
func (d *DataInstance) Dropped() bool { return d.Bytes == nil }

// Module looks up a previously instantiated ModuleInstance by name.
func (s *Store) Module(name string) (*ModuleInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[name]
	return m, ok
}

func (s *Store) registerModule(mi *ModuleInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.modules[mi.Name]; exists {
		return fmt.Errorf("module %q already instantiated in this store", mi.Name)
	}
	s.modules[mi.Name] = mi
	return nil
}

// deleteModule removes a module's name registration, called when a
// ModuleInstance is closed. The instances it allocated in the store's
// slices are left in place (other instances may still reference them
// through imports); only the name becomes available for reuse.
func (s *Store) deleteModule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modules, name)
}

// CloseAllModules closes every module currently registered in the store,
// used by an embedder closing the whole Runtime at once. Only the last
// error, if any, is returned; every module is still attempted.
func (s *Store) CloseAllModules(ctx context.Context) error {
	s.mu.Lock()
	mods := make([]*ModuleInstance, 0, len(s.modules))
	for _, m := range s.modules {
		mods = append(mods, m)
	}
	s.mu.Unlock()

	var err error
	for _, m := range mods {
		if cerr := m.Close(ctx); cerr != nil {
			err = cerr
		}
	}
	return err
}
