package wasm

import (
	"context"

	"github.com/tinygo-wasm/tinywasm/internal/close"
)

// ModuleInstance is the per-instantiation address-translation layer §3
// describes: it owns no storage itself, instead mapping the module-local
// index spaces (function/table/memory/global) onto indices into its
// owning Store's flat arrays, so two instantiations of the same Module
// never alias each other's state.
type ModuleInstance struct {
	Name   string
	Module *Module
	Store  *Store

	FuncAddrs   []uint32
	TableAddrs  []uint32
	MemoryAddrs []uint32
	GlobalAddrs []uint32
	ElemAddrs   []uint32
	DataAddrs   []uint32

	Exports map[string]Export

	closed   bool
	exitCode uint32
}

// Function returns the FunctionInstance at module-local index idx.
func (mi *ModuleInstance) Function(idx uint32) *FunctionInstance {
	return mi.Store.Functions[mi.FuncAddrs[idx]]
}

// Table returns the TableInstance at module-local index idx.
func (mi *ModuleInstance) Table(idx uint32) *TableInstance {
	return mi.Store.Tables[mi.TableAddrs[idx]]
}

// Memory returns the MemoryInstance at module-local index idx. In this
// implementation idx is always 0: multiple memories are rejected at
// decode time.
func (mi *ModuleInstance) Memory(idx uint32) *MemoryInstance {
	if int(idx) >= len(mi.MemoryAddrs) {
		return nil
	}
	return mi.Store.Memories[mi.MemoryAddrs[idx]]
}

// Global returns the GlobalInstance at module-local index idx.
func (mi *ModuleInstance) Global(idx uint32) *GlobalInstance {
	return mi.Store.Globals[mi.GlobalAddrs[idx]]
}

// Element returns the ElementInstance at module-local element-segment
// index idx, or nil if the slot has no backing store entry. A declarative
// segment is stored as an already-dropped instance, not as nil.
func (mi *ModuleInstance) Element(idx uint32) *ElementInstance {
	addr := mi.ElemAddrs[idx]
	if addr == noAddr {
		return nil
	}
	return mi.Store.Elements[addr]
}

// Data returns the DataInstance at module-local data-segment index idx.
func (mi *ModuleInstance) Data(idx uint32) *DataInstance {
	addr := mi.DataAddrs[idx]
	if addr == noAddr {
		return nil
	}
	return mi.Store.Datas[addr]
}

// noAddr marks an index-space slot with no backing store entry.
const noAddr = ^uint32(0)

// ExportedFunctionIndex resolves an export name to a module-local function
// index, the form the engine needs to locate an entry point.
func (mi *ModuleInstance) ExportedFunctionIndex(name string) (uint32, bool) {
	e, ok := mi.Exports[name]
	if !ok || e.Type != 0x00 {
		return 0, false
	}
	return e.Index, true
}

// Close marks the module instance closed and records the exit code a host
// function's unwinding trap (if any) should report. Actual store resource
// reclamation is deferred to the owning Store; ModuleInstance.Close exists
// so an embedder can idempotently release a module without needing a
// handle on the Store itself.
func (mi *ModuleInstance) Close(ctx context.Context) error {
	return mi.CloseWithExitCode(ctx, 0)
}

func (mi *ModuleInstance) CloseWithExitCode(ctx context.Context, exitCode uint32) error {
	if mi.closed {
		return nil
	}
	mi.closed = true
	mi.exitCode = exitCode
	mi.Store.deleteModule(mi.Name)
	if n, ok := ctx.Value(close.NotificationKey{}).(close.Notification); ok {
		n.OnClose(ctx, exitCode)
	}
	return nil
}
