package wasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
)

func TestModuleInstance_Function(t *testing.T) {
	s := NewStore(DefaultFeatures())
	fi := &FunctionInstance{Type: &FuncType{}}
	s.Functions = append(s.Functions, fi)

	mi := &ModuleInstance{Store: s, FuncAddrs: []uint32{0}}
	require.Same(t, fi, mi.Function(0))
}

func TestModuleInstance_Memory(t *testing.T) {
	s := NewStore(DefaultFeatures())
	mem := &MemoryInstance{Data: make([]byte, PageSize), Min: 1, Max: 1}
	s.Memories = append(s.Memories, mem)

	mi := &ModuleInstance{Store: s, MemoryAddrs: []uint32{0}}
	require.Same(t, mem, mi.Memory(0))

	// No memory declared: index out of range returns nil rather than panicking.
	mi2 := &ModuleInstance{Store: s}
	require.Nil(t, mi2.Memory(0))
}

func TestModuleInstance_Element_noAddrIsNil(t *testing.T) {
	s := NewStore(DefaultFeatures())
	el := &ElementInstance{References: []uint64{1}}
	s.Elements = append(s.Elements, el)

	mi := &ModuleInstance{Store: s, ElemAddrs: []uint32{0, noAddr}}
	require.Same(t, el, mi.Element(0))
	require.Nil(t, mi.Element(1))
}

func TestModuleInstance_Data_droppedAddrIsNil(t *testing.T) {
	s := NewStore(DefaultFeatures())
	d := &DataInstance{Bytes: []byte{1, 2}}
	s.Datas = append(s.Datas, d)

	mi := &ModuleInstance{Store: s, DataAddrs: []uint32{0, noAddr}}
	require.Same(t, d, mi.Data(0))
	require.Nil(t, mi.Data(1))
}

func TestModuleInstance_ExportedFunctionIndex(t *testing.T) {
	mi := &ModuleInstance{Exports: map[string]Export{
		"add":  {Name: "add", Type: api.ExternTypeFunc, Index: 3},
		"mem0": {Name: "mem0", Type: api.ExternTypeMemory, Index: 0},
	}}

	idx, ok := mi.ExportedFunctionIndex("add")
	require.True(t, ok)
	require.Equal(t, uint32(3), idx)

	_, ok = mi.ExportedFunctionIndex("mem0")
	require.False(t, ok, "a memory export is not a function export")

	_, ok = mi.ExportedFunctionIndex("missing")
	require.False(t, ok)
}

func TestModuleInstance_Close(t *testing.T) {
	s := NewStore(DefaultFeatures())
	mi := &ModuleInstance{Name: "m", Store: s, Exports: map[string]Export{}}
	require.NoError(t, s.registerModule(mi))

	require.NoError(t, mi.Close(context.Background()))
	require.True(t, mi.closed)
	require.Equal(t, uint32(0), mi.exitCode)

	_, ok := s.Module("m")
	require.False(t, ok, "closing deregisters the module name")

	// Idempotent: closing again is a no-op, not an error.
	require.NoError(t, mi.Close(context.Background()))
}

func TestModuleInstance_CloseWithExitCode(t *testing.T) {
	s := NewStore(DefaultFeatures())
	mi := &ModuleInstance{Name: "m", Store: s, Exports: map[string]Export{}}
	require.NoError(t, s.registerModule(mi))

	require.NoError(t, mi.CloseWithExitCode(context.Background(), 42))
	require.Equal(t, uint32(42), mi.exitCode)

	// A later plain Close after CloseWithExitCode must not reset the code.
	require.NoError(t, mi.Close(context.Background()))
	require.Equal(t, uint32(42), mi.exitCode)
}
