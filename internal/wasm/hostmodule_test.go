package wasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
)

func TestInstantiateHostModule(t *testing.T) {
	s := NewStore(DefaultFeatures())

	var called bool
	funcs := []HostFuncExport{
		{
			Name: "add",
			Type: FuncType{Params: []ValType{ValTypeI32, ValTypeI32}, Results: []ValType{ValTypeI32}},
			Func: func(ctx context.Context, cc CallContext, params []uint64) ([]uint64, error) {
				called = true
				return []uint64{params[0] + params[1]}, nil
			},
		},
	}

	mi, err := InstantiateHostModule(s, "env", funcs, "mem", 1, 2)
	require.NoError(t, err)
	require.Equal(t, "env", mi.Name)

	idx, ok := mi.ExportedFunctionIndex("add")
	require.True(t, ok)
	fi := mi.Function(idx)
	require.Equal(t, "env.add", fi.DebugName)
	require.True(t, fi.IsHostFunction())

	results, err := fi.GoFunc(context.Background(), CallContext{Module: mi}, []uint64{1, 2})
	require.NoError(t, err)
	require.Equal(t, []uint64{3}, results)
	require.True(t, called)

	memExport, ok := mi.Exports["mem"]
	require.True(t, ok)
	require.Equal(t, api.ExternTypeMemory, memExport.Type)
	mem := mi.Memory(0)
	require.Equal(t, uint32(1), mem.Size())
	require.Equal(t, uint32(2), mem.Max)

	// Registered in the store so other modules can import from it.
	got, ok := s.Module("env")
	require.True(t, ok)
	require.Same(t, mi, got)
}

func TestInstantiateHostModule_debugNameDefaultsToName(t *testing.T) {
	s := NewStore(DefaultFeatures())
	funcs := []HostFuncExport{
		{Name: "f", Type: FuncType{}, Func: func(context.Context, CallContext, []uint64) ([]uint64, error) { return nil, nil }},
	}
	mi, err := InstantiateHostModule(s, "env", funcs, "", 0, 0)
	require.NoError(t, err)

	idx, _ := mi.ExportedFunctionIndex("f")
	require.Equal(t, "env.f", mi.Function(idx).DebugName)
}

func TestInstantiateHostModule_noMemory(t *testing.T) {
	s := NewStore(DefaultFeatures())
	mi, err := InstantiateHostModule(s, "env", nil, "", 0, 0)
	require.NoError(t, err)
	require.Nil(t, mi.Memory(0))
}

func TestInstantiateHostModule_duplicateNameFails(t *testing.T) {
	s := NewStore(DefaultFeatures())
	_, err := InstantiateHostModule(s, "env", nil, "", 0, 0)
	require.NoError(t, err)

	_, err = InstantiateHostModule(s, "env", nil, "", 0, 0)
	require.Error(t, err)
}
