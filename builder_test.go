package tinywasm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
)

func TestHostModuleBuilder_numericFunc(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx, nil)
	defer rt.Close(ctx)

	mod, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(x, y uint32) uint32 { return x + y }).
		Export("add").
		Instantiate(ctx)
	require.NoError(t, err)

	fn := mod.ExportedFunction("add")
	require.NotNil(t, fn)

	results, err := fn.Call(ctx, 3, 4)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}

func TestHostModuleBuilder_ctxAndErrorResult(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx, nil)
	defer rt.Close(ctx)

	sentinel := errors.New("boom")
	mod, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, x uint32) (uint32, error) {
			if x == 0 {
				return 0, sentinel
			}
			return x * 2, nil
		}).
		Export("double").
		Instantiate(ctx)
	require.NoError(t, err)

	fn := mod.ExportedFunction("double")
	results, err := fn.Call(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, results)

	_, err = fn.Call(ctx, 0)
	require.ErrorIs(t, err, sentinel)
}

func TestHostModuleBuilder_moduleParamReadsMemory(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx, nil)
	defer rt.Close(ctx)

	mod, err := rt.NewHostModuleBuilder("env").
		ExportMemory("mem", 1).
		NewFunctionBuilder().
		WithFunc(func(m api.Module, offset uint32) uint32 {
			v, _ := m.Memory().ReadUint32Le(offset)
			return v
		}).
		Export("peek").
		Instantiate(ctx)
	require.NoError(t, err)

	mem := mod.Memory()
	require.NotNil(t, mem)
	require.True(t, mem.WriteUint32Le(8, 0xCAFEBABE))

	fn := mod.ExportedFunction("peek")
	results, err := fn.Call(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, []uint64{0xCAFEBABE}, results)
}

func TestHostModuleBuilder_emptyExportName(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx, nil)
	defer rt.Close(ctx)

	b := rt.NewHostModuleBuilder("env")
	b.NewFunctionBuilder().WithFunc(func() {}).Export("f")
	b.NewFunctionBuilder().WithFunc(func() {}).Export("")

	_, err := b.Compile(ctx)
	require.Error(t, err)
}

func TestHostModuleBuilder_rejectsUnsupportedType(t *testing.T) {
	ctx := context.Background()
	rt := NewRuntime(ctx, nil)
	defer rt.Close(ctx)

	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(s string) {}).
		Export("f").
		Instantiate(ctx)
	require.Error(t, err)
}
