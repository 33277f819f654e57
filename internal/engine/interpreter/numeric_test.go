package interpreter

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

func TestApplyNumeric_I32DivisionOverflowTraps(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		i32c(math.MinInt32),
		i32c(-1),
		{Opcode: wasm.OpcodeI32DivS},
	})

	_, err := NewEngine(0).Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeIntegerOverflow, trap.Code)
}

func TestApplyNumeric_I32RemSOverflowReturnsZero(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(math.MinInt32),
		i32c(-1),
		{Opcode: wasm.OpcodeI32RemS},
	})

	results, err := NewEngine(0).Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

func TestApplyNumeric_SignExtension(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(0xff),
		{Opcode: wasm.OpcodeI32Extend8S},
	})

	results, err := NewEngine(0).Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{uint64(0xffffffff)}, results)
}

func TestApplyNumeric_TruncF64ToI32Traps(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeF64Const, ConstF64Bits: math.Float64bits(1e20)},
		{Opcode: wasm.OpcodeI32TruncF64S},
	})

	_, err := NewEngine(0).Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeIntegerOverflow, trap.Code)
}

func TestApplyNumeric_TruncF64ToI32NaNTraps(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeF64Const, ConstF64Bits: math.Float64bits(math.NaN())},
		{Opcode: wasm.OpcodeI32TruncF64S},
	})

	_, err := NewEngine(0).Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeInvalidConversionToInteger, trap.Code)
}

func TestApplyMiscNumeric_SaturatingTruncSaturatesInsteadOfTrapping(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeF64Const, ConstF64Bits: math.Float64bits(1e20)},
		{Opcode: wasm.OpcodeMiscI32TruncSatF64S},
	})

	results, err := NewEngine(0).Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{uint64(uint32(math.MaxInt32))}, results)
}

func TestApplyMiscNumeric_SaturatingTruncNaNBecomesZero(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeF64Const, ConstF64Bits: math.Float64bits(math.NaN())},
		{Opcode: wasm.OpcodeMiscI32TruncSatF64U},
	})

	results, err := NewEngine(0).Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, results)
}

func TestApplyNumeric_FloatComparisons(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeF64Const, ConstF64Bits: math.Float64bits(1.5)},
		{Opcode: wasm.OpcodeF64Const, ConstF64Bits: math.Float64bits(2.5)},
		{Opcode: wasm.OpcodeF64Lt},
	})

	results, err := NewEngine(0).Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, results)
}

func TestApplyNumeric_I64DivideByZeroTraps(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeI64Const, ConstI64: 1},
		{Opcode: wasm.OpcodeI64Const, ConstI64: 0},
		{Opcode: wasm.OpcodeI64DivU},
	})

	_, err := NewEngine(0).Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeIntegerDivideByZero, trap.Code)
}
