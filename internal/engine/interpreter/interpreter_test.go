package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

func newTestModule(store *wasm.Store) *wasm.ModuleInstance {
	return &wasm.ModuleInstance{Store: store, Exports: map[string]wasm.Export{}}
}

func newWasmFunc(mi *wasm.ModuleInstance, params, results []api.ValueType, locals []api.ValueType, maxStack int, body []wasm.Instruction) *wasm.FunctionInstance {
	fn := &wasm.FunctionInstance{
		Type:           &wasm.FuncType{Params: params, Results: results},
		Module:         mi,
		Body:           body,
		LocalTypes:     locals,
		MaxStackHeight: maxStack,
		DebugName:      "test.f",
	}
	return fn
}

func i32c(v int32) wasm.Instruction { return wasm.Instruction{Opcode: wasm.OpcodeI32Const, ConstI64: int64(v)} }

func TestEngine_Call_Arithmetic(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(2),
		i32c(3),
		{Opcode: wasm.OpcodeI32Add},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

func TestEngine_Call_LocalsAndParams(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	// (x, y) => (x - y) * 2, using local 2 as scratch.
	fn := newWasmFunc(mi, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeI32}, 4, []wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
			{Opcode: wasm.OpcodeLocalGet, LocalIndex: 1},
			{Opcode: wasm.OpcodeI32Sub},
			{Opcode: wasm.OpcodeLocalSet, LocalIndex: 2},
			{Opcode: wasm.OpcodeLocalGet, LocalIndex: 2},
			i32c(2),
			{Opcode: wasm.OpcodeI32Mul},
		})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, []uint64{uint64(uint32(10)), uint64(uint32(4))})
	require.NoError(t, err)
	require.Equal(t, []uint64{uint64(uint32(12))}, results)
}

func TestEngine_Call_DivideByZeroTraps(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(1),
		i32c(0),
		{Opcode: wasm.OpcodeI32DivS},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	require.Error(t, err)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeIntegerDivideByZero, trap.Code)
}

func TestEngine_Call_UnreachableTraps(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := newWasmFunc(mi, nil, nil, nil, 0, []wasm.Instruction{{Opcode: wasm.OpcodeUnreachable}})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeUnreachable, trap.Code)
}

func TestEngine_Call_GlobalGetSet(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)
	g := &wasm.GlobalInstance{Type: wasm.GlobalType{ValType: api.ValueTypeI32, Mutable: true}, Value: 41}
	store.Globals = append(store.Globals, g)
	mi.GlobalAddrs = []uint32{0}

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		{Opcode: wasm.OpcodeGlobalGet, GlobalIndex: 0},
		i32c(1),
		{Opcode: wasm.OpcodeI32Add},
		{Opcode: wasm.OpcodeGlobalSet, GlobalIndex: 0},
		{Opcode: wasm.OpcodeGlobalGet, GlobalIndex: 0},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
	require.Equal(t, uint64(42), g.Value)
}

// TestEngine_Call_LoopSumsDownToZero builds a block-wrapped loop summing a
// counter down to zero, exercising Br (continue) and BrIf (exit via the
// enclosing block) together.
func TestEngine_Call_LoopSumsDownToZero(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	body := []wasm.Instruction{
		/*0*/ {Opcode: wasm.OpcodeBlock, EndOffset: 15},
		/*1*/ {Opcode: wasm.OpcodeLoop, EndOffset: 14},
		/*2*/ {Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
		/*3*/ {Opcode: wasm.OpcodeI32Eqz},
		/*4*/ {Opcode: wasm.OpcodeBrIf, BrTarget: wasm.BrTableTarget{InstrIndex: 0}},
		/*5*/ {Opcode: wasm.OpcodeLocalGet, LocalIndex: 1},
		/*6*/ {Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
		/*7*/ {Opcode: wasm.OpcodeI32Add},
		/*8*/ {Opcode: wasm.OpcodeLocalSet, LocalIndex: 1},
		/*9*/ {Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
		/*10*/ i32c(1),
		/*11*/ {Opcode: wasm.OpcodeI32Sub},
		/*12*/ {Opcode: wasm.OpcodeLocalSet, LocalIndex: 0},
		/*13*/ {Opcode: wasm.OpcodeBr, BrTarget: wasm.BrTableTarget{InstrIndex: 1}},
		/*14*/ {Opcode: wasm.OpcodeEnd},
		/*15*/ {Opcode: wasm.OpcodeEnd},
		/*16*/ {Opcode: wasm.OpcodeLocalGet, LocalIndex: 1},
	}
	fn := newWasmFunc(mi, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32},
		[]api.ValueType{api.ValueTypeI32}, 4, body)

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, []uint64{4})
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, results)
}

// TestEngine_Call_BrTable exercises br_table's index-to-target dispatch
// (targets[0] is the default, used when idx+1 is out of range) by carrying
// a distinct constant across each of three branch targets, all landing at a
// shared block end.
func TestEngine_Call_BrTable(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))

	body := []wasm.Instruction{
		/*0*/ {Opcode: wasm.OpcodeBlock, EndOffset: 11}, // common end, reached via explicit Br below
		/*1*/ {Opcode: wasm.OpcodeBlock, EndOffset: 9}, // $default
		/*2*/ {Opcode: wasm.OpcodeBlock, EndOffset: 7}, // $case1
		/*3*/ {Opcode: wasm.OpcodeBlock, EndOffset: 5}, // $case0
		/*4*/ {Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
		/*5*/ {Opcode: wasm.OpcodeBrTable, BrTableTargets: []wasm.BrTableTarget{
			{InstrIndex: 1}, // default
			{InstrIndex: 3}, // case 0
			{InstrIndex: 2}, // case 1
		}},
		/*6*/ i32c(100), // case 0
		/*7*/ {Opcode: wasm.OpcodeBr, BrTarget: wasm.BrTableTarget{InstrIndex: 0, Arity: 1}},
		/*8*/ i32c(200), // case 1
		/*9*/ {Opcode: wasm.OpcodeBr, BrTarget: wasm.BrTableTarget{InstrIndex: 0, Arity: 1}},
		/*10*/ i32c(300), // default
		/*11*/ {Opcode: wasm.OpcodeEnd},
	}
	fn := newWasmFunc(mi, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, nil, 4, body)

	e := NewEngine(0)
	for idx, want := range map[uint64]uint64{0: 100, 1: 200, 2: 300} {
		results, err := e.Call(context.Background(), fn, []uint64{idx})
		require.NoError(t, err)
		require.Equal(t, []uint64{want}, results, "idx=%d", idx)
	}
}

func TestEngine_Call_DirectCall(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)

	callee := newWasmFunc(mi, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, nil, 2, []wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
		i32c(1),
		{Opcode: wasm.OpcodeI32Add},
	})
	store.Functions = append(store.Functions, callee)
	mi.FuncAddrs = []uint32{0}

	caller := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(41),
		{Opcode: wasm.OpcodeCall, FuncIndex: 0},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), caller, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestEngine_Call_CallIndirect(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)

	want := &wasm.FuncType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	callee := &wasm.FunctionInstance{
		Type:   want,
		Module: mi,
		Body: []wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, LocalIndex: 0},
			i32c(1),
			{Opcode: wasm.OpcodeI32Add},
		},
		MaxStackHeight: 2,
		DebugName:      "test.callee",
	}
	store.Functions = append(store.Functions, callee)
	table := &wasm.TableInstance{Type: api.ValueTypeFuncref, References: []uint64{1}} // func addr 0 + 1
	store.Tables = append(store.Tables, table)
	mi.TableAddrs = []uint32{0}
	mi.Module = &wasm.Module{Types: []wasm.FuncType{*want}}

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(41),
		i32c(0),
		{Opcode: wasm.OpcodeCallIndirect, TableIndex: 0, TypeIndex: 0},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestEngine_Call_CallIndirectTypeMismatchTraps(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)

	callee := &wasm.FunctionInstance{
		Type:   &wasm.FuncType{Params: []api.ValueType{api.ValueTypeI64}},
		Module: mi,
		Body:   []wasm.Instruction{{Opcode: wasm.OpcodeDrop}},
	}
	store.Functions = append(store.Functions, callee)
	store.Tables = append(store.Tables, &wasm.TableInstance{Type: api.ValueTypeFuncref, References: []uint64{1}})
	mi.TableAddrs = []uint32{0}
	mi.Module = &wasm.Module{Types: []wasm.FuncType{{Params: []api.ValueType{api.ValueTypeI32}}}}

	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		i32c(0),
		{Opcode: wasm.OpcodeCallIndirect, TableIndex: 0, TypeIndex: 0},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeIndirectCallTypeMismatch, trap.Code)
}

func TestEngine_Call_CallIndirectOutOfBoundsTraps(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)
	store.Tables = append(store.Tables, &wasm.TableInstance{Type: api.ValueTypeFuncref, References: []uint64{}})
	mi.TableAddrs = []uint32{0}
	mi.Module = &wasm.Module{Types: []wasm.FuncType{{}}}

	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		i32c(3),
		{Opcode: wasm.OpcodeCallIndirect, TableIndex: 0, TypeIndex: 0},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeOutOfBoundsTableAccess, trap.Code)
}

func TestEngine_Call_StackExhaustionTraps(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)

	var recursive *wasm.FunctionInstance
	recursive = newWasmFunc(mi, nil, nil, nil, 1, []wasm.Instruction{{Opcode: wasm.OpcodeCall, FuncIndex: 0}})
	store.Functions = append(store.Functions, recursive)
	mi.FuncAddrs = []uint32{0}
	_ = recursive

	e := NewEngine(5)
	_, err := e.Call(context.Background(), recursive, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeCallStackExhausted, trap.Code)
}

func TestEngine_Call_HostFunction(t *testing.T) {
	mi := newTestModule(wasm.NewStore(wasm.DefaultFeatures()))
	fn := &wasm.FunctionInstance{
		Type:   &wasm.FuncType{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		Module: mi,
		GoFunc: func(ctx context.Context, cc wasm.CallContext, params []uint64) ([]uint64, error) {
			return []uint64{params[0] * 2}, nil
		},
		DebugName: "env.double",
	}

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, []uint64{21})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}
