package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

func newMemModule(store *wasm.Store, pages uint32, max uint32) (*wasm.ModuleInstance, *wasm.MemoryInstance) {
	mem := &wasm.MemoryInstance{Data: make([]byte, uint64(pages)*wasm.PageSize), Min: pages, Max: max}
	store.Memories = append(store.Memories, mem)
	mi := newTestModule(store)
	mi.MemoryAddrs = []uint32{uint32(len(store.Memories) - 1)}
	return mi, mem
}

func TestEngine_Call_MemoryStoreAndLoad(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, _ := newMemModule(store, 1, 1)

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(0),   // addr
		i32c(123), // value
		{Opcode: wasm.OpcodeI32Store},
		i32c(0),
		{Opcode: wasm.OpcodeI32Load},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{123}, results)
}

func TestEngine_Call_MemoryLoadOutOfBoundsTraps(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, _ := newMemModule(store, 1, 1)

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(int32(wasm.PageSize - 2)),
		{Opcode: wasm.OpcodeI32Load},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	trap, ok := err.(*api.Trap)
	require.True(t, ok)
	require.Equal(t, api.TrapCodeOutOfBoundsMemoryAccess, trap.Code)
}

func TestEngine_Call_MemoryGrow(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, mem := newMemModule(store, 1, 2)

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(1),
		{Opcode: wasm.OpcodeMemoryGrow},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, results, "returns the previous size in pages")
	require.Equal(t, uint32(2), mem.Size())
}

func TestEngine_Call_MemoryGrowFailureReturnsMinusOne(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, mem := newMemModule(store, 1, 1)

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32}, nil, 4, []wasm.Instruction{
		i32c(1),
		{Opcode: wasm.OpcodeMemoryGrow},
	})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{uint64(0xffffffff)}, results)
	require.Equal(t, uint32(1), mem.Size(), "failed growth leaves memory untouched")
}

func TestEngine_Call_MemoryFill(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, mem := newMemModule(store, 1, 1)

	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		i32c(0),  // dst
		i32c(65), // val 'A'
		i32c(4),  // n
		{Opcode: wasm.OpcodeMiscMemoryFill},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{65, 65, 65, 65}, mem.Data[0:4])
}

func TestEngine_Call_MemoryCopy(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, mem := newMemModule(store, 1, 1)
	copy(mem.Data[100:104], []byte{1, 2, 3, 4})

	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		i32c(0),   // dst
		i32c(100), // src
		i32c(4),   // n
		{Opcode: wasm.OpcodeMiscMemoryCopy},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, mem.Data[0:4])
}

func TestEngine_Call_MemoryInitAndDataDrop(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi, mem := newMemModule(store, 1, 1)
	data := &wasm.DataInstance{Bytes: []byte{9, 8, 7, 6}}
	store.Datas = append(store.Datas, data)
	mi.DataAddrs = []uint32{0}

	fn := newWasmFunc(mi, nil, nil, nil, 4, []wasm.Instruction{
		i32c(0), // dst
		i32c(0), // src
		i32c(4), // n
		{Opcode: wasm.OpcodeMiscMemoryInit, DataIndex: 0},
		{Opcode: wasm.OpcodeMiscDataDrop, DataIndex: 0},
	})

	e := NewEngine(0)
	_, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7, 6}, mem.Data[0:4])
	require.True(t, data.Dropped())
}

func TestEngine_Call_TableGetSetGrowFillSize(t *testing.T) {
	store := wasm.NewStore(wasm.DefaultFeatures())
	mi := newTestModule(store)
	table := &wasm.TableInstance{Type: api.ValueTypeFuncref, References: []uint64{0, 0}}
	store.Tables = append(store.Tables, table)
	mi.TableAddrs = []uint32{0}

	fn := newWasmFunc(mi, nil, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
		nil, 4, []wasm.Instruction{
			i32c(0),
			{Opcode: wasm.OpcodeI32Const, ConstI64: 7},
			{Opcode: wasm.OpcodeTableSet, TableIndex: 0},
			i32c(0),
			{Opcode: wasm.OpcodeTableGet, TableIndex: 0},

			i32c(1),                                    // dst
			{Opcode: wasm.OpcodeI32Const, ConstI64: 0}, // fill value (null ref)
			i32c(1),                                    // n
			{Opcode: wasm.OpcodeMiscTableFill, TableIndex: 0},

			{Opcode: wasm.OpcodeI32Const, ConstI64: 0}, // grow value
			i32c(3),                                    // n
			{Opcode: wasm.OpcodeMiscTableGrow, TableIndex: 0},

			{Opcode: wasm.OpcodeMiscTableSize, TableIndex: 0},
		})

	e := NewEngine(0)
	results, err := e.Call(context.Background(), fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{7, 2, 5}, results, "table.get result, table.grow previous size, table.size after growth")
}
