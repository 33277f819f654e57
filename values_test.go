package tinywasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

func TestMemoryInstance_ReadWriteRoundTrip(t *testing.T) {
	m := &memoryInstance{&wasm.MemoryInstance{Data: make([]byte, wasm.PageSize), Min: 1, Max: 1}}

	require.True(t, m.WriteByte(0, 0xAB))
	b, ok := m.ReadByte(0)
	require.True(t, ok)
	require.Equal(t, byte(0xAB), b)

	require.True(t, m.WriteUint32Le(4, 0x11223344))
	v, ok := m.ReadUint32Le(4)
	require.True(t, ok)
	require.Equal(t, uint32(0x11223344), v)

	require.True(t, m.WriteUint64Le(8, 0x1122334455667788))
	v64, ok := m.ReadUint64Le(8)
	require.True(t, ok)
	require.Equal(t, uint64(0x1122334455667788), v64)

	require.True(t, m.WriteFloat32Le(16, 1.5))
	f32, ok := m.ReadFloat32Le(16)
	require.True(t, ok)
	require.Equal(t, float32(1.5), f32)

	require.True(t, m.WriteFloat64Le(24, 2.5))
	f64, ok := m.ReadFloat64Le(24)
	require.True(t, ok)
	require.Equal(t, float64(2.5), f64)
}

func TestMemoryInstance_OutOfBoundsFails(t *testing.T) {
	m := &memoryInstance{&wasm.MemoryInstance{Data: make([]byte, wasm.PageSize), Min: 1, Max: 1}}

	_, ok := m.ReadByte(wasm.PageSize)
	require.False(t, ok)
	require.False(t, m.WriteByte(wasm.PageSize, 1))

	_, ok = m.ReadUint32Le(wasm.PageSize - 3)
	require.False(t, ok)
}

func TestMemoryInstance_Size(t *testing.T) {
	m := &memoryInstance{&wasm.MemoryInstance{Data: make([]byte, 2*wasm.PageSize)}}
	require.Equal(t, uint32(2*wasm.PageSize), m.Size())
}

func TestGlobalInstance_immutable(t *testing.T) {
	gi := &wasm.GlobalInstance{Type: wasm.GlobalType{ValType: api.ValueTypeI32, Mutable: false}, Value: 42}
	g := &globalInstance{gi}
	require.Equal(t, api.ValueTypeI32, g.Type())
	require.Equal(t, uint64(42), g.Get())
}

func TestMutableGlobal_Set(t *testing.T) {
	gi := &wasm.GlobalInstance{Type: wasm.GlobalType{ValType: api.ValueTypeI64, Mutable: true}, Value: 1}
	g := &mutableGlobal{globalInstance{gi}}
	require.Equal(t, uint64(1), g.Get())

	g.Set(99)
	require.Equal(t, uint64(99), g.Get())
	require.Equal(t, uint64(99), gi.Value, "Set mutates the underlying store slot")
}
