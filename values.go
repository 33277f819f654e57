package tinywasm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// memoryInstance adapts a *wasm.MemoryInstance to api.Memory.
type memoryInstance struct {
	mem *wasm.MemoryInstance
}

func (m *memoryInstance) Size() uint32 { return uint32(len(m.mem.Data)) }

func (m *memoryInstance) Grow(deltaPages uint32) (previousPages uint32, ok bool) {
	return m.mem.Grow(deltaPages)
}

func (m *memoryInstance) hasSpace(offset, byteCount uint32) bool {
	return uint64(offset)+uint64(byteCount) <= uint64(len(m.mem.Data))
}

func (m *memoryInstance) ReadByte(offset uint32) (byte, bool) {
	if !m.hasSpace(offset, 1) {
		return 0, false
	}
	return m.mem.Data[offset], true
}

func (m *memoryInstance) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.hasSpace(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.mem.Data[offset:]), true
}

func (m *memoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.hasSpace(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.mem.Data[offset:]), true
}

func (m *memoryInstance) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (m *memoryInstance) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.hasSpace(offset, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.mem.Data[offset:]), true
}

func (m *memoryInstance) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

func (m *memoryInstance) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSpace(offset, byteCount) {
		return nil, false
	}
	return m.mem.Data[offset : offset+byteCount], true
}

func (m *memoryInstance) WriteByte(offset uint32, v byte) bool {
	if !m.hasSpace(offset, 1) {
		return false
	}
	m.mem.Data[offset] = v
	return true
}

func (m *memoryInstance) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.hasSpace(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.mem.Data[offset:], v)
	return true
}

func (m *memoryInstance) WriteUint32Le(offset, v uint32) bool {
	if !m.hasSpace(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.mem.Data[offset:], v)
	return true
}

func (m *memoryInstance) WriteFloat32Le(offset uint32, v float32) bool {
	return m.WriteUint32Le(offset, math.Float32bits(v))
}

func (m *memoryInstance) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.hasSpace(offset, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.mem.Data[offset:], v)
	return true
}

func (m *memoryInstance) WriteFloat64Le(offset uint32, v float64) bool {
	return m.WriteUint64Le(offset, math.Float64bits(v))
}

func (m *memoryInstance) Write(offset uint32, v []byte) bool {
	if !m.hasSpace(offset, uint32(len(v))) {
		return false
	}
	copy(m.mem.Data[offset:], v)
	return true
}

// globalInstance adapts an immutable *wasm.GlobalInstance to api.Global.
type globalInstance struct {
	gi *wasm.GlobalInstance
}

func (g *globalInstance) String() string {
	return fmt.Sprintf("global(%s)", api.ValueTypeName(g.gi.Type.ValType))
}

func (g *globalInstance) Type() api.ValueType { return g.gi.Type.ValType }

func (g *globalInstance) Get() uint64 { return g.gi.Value }

// mutableGlobal adapts a mutable *wasm.GlobalInstance to api.MutableGlobal.
type mutableGlobal struct {
	globalInstance
}

func (g *mutableGlobal) Set(v uint64) { g.gi.Value = v }
