package interpreter

import (
	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// isMemoryOp reports whether op is one of the fixed-width load/store
// instructions (0x28..0x3e), the only opcodes execMemoryOp handles.
func isMemoryOp(op wasm.Opcode) bool {
	return op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Store32
}

// boundsCheck returns the absolute start offset for a memory access of the
// given size at MemArg.Offset+addr, trapping OutOfBoundsMemoryAccess if any
// byte of it falls outside mem's current data. The addition is carried out
// in 64 bits so a large addr/offset combination cannot wrap back into
// bounds.
func boundsCheck(mem *wasm.MemoryInstance, addr uint32, memArg wasm.MemArg, size uint64) uint64 {
	ea := uint64(addr) + uint64(memArg.Offset)
	if ea+size > uint64(len(mem.Data)) {
		panic(api.NewTrap(api.TrapCodeOutOfBoundsMemoryAccess, nil))
	}
	return ea
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
func putLe16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putLe32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putLe64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// execMemoryOp dispatches a single load/store instruction against the
// calling function's (sole) memory, per §5's addressing and trap rules.
func (ce *callEngine) execMemoryOp(f *callFrame, instr *wasm.Instruction) {
	mem := f.fn.Module.Memory(0)
	switch instr.Opcode {
	case wasm.OpcodeI32Load:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		f.pushU32(le32(mem.Data[ea:]))
	case wasm.OpcodeI64Load:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 8)
		f.pushU64(le64(mem.Data[ea:]))
	case wasm.OpcodeF32Load:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		f.push(uint64(le32(mem.Data[ea:])))
	case wasm.OpcodeF64Load:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 8)
		f.push(le64(mem.Data[ea:]))
	case wasm.OpcodeI32Load8S:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 1)
		f.pushI32(int32(int8(mem.Data[ea])))
	case wasm.OpcodeI32Load8U:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 1)
		f.pushU32(uint32(mem.Data[ea]))
	case wasm.OpcodeI32Load16S:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 2)
		f.pushI32(int32(int16(le16(mem.Data[ea:]))))
	case wasm.OpcodeI32Load16U:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 2)
		f.pushU32(uint32(le16(mem.Data[ea:])))
	case wasm.OpcodeI64Load8S:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 1)
		f.pushI64(int64(int8(mem.Data[ea])))
	case wasm.OpcodeI64Load8U:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 1)
		f.pushU64(uint64(mem.Data[ea]))
	case wasm.OpcodeI64Load16S:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 2)
		f.pushI64(int64(int16(le16(mem.Data[ea:]))))
	case wasm.OpcodeI64Load16U:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 2)
		f.pushU64(uint64(le16(mem.Data[ea:])))
	case wasm.OpcodeI64Load32S:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		f.pushI64(int64(int32(le32(mem.Data[ea:]))))
	case wasm.OpcodeI64Load32U:
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		f.pushU64(uint64(le32(mem.Data[ea:])))

	case wasm.OpcodeI32Store:
		v := f.popU32()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		putLe32(mem.Data[ea:], v)
	case wasm.OpcodeI64Store:
		v := f.popU64()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 8)
		putLe64(mem.Data[ea:], v)
	case wasm.OpcodeF32Store:
		v := f.pop()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		putLe32(mem.Data[ea:], uint32(v))
	case wasm.OpcodeF64Store:
		v := f.pop()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 8)
		putLe64(mem.Data[ea:], v)
	case wasm.OpcodeI32Store8:
		v := f.popU32()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 1)
		mem.Data[ea] = byte(v)
	case wasm.OpcodeI32Store16:
		v := f.popU32()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 2)
		putLe16(mem.Data[ea:], uint16(v))
	case wasm.OpcodeI64Store8:
		v := f.popU64()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 1)
		mem.Data[ea] = byte(v)
	case wasm.OpcodeI64Store16:
		v := f.popU64()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 2)
		putLe16(mem.Data[ea:], uint16(v))
	case wasm.OpcodeI64Store32:
		v := f.popU64()
		addr := f.popU32()
		ea := boundsCheck(mem, addr, instr.MemArg, 4)
		putLe32(mem.Data[ea:], uint32(v))
	}
}

// execMisc dispatches the 0xFC-prefixed instruction space: saturating
// truncation (a fixed-signature numeric op, delegated to
// applyMiscNumeric) and the bulk memory/table operations of §6's accepted
// extensions.
func (ce *callEngine) execMisc(f *callFrame, instr *wasm.Instruction) {
	op := instr.Opcode
	switch op {
	case wasm.OpcodeMiscI32TruncSatF32S, wasm.OpcodeMiscI32TruncSatF32U,
		wasm.OpcodeMiscI32TruncSatF64S, wasm.OpcodeMiscI32TruncSatF64U,
		wasm.OpcodeMiscI64TruncSatF32S, wasm.OpcodeMiscI64TruncSatF32U,
		wasm.OpcodeMiscI64TruncSatF64S, wasm.OpcodeMiscI64TruncSatF64U:
		applyMiscNumeric(f, op)

	case wasm.OpcodeMiscMemoryInit:
		n := f.popU32()
		src := f.popU32()
		dst := f.popU32()
		mem := f.fn.Module.Memory(0)
		data := f.fn.Module.Data(instr.DataIndex)
		var bytes []byte
		if data != nil {
			bytes = data.Bytes
		}
		if uint64(src)+uint64(n) > uint64(len(bytes)) || uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsMemoryAccess, nil))
		}
		copy(mem.Data[dst:dst+n], bytes[src:src+n])
	case wasm.OpcodeMiscDataDrop:
		if d := f.fn.Module.Data(instr.DataIndex); d != nil {
			d.Bytes = nil
		}
	case wasm.OpcodeMiscMemoryCopy:
		n := f.popU32()
		src := f.popU32()
		dst := f.popU32()
		mem := f.fn.Module.Memory(0)
		if uint64(src)+uint64(n) > uint64(len(mem.Data)) || uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsMemoryAccess, nil))
		}
		copy(mem.Data[dst:dst+n], mem.Data[src:src+n])
	case wasm.OpcodeMiscMemoryFill:
		n := f.popU32()
		val := byte(f.popU32())
		dst := f.popU32()
		mem := f.fn.Module.Memory(0)
		if uint64(dst)+uint64(n) > uint64(len(mem.Data)) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsMemoryAccess, nil))
		}
		region := mem.Data[dst : dst+n]
		for i := range region {
			region[i] = val
		}

	case wasm.OpcodeMiscTableInit:
		n := f.popU32()
		src := f.popU32()
		dst := f.popU32()
		table := f.fn.Module.Table(instr.TableIndex)
		elem := f.fn.Module.Element(instr.ElemIndex)
		var refs []uint64
		if elem != nil {
			refs = elem.References
		}
		if uint64(src)+uint64(n) > uint64(len(refs)) || uint64(dst)+uint64(n) > uint64(len(table.References)) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil))
		}
		copy(table.References[dst:dst+n], refs[src:src+n])
	case wasm.OpcodeMiscElemDrop:
		if e := f.fn.Module.Element(instr.ElemIndex); e != nil {
			e.References = nil
		}
	case wasm.OpcodeMiscTableCopy:
		n := f.popU32()
		src := f.popU32()
		dst := f.popU32()
		// TableIndex on table.copy names the destination table; the
		// decoder records the source table index in ElemIndex (reused
		// since table.copy has no element-segment operand of its own).
		dstTable := f.fn.Module.Table(instr.TableIndex)
		srcTable := f.fn.Module.Table(instr.ElemIndex)
		if uint64(src)+uint64(n) > uint64(len(srcTable.References)) || uint64(dst)+uint64(n) > uint64(len(dstTable.References)) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil))
		}
		copy(dstTable.References[dst:dst+n], srcTable.References[src:src+n])
	case wasm.OpcodeMiscTableGrow:
		n := f.popU32()
		val := f.pop()
		table := f.fn.Module.Table(instr.TableIndex)
		prev := uint32(len(table.References))
		newLen := uint64(prev) + uint64(n)
		if table.Max != nil && newLen > uint64(*table.Max) {
			f.pushI32(-1)
			return
		}
		grown := make([]uint64, newLen)
		copy(grown, table.References)
		for i := prev; i < uint32(newLen); i++ {
			grown[i] = val
		}
		table.References = grown
		f.pushU32(prev)
	case wasm.OpcodeMiscTableSize:
		table := f.fn.Module.Table(instr.TableIndex)
		f.pushU32(uint32(len(table.References)))
	case wasm.OpcodeMiscTableFill:
		n := f.popU32()
		val := f.pop()
		dst := f.popU32()
		table := f.fn.Module.Table(instr.TableIndex)
		if uint64(dst)+uint64(n) > uint64(len(table.References)) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil))
		}
		region := table.References[dst : dst+n]
		for i := range region {
			region[i] = val
		}
	}
}
