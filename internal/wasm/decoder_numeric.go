package wasm

import (
	"math"

	"github.com/tinygo-wasm/tinywasm/api"
)

func math_Float32bits(f float32) uint32 { return math.Float32bits(f) }
func math_Float64bits(f float64) uint64 { return math.Float64bits(f) }

func api_ValueTypeName(vt ValType) string {
	if vt == polymorphicMarker {
		return "any"
	}
	return api.ValueTypeName(vt)
}

func isMemoryOp(op Opcode) bool {
	return op >= OpcodeI32Load && op <= OpcodeI64Store32
}

func (fb *funcBodyDecoder) decodeMemArg() (MemArg, error) {
	align, err := fb.r.u32()
	if err != nil {
		return MemArg{}, err
	}
	offset, err := fb.r.u32()
	if err != nil {
		return MemArg{}, err
	}
	return MemArg{Align: align, Offset: offset}, nil
}

// validateMemoryOp only checks that the module declares a memory; the
// natural alignment the align immediate claims is never enforced, as
// unaligned access is always legal.
func (fb *funcBodyDecoder) validateMemoryOp(op Opcode) error {
	if fb.d.m.NumMemories() == 0 {
		return newValidationError(fb.r.offset(), "memory instruction without a declared memory")
	}
	return nil
}

func (fb *funcBodyDecoder) pop1push1(pop, push ValType) error {
	if err := fb.popExpect(pop); err != nil {
		return err
	}
	fb.pushVal(push)
	return nil
}

func (fb *funcBodyDecoder) pop2push1(pop1, pop2, push ValType) error {
	if err := fb.popExpect(pop2); err != nil {
		return err
	}
	if err := fb.popExpect(pop1); err != nil {
		return err
	}
	fb.pushVal(push)
	return nil
}

// applyMemoryOp pops the operands a load/store requires and pushes a
// load's result, for a memory op already known to be well-formed.
func (fb *funcBodyDecoder) applyMemoryOp(op Opcode) error {
	switch op {
	case OpcodeI32Load, OpcodeI32Load8S, OpcodeI32Load8U, OpcodeI32Load16S, OpcodeI32Load16U:
		return fb.pop1push1(ValTypeI32, ValTypeI32)
	case OpcodeI64Load, OpcodeI64Load8S, OpcodeI64Load8U, OpcodeI64Load16S, OpcodeI64Load16U, OpcodeI64Load32S, OpcodeI64Load32U:
		return fb.pop1push1(ValTypeI32, ValTypeI64)
	case OpcodeF32Load:
		return fb.pop1push1(ValTypeI32, ValTypeF32)
	case OpcodeF64Load:
		return fb.pop1push1(ValTypeI32, ValTypeF64)
	case OpcodeI32Store, OpcodeI32Store8, OpcodeI32Store16:
		return fb.pop2NoPush(ValTypeI32, ValTypeI32)
	case OpcodeI64Store, OpcodeI64Store8, OpcodeI64Store16, OpcodeI64Store32:
		return fb.pop2NoPush(ValTypeI32, ValTypeI64)
	case OpcodeF32Store:
		return fb.pop2NoPush(ValTypeI32, ValTypeF32)
	case OpcodeF64Store:
		return fb.pop2NoPush(ValTypeI32, ValTypeF64)
	}
	return nil
}

func (fb *funcBodyDecoder) pop2NoPush(addrType, valType ValType) error {
	if err := fb.popExpect(valType); err != nil {
		return err
	}
	return fb.popExpect(addrType)
}

// isNumericOp covers comparisons, arithmetic, conversions and the
// sign-extension extension, i.e. every opcode with a fixed, context-free
// operand/result signature.
func isNumericOp(op Opcode) bool {
	return (op >= OpcodeI32Eqz && op <= OpcodeF64ReinterpretI64) ||
		(op >= OpcodeI32Extend8S && op <= OpcodeI64Extend32S)
}

func (fb *funcBodyDecoder) applyNumericOp(instr *Instruction) error {
	op := instr.Opcode
	switch {
	case op == OpcodeI32Eqz:
		return fb.pop1push1(ValTypeI32, ValTypeI32)
	case op >= OpcodeI32Eq && op <= OpcodeI32GeU:
		return fb.pop2push1(ValTypeI32, ValTypeI32, ValTypeI32)
	case op == OpcodeI64Eqz:
		return fb.pop1push1(ValTypeI64, ValTypeI32)
	case op >= OpcodeI64Eq && op <= OpcodeI64GeU:
		return fb.pop2push1(ValTypeI64, ValTypeI64, ValTypeI32)
	case op >= OpcodeF32Eq && op <= OpcodeF32Ge:
		return fb.pop2push1(ValTypeF32, ValTypeF32, ValTypeI32)
	case op >= OpcodeF64Eq && op <= OpcodeF64Ge:
		return fb.pop2push1(ValTypeF64, ValTypeF64, ValTypeI32)
	case op >= OpcodeI32Clz && op <= OpcodeI32Popcnt:
		return fb.pop1push1(ValTypeI32, ValTypeI32)
	case op >= OpcodeI32Add && op <= OpcodeI32Rotr:
		return fb.pop2push1(ValTypeI32, ValTypeI32, ValTypeI32)
	case op >= OpcodeI64Clz && op <= OpcodeI64Popcnt:
		return fb.pop1push1(ValTypeI64, ValTypeI64)
	case op >= OpcodeI64Add && op <= OpcodeI64Rotr:
		return fb.pop2push1(ValTypeI64, ValTypeI64, ValTypeI64)
	case op >= OpcodeF32Abs && op <= OpcodeF32Sqrt:
		return fb.pop1push1(ValTypeF32, ValTypeF32)
	case op >= OpcodeF32Add && op <= OpcodeF32Copysign:
		return fb.pop2push1(ValTypeF32, ValTypeF32, ValTypeF32)
	case op >= OpcodeF64Abs && op <= OpcodeF64Sqrt:
		return fb.pop1push1(ValTypeF64, ValTypeF64)
	case op >= OpcodeF64Add && op <= OpcodeF64Copysign:
		return fb.pop2push1(ValTypeF64, ValTypeF64, ValTypeF64)
	case op == OpcodeI32WrapI64:
		return fb.pop1push1(ValTypeI64, ValTypeI32)
	case op == OpcodeI32TruncF32S || op == OpcodeI32TruncF32U:
		return fb.pop1push1(ValTypeF32, ValTypeI32)
	case op == OpcodeI32TruncF64S || op == OpcodeI32TruncF64U:
		return fb.pop1push1(ValTypeF64, ValTypeI32)
	case op == OpcodeI64ExtendI32S || op == OpcodeI64ExtendI32U:
		return fb.pop1push1(ValTypeI32, ValTypeI64)
	case op == OpcodeI64TruncF32S || op == OpcodeI64TruncF32U:
		return fb.pop1push1(ValTypeF32, ValTypeI64)
	case op == OpcodeI64TruncF64S || op == OpcodeI64TruncF64U:
		return fb.pop1push1(ValTypeF64, ValTypeI64)
	case op == OpcodeF32ConvertI32S || op == OpcodeF32ConvertI32U:
		return fb.pop1push1(ValTypeI32, ValTypeF32)
	case op == OpcodeF32ConvertI64S || op == OpcodeF32ConvertI64U:
		return fb.pop1push1(ValTypeI64, ValTypeF32)
	case op == OpcodeF32DemoteF64:
		return fb.pop1push1(ValTypeF64, ValTypeF32)
	case op == OpcodeF64ConvertI32S || op == OpcodeF64ConvertI32U:
		return fb.pop1push1(ValTypeI32, ValTypeF64)
	case op == OpcodeF64ConvertI64S || op == OpcodeF64ConvertI64U:
		return fb.pop1push1(ValTypeI64, ValTypeF64)
	case op == OpcodeF64PromoteF32:
		return fb.pop1push1(ValTypeF32, ValTypeF64)
	case op == OpcodeI32ReinterpretF32:
		return fb.pop1push1(ValTypeF32, ValTypeI32)
	case op == OpcodeI64ReinterpretF64:
		return fb.pop1push1(ValTypeF64, ValTypeI64)
	case op == OpcodeF32ReinterpretI32:
		return fb.pop1push1(ValTypeI32, ValTypeF32)
	case op == OpcodeF64ReinterpretI64:
		return fb.pop1push1(ValTypeI64, ValTypeF64)
	case op == OpcodeI32Extend8S || op == OpcodeI32Extend16S:
		if !fb.d.features.SignExtensionOps {
			return &UnsupportedError{Feature: "sign-extension operators"}
		}
		return fb.pop1push1(ValTypeI32, ValTypeI32)
	case op == OpcodeI64Extend8S || op == OpcodeI64Extend16S || op == OpcodeI64Extend32S:
		if !fb.d.features.SignExtensionOps {
			return &UnsupportedError{Feature: "sign-extension operators"}
		}
		return fb.pop1push1(ValTypeI64, ValTypeI64)
	}
	return newDecodeError(fb.r.offset(), "invalid opcode %#x", byte(op))
}

// decodeMisc decodes one 0xFC-prefixed instruction: saturating truncation
// (no further immediate) or a bulk memory/table operation.
func (fb *funcBodyDecoder) decodeMisc(instr *Instruction) error {
	op := instr.Opcode
	switch op {
	case OpcodeMiscI32TruncSatF32S, OpcodeMiscI32TruncSatF32U:
		return fb.requireSat(fb.pop1push1(ValTypeF32, ValTypeI32))
	case OpcodeMiscI32TruncSatF64S, OpcodeMiscI32TruncSatF64U:
		return fb.requireSat(fb.pop1push1(ValTypeF64, ValTypeI32))
	case OpcodeMiscI64TruncSatF32S, OpcodeMiscI64TruncSatF32U:
		return fb.requireSat(fb.pop1push1(ValTypeF32, ValTypeI64))
	case OpcodeMiscI64TruncSatF64S, OpcodeMiscI64TruncSatF64U:
		return fb.requireSat(fb.pop1push1(ValTypeF64, ValTypeI64))

	case OpcodeMiscMemoryInit:
		if !fb.d.features.BulkMemory {
			return &UnsupportedError{Feature: "bulk memory operations"}
		}
		idx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if int(idx) >= len(fb.d.m.Datas) {
			return newValidationError(fb.r.offset(), "memory.init data index %d out of range", idx)
		}
		if _, err := fb.r.byte(); err != nil { // reserved memidx
			return err
		}
		instr.DataIndex = idx
		return fb.pop3(ValTypeI32, ValTypeI32, ValTypeI32)

	case OpcodeMiscDataDrop:
		idx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if int(idx) >= len(fb.d.m.Datas) {
			return newValidationError(fb.r.offset(), "data.drop index %d out of range", idx)
		}
		instr.DataIndex = idx
		return nil

	case OpcodeMiscMemoryCopy:
		if _, err := fb.r.byte(); err != nil {
			return err
		}
		if _, err := fb.r.byte(); err != nil {
			return err
		}
		return fb.pop3(ValTypeI32, ValTypeI32, ValTypeI32)

	case OpcodeMiscMemoryFill:
		if _, err := fb.r.byte(); err != nil {
			return err
		}
		return fb.pop3(ValTypeI32, ValTypeI32, ValTypeI32)

	case OpcodeMiscTableInit:
		elemIdx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if int(elemIdx) >= len(fb.d.m.Elements) {
			return newValidationError(fb.r.offset(), "table.init element index %d out of range", elemIdx)
		}
		tableIdx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if tableIdx >= fb.d.m.NumTables() {
			return newValidationError(fb.r.offset(), "table.init table index %d out of range", tableIdx)
		}
		instr.ElemIndex = elemIdx
		instr.TableIndex = tableIdx
		return fb.pop3(ValTypeI32, ValTypeI32, ValTypeI32)

	case OpcodeMiscElemDrop:
		idx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if int(idx) >= len(fb.d.m.Elements) {
			return newValidationError(fb.r.offset(), "elem.drop index %d out of range", idx)
		}
		instr.ElemIndex = idx
		return nil

	case OpcodeMiscTableCopy:
		dst, err := fb.r.u32()
		if err != nil {
			return err
		}
		src, err := fb.r.u32()
		if err != nil {
			return err
		}
		if dst >= fb.d.m.NumTables() || src >= fb.d.m.NumTables() {
			return newValidationError(fb.r.offset(), "table.copy table index out of range")
		}
		instr.TableIndex = dst
		instr.ElemIndex = src
		return fb.pop3(ValTypeI32, ValTypeI32, ValTypeI32)

	case OpcodeMiscTableGrow:
		idx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if idx >= fb.d.m.NumTables() {
			return newValidationError(fb.r.offset(), "table.grow table index %d out of range", idx)
		}
		instr.TableIndex = idx
		if err := fb.popExpect(ValTypeI32); err != nil {
			return err
		}
		if _, err := fb.popVal(); err != nil { // init ref value, any reftype
			return err
		}
		fb.pushVal(ValTypeI32)
		return nil

	case OpcodeMiscTableSize:
		idx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if idx >= fb.d.m.NumTables() {
			return newValidationError(fb.r.offset(), "table.size table index %d out of range", idx)
		}
		instr.TableIndex = idx
		fb.pushVal(ValTypeI32)
		return nil

	case OpcodeMiscTableFill:
		idx, err := fb.r.u32()
		if err != nil {
			return err
		}
		if idx >= fb.d.m.NumTables() {
			return newValidationError(fb.r.offset(), "table.fill table index %d out of range", idx)
		}
		instr.TableIndex = idx
		if err := fb.popExpect(ValTypeI32); err != nil {
			return err
		}
		if _, err := fb.popVal(); err != nil {
			return err
		}
		return fb.popExpect(ValTypeI32)
	}
	return newDecodeError(fb.r.offset(), "invalid misc opcode")
}

func (fb *funcBodyDecoder) requireSat(err error) error {
	if err != nil {
		return err
	}
	if !fb.d.features.SaturatingTruncation {
		return &UnsupportedError{Feature: "saturating truncation"}
	}
	return nil
}

func (fb *funcBodyDecoder) pop3(a, b, c ValType) error {
	if err := fb.popExpect(c); err != nil {
		return err
	}
	if err := fb.popExpect(b); err != nil {
		return err
	}
	return fb.popExpect(a)
}
