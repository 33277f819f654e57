package interpreter

import (
	"math"
	"math/bits"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/moremath"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// applyNumeric computes the result of a fixed-signature numeric
// instruction (comparisons, arithmetic, conversions, sign-extension) on
// the top of the frame's operand stack, trapping on division by zero,
// integer overflow, and invalid float-to-int conversions per the runtime
// trap table.
func applyNumeric(f *callFrame, instr *wasm.Instruction) {
	op := instr.Opcode
	switch op {
	case wasm.OpcodeI32Eqz:
		f.push(b2i(f.popI32() == 0))
	case wasm.OpcodeI32Eq:
		a, b := f.pop2I32()
		f.push(b2i(a == b))
	case wasm.OpcodeI32Ne:
		a, b := f.pop2I32()
		f.push(b2i(a != b))
	case wasm.OpcodeI32LtS:
		a, b := f.pop2I32()
		f.push(b2i(a < b))
	case wasm.OpcodeI32LtU:
		a, b := f.pop2U32()
		f.push(b2i(a < b))
	case wasm.OpcodeI32GtS:
		a, b := f.pop2I32()
		f.push(b2i(a > b))
	case wasm.OpcodeI32GtU:
		a, b := f.pop2U32()
		f.push(b2i(a > b))
	case wasm.OpcodeI32LeS:
		a, b := f.pop2I32()
		f.push(b2i(a <= b))
	case wasm.OpcodeI32LeU:
		a, b := f.pop2U32()
		f.push(b2i(a <= b))
	case wasm.OpcodeI32GeS:
		a, b := f.pop2I32()
		f.push(b2i(a >= b))
	case wasm.OpcodeI32GeU:
		a, b := f.pop2U32()
		f.push(b2i(a >= b))

	case wasm.OpcodeI64Eqz:
		f.push(b2i(f.popI64() == 0))
	case wasm.OpcodeI64Eq:
		a, b := f.pop2I64()
		f.push(b2i(a == b))
	case wasm.OpcodeI64Ne:
		a, b := f.pop2I64()
		f.push(b2i(a != b))
	case wasm.OpcodeI64LtS:
		a, b := f.pop2I64()
		f.push(b2i(a < b))
	case wasm.OpcodeI64LtU:
		a, b := f.pop2U64()
		f.push(b2i(a < b))
	case wasm.OpcodeI64GtS:
		a, b := f.pop2I64()
		f.push(b2i(a > b))
	case wasm.OpcodeI64GtU:
		a, b := f.pop2U64()
		f.push(b2i(a > b))
	case wasm.OpcodeI64LeS:
		a, b := f.pop2I64()
		f.push(b2i(a <= b))
	case wasm.OpcodeI64LeU:
		a, b := f.pop2U64()
		f.push(b2i(a <= b))
	case wasm.OpcodeI64GeS:
		a, b := f.pop2I64()
		f.push(b2i(a >= b))
	case wasm.OpcodeI64GeU:
		a, b := f.pop2U64()
		f.push(b2i(a >= b))

	case wasm.OpcodeF32Eq:
		a, b := f.pop2F32()
		f.push(b2i(a == b))
	case wasm.OpcodeF32Ne:
		a, b := f.pop2F32()
		f.push(b2i(a != b))
	case wasm.OpcodeF32Lt:
		a, b := f.pop2F32()
		f.push(b2i(a < b))
	case wasm.OpcodeF32Gt:
		a, b := f.pop2F32()
		f.push(b2i(a > b))
	case wasm.OpcodeF32Le:
		a, b := f.pop2F32()
		f.push(b2i(a <= b))
	case wasm.OpcodeF32Ge:
		a, b := f.pop2F32()
		f.push(b2i(a >= b))

	case wasm.OpcodeF64Eq:
		a, b := f.pop2F64()
		f.push(b2i(a == b))
	case wasm.OpcodeF64Ne:
		a, b := f.pop2F64()
		f.push(b2i(a != b))
	case wasm.OpcodeF64Lt:
		a, b := f.pop2F64()
		f.push(b2i(a < b))
	case wasm.OpcodeF64Gt:
		a, b := f.pop2F64()
		f.push(b2i(a > b))
	case wasm.OpcodeF64Le:
		a, b := f.pop2F64()
		f.push(b2i(a <= b))
	case wasm.OpcodeF64Ge:
		a, b := f.pop2F64()
		f.push(b2i(a >= b))

	case wasm.OpcodeI32Clz:
		f.pushU32(uint32(bits.LeadingZeros32(f.popU32())))
	case wasm.OpcodeI32Ctz:
		f.pushU32(uint32(bits.TrailingZeros32(f.popU32())))
	case wasm.OpcodeI32Popcnt:
		f.pushU32(uint32(bits.OnesCount32(f.popU32())))
	case wasm.OpcodeI32Add:
		a, b := f.pop2U32()
		f.pushU32(a + b)
	case wasm.OpcodeI32Sub:
		a, b := f.pop2U32()
		f.pushU32(a - b)
	case wasm.OpcodeI32Mul:
		a, b := f.pop2U32()
		f.pushU32(a * b)
	case wasm.OpcodeI32DivS:
		a, b := f.pop2I32()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		if a == math.MinInt32 && b == -1 {
			panic(api.NewTrap(api.TrapCodeIntegerOverflow, nil))
		}
		f.pushI32(a / b)
	case wasm.OpcodeI32DivU:
		a, b := f.pop2U32()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		f.pushU32(a / b)
	case wasm.OpcodeI32RemS:
		a, b := f.pop2I32()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		if a == math.MinInt32 && b == -1 {
			f.pushI32(0)
		} else {
			f.pushI32(a % b)
		}
	case wasm.OpcodeI32RemU:
		a, b := f.pop2U32()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		f.pushU32(a % b)
	case wasm.OpcodeI32And:
		a, b := f.pop2U32()
		f.pushU32(a & b)
	case wasm.OpcodeI32Or:
		a, b := f.pop2U32()
		f.pushU32(a | b)
	case wasm.OpcodeI32Xor:
		a, b := f.pop2U32()
		f.pushU32(a ^ b)
	case wasm.OpcodeI32Shl:
		a, b := f.pop2U32()
		f.pushU32(a << (b % 32))
	case wasm.OpcodeI32ShrS:
		a, b := f.pop2I32()
		f.pushI32(a >> (uint32(b) % 32))
	case wasm.OpcodeI32ShrU:
		a, b := f.pop2U32()
		f.pushU32(a >> (b % 32))
	case wasm.OpcodeI32Rotl:
		a, b := f.pop2U32()
		f.pushU32(bits.RotateLeft32(a, int(b)))
	case wasm.OpcodeI32Rotr:
		a, b := f.pop2U32()
		f.pushU32(bits.RotateLeft32(a, -int(b)))

	case wasm.OpcodeI64Clz:
		f.pushU64(uint64(bits.LeadingZeros64(f.popU64())))
	case wasm.OpcodeI64Ctz:
		f.pushU64(uint64(bits.TrailingZeros64(f.popU64())))
	case wasm.OpcodeI64Popcnt:
		f.pushU64(uint64(bits.OnesCount64(f.popU64())))
	case wasm.OpcodeI64Add:
		a, b := f.pop2U64()
		f.pushU64(a + b)
	case wasm.OpcodeI64Sub:
		a, b := f.pop2U64()
		f.pushU64(a - b)
	case wasm.OpcodeI64Mul:
		a, b := f.pop2U64()
		f.pushU64(a * b)
	case wasm.OpcodeI64DivS:
		a, b := f.pop2I64()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		if a == math.MinInt64 && b == -1 {
			panic(api.NewTrap(api.TrapCodeIntegerOverflow, nil))
		}
		f.pushI64(a / b)
	case wasm.OpcodeI64DivU:
		a, b := f.pop2U64()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		f.pushU64(a / b)
	case wasm.OpcodeI64RemS:
		a, b := f.pop2I64()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		if a == math.MinInt64 && b == -1 {
			f.pushI64(0)
		} else {
			f.pushI64(a % b)
		}
	case wasm.OpcodeI64RemU:
		a, b := f.pop2U64()
		if b == 0 {
			panic(api.NewTrap(api.TrapCodeIntegerDivideByZero, nil))
		}
		f.pushU64(a % b)
	case wasm.OpcodeI64And:
		a, b := f.pop2U64()
		f.pushU64(a & b)
	case wasm.OpcodeI64Or:
		a, b := f.pop2U64()
		f.pushU64(a | b)
	case wasm.OpcodeI64Xor:
		a, b := f.pop2U64()
		f.pushU64(a ^ b)
	case wasm.OpcodeI64Shl:
		a, b := f.pop2U64()
		f.pushU64(a << (b % 64))
	case wasm.OpcodeI64ShrS:
		a, b := f.pop2I64()
		f.pushI64(a >> (uint64(b) % 64))
	case wasm.OpcodeI64ShrU:
		a, b := f.pop2U64()
		f.pushU64(a >> (b % 64))
	case wasm.OpcodeI64Rotl:
		a, b := f.pop2U64()
		f.pushU64(bits.RotateLeft64(a, int(b)))
	case wasm.OpcodeI64Rotr:
		a, b := f.pop2U64()
		f.pushU64(bits.RotateLeft64(a, -int(b)))

	case wasm.OpcodeF32Abs:
		f.pushF32(float32(math.Abs(float64(f.popF32()))))
	case wasm.OpcodeF32Neg:
		f.pushF32(-f.popF32())
	case wasm.OpcodeF32Ceil:
		f.pushF32(float32(math.Ceil(float64(f.popF32()))))
	case wasm.OpcodeF32Floor:
		f.pushF32(float32(math.Floor(float64(f.popF32()))))
	case wasm.OpcodeF32Trunc:
		f.pushF32(float32(math.Trunc(float64(f.popF32()))))
	case wasm.OpcodeF32Nearest:
		f.pushF32(moremath.WasmCompatNearestF32(f.popF32()))
	case wasm.OpcodeF32Sqrt:
		f.pushF32(float32(math.Sqrt(float64(f.popF32()))))
	case wasm.OpcodeF32Add:
		a, b := f.pop2F32()
		f.pushF32(a + b)
	case wasm.OpcodeF32Sub:
		a, b := f.pop2F32()
		f.pushF32(a - b)
	case wasm.OpcodeF32Mul:
		a, b := f.pop2F32()
		f.pushF32(a * b)
	case wasm.OpcodeF32Div:
		a, b := f.pop2F32()
		f.pushF32(a / b)
	case wasm.OpcodeF32Min:
		a, b := f.pop2F32()
		f.pushF32(float32(moremath.WasmCompatMin(float64(a), float64(b))))
	case wasm.OpcodeF32Max:
		a, b := f.pop2F32()
		f.pushF32(float32(moremath.WasmCompatMax(float64(a), float64(b))))
	case wasm.OpcodeF32Copysign:
		a, b := f.pop2F32()
		f.pushF32(float32(math.Copysign(float64(a), float64(b))))

	case wasm.OpcodeF64Abs:
		f.pushF64(math.Abs(f.popF64()))
	case wasm.OpcodeF64Neg:
		f.pushF64(-f.popF64())
	case wasm.OpcodeF64Ceil:
		f.pushF64(math.Ceil(f.popF64()))
	case wasm.OpcodeF64Floor:
		f.pushF64(math.Floor(f.popF64()))
	case wasm.OpcodeF64Trunc:
		f.pushF64(math.Trunc(f.popF64()))
	case wasm.OpcodeF64Nearest:
		f.pushF64(moremath.WasmCompatNearestF64(f.popF64()))
	case wasm.OpcodeF64Sqrt:
		f.pushF64(math.Sqrt(f.popF64()))
	case wasm.OpcodeF64Add:
		a, b := f.pop2F64()
		f.pushF64(a + b)
	case wasm.OpcodeF64Sub:
		a, b := f.pop2F64()
		f.pushF64(a - b)
	case wasm.OpcodeF64Mul:
		a, b := f.pop2F64()
		f.pushF64(a * b)
	case wasm.OpcodeF64Div:
		a, b := f.pop2F64()
		f.pushF64(a / b)
	case wasm.OpcodeF64Min:
		a, b := f.pop2F64()
		f.pushF64(moremath.WasmCompatMin(a, b))
	case wasm.OpcodeF64Max:
		a, b := f.pop2F64()
		f.pushF64(moremath.WasmCompatMax(a, b))
	case wasm.OpcodeF64Copysign:
		a, b := f.pop2F64()
		f.pushF64(math.Copysign(a, b))

	case wasm.OpcodeI32WrapI64:
		f.pushU32(uint32(f.popU64()))
	case wasm.OpcodeI32TruncF32S:
		f.pushI32(truncToI32(float64(f.popF32()), true, false))
	case wasm.OpcodeI32TruncF32U:
		f.pushI32(truncToI32(float64(f.popF32()), false, false))
	case wasm.OpcodeI32TruncF64S:
		f.pushI32(truncToI32(f.popF64(), true, false))
	case wasm.OpcodeI32TruncF64U:
		f.pushI32(truncToI32(f.popF64(), false, false))
	case wasm.OpcodeI64ExtendI32S:
		f.pushI64(int64(f.popI32()))
	case wasm.OpcodeI64ExtendI32U:
		f.pushU64(uint64(f.popU32()))
	case wasm.OpcodeI64TruncF32S:
		f.pushI64(truncToI64(float64(f.popF32()), true, false))
	case wasm.OpcodeI64TruncF32U:
		f.pushI64(truncToI64(float64(f.popF32()), false, false))
	case wasm.OpcodeI64TruncF64S:
		f.pushI64(truncToI64(f.popF64(), true, false))
	case wasm.OpcodeI64TruncF64U:
		f.pushI64(truncToI64(f.popF64(), false, false))
	case wasm.OpcodeF32ConvertI32S:
		f.pushF32(float32(f.popI32()))
	case wasm.OpcodeF32ConvertI32U:
		f.pushF32(float32(f.popU32()))
	case wasm.OpcodeF32ConvertI64S:
		f.pushF32(float32(f.popI64()))
	case wasm.OpcodeF32ConvertI64U:
		f.pushF32(float32(f.popU64()))
	case wasm.OpcodeF32DemoteF64:
		f.pushF32(float32(f.popF64()))
	case wasm.OpcodeF64ConvertI32S:
		f.pushF64(float64(f.popI32()))
	case wasm.OpcodeF64ConvertI32U:
		f.pushF64(float64(f.popU32()))
	case wasm.OpcodeF64ConvertI64S:
		f.pushF64(float64(f.popI64()))
	case wasm.OpcodeF64ConvertI64U:
		f.pushF64(float64(f.popU64()))
	case wasm.OpcodeF64PromoteF32:
		f.pushF64(float64(f.popF32()))
	case wasm.OpcodeI32ReinterpretF32:
		f.pushU32(math.Float32bits(f.popF32()))
	case wasm.OpcodeI64ReinterpretF64:
		f.pushU64(math.Float64bits(f.popF64()))
	case wasm.OpcodeF32ReinterpretI32:
		f.pushF32(math.Float32frombits(f.popU32()))
	case wasm.OpcodeF64ReinterpretI64:
		f.pushF64(math.Float64frombits(f.popU64()))

	case wasm.OpcodeI32Extend8S:
		f.pushI32(int32(int8(f.popI32())))
	case wasm.OpcodeI32Extend16S:
		f.pushI32(int32(int16(f.popI32())))
	case wasm.OpcodeI64Extend8S:
		f.pushI64(int64(int8(f.popI64())))
	case wasm.OpcodeI64Extend16S:
		f.pushI64(int64(int16(f.popI64())))
	case wasm.OpcodeI64Extend32S:
		f.pushI64(int64(int32(f.popI64())))
	}
}

// applyMiscNumeric computes the saturating truncation opcodes, the only
// 0xFC-prefixed instructions with a fixed value signature (the rest are
// bulk memory/table operations handled by execMisc).
func applyMiscNumeric(f *callFrame, op wasm.Opcode) {
	switch op {
	case wasm.OpcodeMiscI32TruncSatF32S:
		f.pushI32(truncToI32(float64(f.popF32()), true, true))
	case wasm.OpcodeMiscI32TruncSatF32U:
		f.pushI32(truncToI32(float64(f.popF32()), false, true))
	case wasm.OpcodeMiscI32TruncSatF64S:
		f.pushI32(truncToI32(f.popF64(), true, true))
	case wasm.OpcodeMiscI32TruncSatF64U:
		f.pushI32(truncToI32(f.popF64(), false, true))
	case wasm.OpcodeMiscI64TruncSatF32S:
		f.pushI64(truncToI64(float64(f.popF32()), true, true))
	case wasm.OpcodeMiscI64TruncSatF32U:
		f.pushI64(truncToI64(float64(f.popF32()), false, true))
	case wasm.OpcodeMiscI64TruncSatF64S:
		f.pushI64(truncToI64(f.popF64(), true, true))
	case wasm.OpcodeMiscI64TruncSatF64U:
		f.pushI64(truncToI64(f.popF64(), false, true))
	}
}

func b2i(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// truncToI32 converts a float to a 32-bit integer per the non-saturating
// (trapping) or saturating opcode family, signed or unsigned.
func truncToI32(v float64, signed, saturating bool) int32 {
	if math.IsNaN(v) {
		if saturating {
			return 0
		}
		panic(api.NewTrap(api.TrapCodeInvalidConversionToInteger, nil))
	}
	t := math.Trunc(v)
	if signed {
		if t >= math.MinInt32 && t <= math.MaxInt32 {
			return int32(t)
		}
	} else {
		if t >= 0 && t <= math.MaxUint32 {
			return int32(uint32(t))
		}
	}
	if !saturating {
		panic(api.NewTrap(api.TrapCodeIntegerOverflow, nil))
	}
	if signed {
		if t < 0 {
			return math.MinInt32
		}
		return math.MaxInt32
	}
	if t < 0 {
		return 0
	}
	return -1 // math.MaxUint32's bit pattern as an int32
}

// truncToI64 is truncToI32's 64-bit counterpart.
func truncToI64(v float64, signed, saturating bool) int64 {
	if math.IsNaN(v) {
		if saturating {
			return 0
		}
		panic(api.NewTrap(api.TrapCodeInvalidConversionToInteger, nil))
	}
	t := math.Trunc(v)
	if signed {
		if t >= math.MinInt64 && t < math.MaxInt64 {
			return int64(t)
		}
	} else {
		if t >= 0 && t < math.MaxUint64 {
			return int64(uint64(t))
		}
	}
	if !saturating {
		panic(api.NewTrap(api.TrapCodeIntegerOverflow, nil))
	}
	if signed {
		if t < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	if t < 0 {
		return 0
	}
	return -1 // math.MaxUint64's bit pattern as an int64
}
