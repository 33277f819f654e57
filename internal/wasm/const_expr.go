package wasm

import "math"

// decodeConstExpr reads a restricted constant expression, §4.3: a single
// t.const, global.get (of an imported immutable global), ref.null, or
// ref.func instruction, followed by `end`. Anything else is rejected here
// rather than deferred to a general validator, since constant expressions
// never need control flow.
func (d *moduleDecoder) decodeConstExpr(r *reader) (ConstExpr, error) {
	op, err := r.byte()
	if err != nil {
		return nil, err
	}
	var instr Instruction
	instr.Opcode = Opcode(op)
	switch Opcode(op) {
	case OpcodeI32Const:
		v, err := r.i32()
		if err != nil {
			return nil, err
		}
		instr.ConstI64 = int64(v)
	case OpcodeI64Const:
		v, err := r.i64()
		if err != nil {
			return nil, err
		}
		instr.ConstI64 = v
	case OpcodeF32Const:
		v, err := r.f32()
		if err != nil {
			return nil, err
		}
		instr.ConstF64Bits = uint64(math.Float32bits(v))
		instr.IsF32 = true
	case OpcodeF64Const:
		v, err := r.f64()
		if err != nil {
			return nil, err
		}
		instr.ConstF64Bits = math.Float64bits(v)
	case OpcodeGlobalGet:
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		if idx >= d.m.NumImportedGlobals {
			return nil, &InvalidInitializerError{Reason: "global.get in a constant expression must reference an imported global"}
		}
		if d.globalTypeOf(idx).Mutable {
			return nil, &InvalidInitializerError{Reason: "global.get in a constant expression must reference an immutable global"}
		}
		instr.GlobalIndex = idx
	case OpcodeRefNull:
		rt, err := d.decodeValType(r)
		if err != nil {
			return nil, err
		}
		if rt != ValTypeFuncref && rt != ValTypeExternref {
			return nil, &InvalidInitializerError{Reason: "ref.null operand must be funcref or externref"}
		}
		instr.RefType = rt
	case OpcodeRefFunc:
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		if idx >= d.m.NumFuncs() {
			return nil, newValidationError(r.pos, "ref.func index %d out of range", idx)
		}
		instr.FuncIndex = idx
	default:
		return nil, &InvalidInitializerError{Reason: "non-constant instruction in constant expression"}
	}
	end, err := r.byte()
	if err != nil {
		return nil, err
	}
	if Opcode(end) != OpcodeEnd {
		return nil, &InvalidInitializerError{Reason: "constant expression must contain exactly one instruction before end"}
	}
	return ConstExpr{instr}, nil
}
