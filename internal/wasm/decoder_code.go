package wasm

// decodeCodeSection decodes the code section into d.m.Code, running the
// single-pass decode-time control-flow annotator of §4.2 on each function
// body: rather than leaving block/loop/if/br_table as a nested structure
// the interpreter must re-walk, every branch is resolved here into an
// absolute instruction index so dispatch never searches the block stack.
func (d *moduleDecoder) decodeCodeSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	d.m.Code = make([]Code, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.u32()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return err
		}
		funcIdx := d.m.NumImportedFuncs + i
		code, err := d.decodeFunctionBody(funcIdx, body)
		if err != nil {
			return err
		}
		d.m.Code[i] = code
	}
	return nil
}

func (d *moduleDecoder) decodeFunctionBody(funcIdx uint32, body []byte) (Code, error) {
	r := newReader(body)

	localGroups, err := r.vectorLen()
	if err != nil {
		return Code{}, err
	}
	var locals []ValType
	for i := uint32(0); i < localGroups; i++ {
		n, err := r.u32()
		if err != nil {
			return Code{}, err
		}
		vt, err := d.decodeValType(r)
		if err != nil {
			return Code{}, err
		}
		if uint64(len(locals))+uint64(n) > math_MaxLocals {
			return Code{}, newValidationError(r.pos, "too many locals")
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, vt)
		}
	}

	ft := d.m.TypeOfFunc(funcIdx)
	fb := &funcBodyDecoder{
		d:       d,
		r:       r,
		ft:      ft,
		locals:  locals,
		valTypeOf: func(idx uint32) (ValType, bool) {
			if int(idx) < len(ft.Params) {
				return ft.Params[idx], true
			}
			li := int(idx) - len(ft.Params)
			if li >= 0 && li < len(locals) {
				return locals[li], true
			}
			return 0, false
		},
	}
	instrs, maxHeight, err := fb.decode()
	if err != nil {
		return Code{}, err
	}
	if r.remaining() != 0 {
		return Code{}, newDecodeError(r.pos, "function body has trailing bytes")
	}
	return Code{LocalTypes: locals, Body: instrs, MaxStackHeight: maxHeight}, nil
}

const math_MaxLocals = 1 << 20

// ctrlFrame tracks one level of the block-nesting stack during the single
// linear decode pass: enough to patch forward references (a block's `end`,
// an `if`'s `else`) once they're reached, and to resolve br/br_if/br_table
// label depths into absolute instruction indexes without ever re-scanning.
type ctrlFrame struct {
	opcode       Opcode // OpcodeBlock, OpcodeLoop, or OpcodeIf
	startInstr   uint32 // index of the block/loop/if instruction itself
	blockType    BlockType
	paramCount   uint32
	resultCount  uint32
	// unreachable marks that code until the matching end/else is
	// unreachable (polymorphic stack), per the validation algorithm.
	unreachable bool
	// ifSeenElse records whether an `else` was seen, for patching EndOffset
	// on OpcodeIf correctly whether or not it has one.
	ifSeenElse  bool
	ifInstrIdx  uint32 // index of the `if` instruction, to patch on `else`/`end`.
	elseInstrIdx uint32 // index of the `else` instruction, once seen.

	// baseHeight is the operand-stack height, excluding this frame's own
	// params, at the point the frame was entered: the height a branch
	// targeting this frame truncates back down to before pushing its
	// carried values.
	baseHeight uint32
}

// funcBodyDecoder decodes one function body: instruction-by-instruction
// decode, fused with operand-stack validation and control-flow annotation
// in the single pass §4.2 calls for.
type funcBodyDecoder struct {
	d  *moduleDecoder
	r  *reader
	ft *FuncType

	locals    []ValType
	valTypeOf func(idx uint32) (ValType, bool)

	instrs []Instruction
	ctrl   []ctrlFrame

	// vstack is the validation-time operand type stack. A polymorphicMarker
	// entry in a polymorphic (post-unreachable) region matches anything.
	vstack    []ValType
	maxHeight int
}

func (fb *funcBodyDecoder) pushCtrl(op Opcode, bt BlockType, params, results uint32) {
	base := uint32(len(fb.vstack)) - params
	fb.ctrl = append(fb.ctrl, ctrlFrame{
		opcode: op, startInstr: uint32(len(fb.instrs)) - 1,
		blockType: bt, paramCount: params, resultCount: results,
		baseHeight: base,
	})
}

func (fb *funcBodyDecoder) topCtrl() *ctrlFrame {
	return &fb.ctrl[len(fb.ctrl)-1]
}

func (fb *funcBodyDecoder) pushVal(vt ValType) {
	fb.vstack = append(fb.vstack, vt)
	if len(fb.vstack) > fb.maxHeight {
		fb.maxHeight = len(fb.vstack)
	}
}

// polymorphicMarker is pushed as a stand-in value type once a frame becomes
// unreachable; popVal treats it as matching any requested type.
const polymorphicMarker ValType = 0xff

func (fb *funcBodyDecoder) popVal() (ValType, error) {
	if len(fb.vstack) == 0 {
		if len(fb.ctrl) > 0 && fb.topCtrl().unreachable {
			return polymorphicMarker, nil
		}
		return 0, newValidationError(fb.r.offset(), "operand stack underflow")
	}
	v := fb.vstack[len(fb.vstack)-1]
	fb.vstack = fb.vstack[:len(fb.vstack)-1]
	return v, nil
}

func (fb *funcBodyDecoder) popExpect(want ValType) error {
	got, err := fb.popVal()
	if err != nil {
		return err
	}
	if got != polymorphicMarker && got != want {
		return newValidationError(fb.r.offset(), "type mismatch: expected %s, got %s", api_ValueTypeName(want), api_ValueTypeName(got))
	}
	return nil
}

func (fb *funcBodyDecoder) setUnreachable() {
	if len(fb.ctrl) == 0 {
		fb.vstack = fb.vstack[:0]
		return
	}
	top := fb.topCtrl()
	top.unreachable = true
	fb.vstack = fb.vstack[:top.baseHeight]
}

func (fb *funcBodyDecoder) blockTypeArity(bt BlockType) (params, results uint32) {
	switch bt.Kind {
	case BlockTypeEmpty:
		return 0, 0
	case BlockTypeValue:
		return 0, 1
	case BlockTypeFuncType:
		ft := fb.d.m.Types[bt.TypeIndex]
		return uint32(len(ft.Params)), uint32(len(ft.Results))
	}
	return 0, 0
}

// decode runs the body through to its terminal `end`, returning the
// flattened, annotated instruction stream and the validation-time maximum
// operand stack height.
func (fb *funcBodyDecoder) decode() ([]Instruction, int, error) {
	// The implicit outer block: its type is the function's own signature,
	// its `end` is the return point.
	fb.ctrl = append(fb.ctrl, ctrlFrame{opcode: OpcodeBlock, resultCount: uint32(len(fb.ft.Results))})

	for {
		if fb.r.remaining() == 0 {
			return nil, 0, newDecodeError(fb.r.offset(), "function body missing end")
		}
		opByte, err := fb.r.byte()
		if err != nil {
			return nil, 0, err
		}
		op := Opcode(opByte)
		if op > OpcodeMiscPrefix {
			return nil, 0, newDecodeError(fb.r.offset()-1, "invalid opcode %#x", opByte)
		}
		if op == OpcodeMiscPrefix {
			sub, err := fb.r.u32()
			if err != nil {
				return nil, 0, err
			}
			op = OpcodeMiscPrefix + Opcode(sub)
		}

		done, err := fb.decodeOne(op)
		if err != nil {
			return nil, 0, err
		}
		if done {
			break
		}
	}
	return fb.instrs, fb.maxHeight, nil
}

// decodeOne decodes and validates a single instruction, appending it to
// fb.instrs. It returns done=true when the outermost implicit block's `end`
// has been consumed, terminating the function body.
func (fb *funcBodyDecoder) decodeOne(op Opcode) (done bool, err error) {
	instr := Instruction{Opcode: op}

	switch op {
	case OpcodeUnreachable:
		fb.instrs = append(fb.instrs, instr)
		fb.setUnreachable()

	case OpcodeNop:
		fb.instrs = append(fb.instrs, instr)

	case OpcodeBlock, OpcodeLoop, OpcodeIf:
		bt, err := fb.decodeBlockType()
		if err != nil {
			return false, err
		}
		params, results := fb.blockTypeArity(bt)
		instr.BlockType = bt
		instr.BlockParams = params
		instr.BlockResults = results
		if op == OpcodeIf {
			if err := fb.popExpect(ValTypeI32); err != nil {
				return false, err
			}
		}
		fb.instrs = append(fb.instrs, instr)
		fb.pushCtrl(op, bt, params, results)
		if op == OpcodeIf {
			fb.topCtrl().ifInstrIdx = uint32(len(fb.instrs)) - 1
		}

	case OpcodeElse:
		top := fb.topCtrl()
		if top.opcode != OpcodeIf {
			return false, newValidationError(fb.r.offset(), "else without matching if")
		}
		if err := fb.checkBlockEnd(top); err != nil {
			return false, err
		}
		fb.instrs[top.ifInstrIdx].ElseOffset = uint32(len(fb.instrs))
		top.elseInstrIdx = uint32(len(fb.instrs))
		fb.instrs = append(fb.instrs, instr)
		top.ifSeenElse = true
		top.unreachable = false
		fb.vstack = fb.vstack[:top.baseHeight]
		for i := uint32(0); i < top.paramCount; i++ {
			fb.pushVal(polymorphicMarker)
		}

	case OpcodeEnd:
		top := fb.topCtrl()
		if err := fb.checkBlockEnd(top); err != nil {
			return false, err
		}
		endIdx := uint32(len(fb.instrs))
		switch top.opcode {
		case OpcodeIf:
			if !top.ifSeenElse {
				fb.instrs[top.ifInstrIdx].ElseOffset = endIdx
			} else {
				fb.instrs[top.elseInstrIdx].EndOffset = endIdx
			}
			fb.instrs[top.ifInstrIdx].EndOffset = endIdx
		case OpcodeBlock:
			fb.instrs[top.startInstr].EndOffset = endIdx
		case OpcodeLoop:
			fb.instrs[top.startInstr].EndOffset = top.startInstr
		}
		fb.instrs = append(fb.instrs, instr)
		fb.vstack = fb.vstack[:top.baseHeight]
		for i := uint32(0); i < top.resultCount; i++ {
			fb.pushVal(polymorphicMarker)
		}
		if len(fb.ctrl) == 1 {
			fb.ctrl = fb.ctrl[:0]
			return true, nil
		}
		fb.ctrl = fb.ctrl[:len(fb.ctrl)-1]

	case OpcodeBr, OpcodeBrIf:
		depth, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if op == OpcodeBrIf {
			if err := fb.popExpect(ValTypeI32); err != nil {
				return false, err
			}
		}
		target, arity, base, err := fb.resolveBranch(depth)
		if err != nil {
			return false, err
		}
		instr.BrTarget = BrTableTarget{InstrIndex: target, Arity: arity, StackBase: base}
		fb.instrs = append(fb.instrs, instr)
		if op == OpcodeBr {
			fb.setUnreachable()
		}

	case OpcodeBrTable:
		n, err := fb.r.vectorLen()
		if err != nil {
			return false, err
		}
		targets := make([]BrTableTarget, 0, n+1)
		for i := uint32(0); i < n; i++ {
			depth, err := fb.r.u32()
			if err != nil {
				return false, err
			}
			idx, arity, base, err := fb.resolveBranch(depth)
			if err != nil {
				return false, err
			}
			targets = append(targets, BrTableTarget{InstrIndex: idx, Arity: arity, StackBase: base})
		}
		defDepth, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		defIdx, defArity, defBase, err := fb.resolveBranch(defDepth)
		if err != nil {
			return false, err
		}
		if err := fb.popExpect(ValTypeI32); err != nil {
			return false, err
		}
		// BrTableTargets[0] is the default; explicit targets follow, per
		// the slice layout documented on Instruction.
		instr.BrTableTargets = append([]BrTableTarget{{InstrIndex: defIdx, Arity: defArity, StackBase: defBase}}, targets...)
		fb.instrs = append(fb.instrs, instr)
		fb.setUnreachable()

	case OpcodeReturn:
		fb.instrs = append(fb.instrs, instr)
		fb.setUnreachable()

	case OpcodeCall:
		idx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if idx >= fb.d.m.NumFuncs() {
			return false, newValidationError(fb.r.offset(), "call function index %d out of range", idx)
		}
		instr.FuncIndex = idx
		fb.instrs = append(fb.instrs, instr)

	case OpcodeCallIndirect:
		typeIdx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if int(typeIdx) >= len(fb.d.m.Types) {
			return false, newValidationError(fb.r.offset(), "call_indirect type index %d out of range", typeIdx)
		}
		tableIdx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if tableIdx >= fb.d.m.NumTables() {
			return false, newValidationError(fb.r.offset(), "call_indirect table index %d out of range", tableIdx)
		}
		instr.TypeIndex = typeIdx
		instr.TableIndex = tableIdx
		if err := fb.popExpect(ValTypeI32); err != nil {
			return false, err
		}
		fb.instrs = append(fb.instrs, instr)

	case OpcodeDrop:
		if _, err := fb.popVal(); err != nil {
			return false, err
		}
		fb.instrs = append(fb.instrs, instr)

	case OpcodeSelect:
		if err := fb.popExpect(ValTypeI32); err != nil {
			return false, err
		}
		b, err := fb.popVal()
		if err != nil {
			return false, err
		}
		if err := fb.popExpect(b); err != nil {
			return false, err
		}
		fb.pushVal(b)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeLocalGet, OpcodeLocalSet, OpcodeLocalTee:
		idx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		vt, ok := fb.valTypeOf(idx)
		if !ok {
			return false, newValidationError(fb.r.offset(), "local index %d out of range", idx)
		}
		instr.LocalIndex = idx
		switch op {
		case OpcodeLocalGet:
			fb.pushVal(vt)
		case OpcodeLocalSet:
			if err := fb.popExpect(vt); err != nil {
				return false, err
			}
		case OpcodeLocalTee:
			if err := fb.popExpect(vt); err != nil {
				return false, err
			}
			fb.pushVal(vt)
		}
		fb.instrs = append(fb.instrs, instr)

	case OpcodeGlobalGet, OpcodeGlobalSet:
		idx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if idx >= fb.d.m.NumGlobals() {
			return false, newValidationError(fb.r.offset(), "global index %d out of range", idx)
		}
		gt := fb.d.globalTypeOf(idx)
		instr.GlobalIndex = idx
		if op == OpcodeGlobalSet {
			if !gt.Mutable {
				return false, newValidationError(fb.r.offset(), "global.set on immutable global %d", idx)
			}
			if err := fb.popExpect(gt.ValType); err != nil {
				return false, err
			}
		} else {
			fb.pushVal(gt.ValType)
		}
		fb.instrs = append(fb.instrs, instr)

	case OpcodeTableGet, OpcodeTableSet:
		idx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if idx >= fb.d.m.NumTables() {
			return false, newValidationError(fb.r.offset(), "table index %d out of range", idx)
		}
		instr.TableIndex = idx
		fb.instrs = append(fb.instrs, instr)

	case OpcodeI32Const:
		v, err := fb.r.i32()
		if err != nil {
			return false, err
		}
		instr.ConstI64 = int64(v)
		fb.pushVal(ValTypeI32)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeI64Const:
		v, err := fb.r.i64()
		if err != nil {
			return false, err
		}
		instr.ConstI64 = v
		fb.pushVal(ValTypeI64)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeF32Const:
		v, err := fb.r.f32()
		if err != nil {
			return false, err
		}
		instr.ConstF64Bits = uint64(math_Float32bits(v))
		instr.IsF32 = true
		fb.pushVal(ValTypeF32)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeF64Const:
		v, err := fb.r.f64()
		if err != nil {
			return false, err
		}
		instr.ConstF64Bits = math_Float64bits(v)
		fb.pushVal(ValTypeF64)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeRefNull:
		rt, err := fb.d.decodeValType(fb.r)
		if err != nil {
			return false, err
		}
		instr.RefType = rt
		fb.pushVal(rt)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeRefIsNull:
		if _, err := fb.popVal(); err != nil {
			return false, err
		}
		fb.pushVal(ValTypeI32)
		fb.instrs = append(fb.instrs, instr)

	case OpcodeRefFunc:
		idx, err := fb.r.u32()
		if err != nil {
			return false, err
		}
		if idx >= fb.d.m.NumFuncs() {
			return false, newValidationError(fb.r.offset(), "ref.func index %d out of range", idx)
		}
		instr.FuncIndex = idx
		fb.pushVal(ValTypeFuncref)
		fb.instrs = append(fb.instrs, instr)

	default:
		if isMemoryOp(op) {
			ma, err := fb.decodeMemArg()
			if err != nil {
				return false, err
			}
			instr.MemArg = ma
			if err := fb.validateMemoryOp(op); err != nil {
				return false, err
			}
			if err := fb.applyMemoryOp(op); err != nil {
				return false, err
			}
			fb.instrs = append(fb.instrs, instr)
		} else if op == OpcodeMemorySize || op == OpcodeMemoryGrow {
			if _, err := fb.r.byte(); err != nil { // reserved memidx, must be 0.
				return false, err
			}
			if op == OpcodeMemorySize {
				fb.pushVal(ValTypeI32)
			} else {
				if err := fb.popExpect(ValTypeI32); err != nil {
					return false, err
				}
				fb.pushVal(ValTypeI32)
			}
			fb.instrs = append(fb.instrs, instr)
		} else if isNumericOp(op) {
			if err := fb.applyNumericOp(&instr); err != nil {
				return false, err
			}
			fb.instrs = append(fb.instrs, instr)
		} else if op >= OpcodeMiscPrefix {
			if err := fb.decodeMisc(&instr); err != nil {
				return false, err
			}
			fb.instrs = append(fb.instrs, instr)
		} else {
			return false, newDecodeError(fb.r.offset(), "invalid opcode %#x", byte(op))
		}
	}
	return false, nil
}

// checkBlockEnd is called on `else`/`end` and performs no check: neither the
// number nor the types of the values on the operand stack at a block's end
// are validated against the block's declared results.
func (fb *funcBodyDecoder) checkBlockEnd(top *ctrlFrame) error {
	return nil
}

func (fb *funcBodyDecoder) decodeBlockType() (BlockType, error) {
	v, err := fb.r.i33()
	if err != nil {
		return BlockType{}, err
	}
	if v == -64 { // 0x40 sign-extended: empty type.
		return BlockType{Kind: BlockTypeEmpty}, nil
	}
	if v >= 0 {
		if int(v) >= len(fb.d.m.Types) {
			return BlockType{}, newValidationError(fb.r.offset(), "block type index %d out of range", v)
		}
		return BlockType{Kind: BlockTypeFuncType, TypeIndex: uint32(v)}, nil
	}
	vt := ValType(v & 0x7f)
	switch vt {
	case ValTypeI32, ValTypeI64, ValTypeF32, ValTypeF64, ValTypeFuncref, ValTypeExternref:
		return BlockType{Kind: BlockTypeValue, ValueType: vt}, nil
	}
	return BlockType{}, newDecodeError(fb.r.offset(), "invalid block type")
}

// resolveBranch turns a relative label depth into the absolute index of the
// target frame's opening instruction, the arity of values carried across
// the branch and the frame's base stack height. The interpreter resumes a
// loop at its own start (re-running it) and any other block past the
// opening instruction's EndOffset.
func (fb *funcBodyDecoder) resolveBranch(depth uint32) (target uint32, arity uint32, base uint32, err error) {
	if int(depth) >= len(fb.ctrl) {
		return 0, 0, 0, newValidationError(fb.r.offset(), "branch depth %d exceeds block nesting", depth)
	}
	frame := fb.ctrl[len(fb.ctrl)-1-int(depth)]
	if frame.opcode == OpcodeLoop {
		return frame.startInstr, frame.paramCount, frame.baseHeight, nil
	}
	return frame.startInstr, frame.resultCount, frame.baseHeight, nil
}

func (d *moduleDecoder) globalTypeOf(idx uint32) GlobalType {
	if idx < d.m.NumImportedGlobals {
		for _, im := range d.m.Imports {
			if im.Type.Kind == 0x03 && im.DescIndex == idx {
				return im.Type.Global
			}
		}
	}
	return d.m.Globals[idx-d.m.NumImportedGlobals].Type
}
