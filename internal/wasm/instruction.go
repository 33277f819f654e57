package wasm

// Opcode identifies a single WebAssembly instruction. Ordinary opcodes are
// one byte on the wire; instructions under the 0xFC "misc" prefix carry a
// second ULEB128 sub-opcode index, which the decoder renumbers to
// OpcodeMiscPrefix plus that index so the interpreter can still switch on
// one flat, collision-free type: the decoder rejects single-byte opcodes
// above 0xfc. A plain byte could not hold that renumbered range, which runs
// past 0xff.
type Opcode uint16

// Control instructions.
const (
	OpcodeUnreachable Opcode = 0x00
	OpcodeNop         Opcode = 0x01
	OpcodeBlock       Opcode = 0x02
	OpcodeLoop        Opcode = 0x03
	OpcodeIf          Opcode = 0x04
	OpcodeElse        Opcode = 0x05
	OpcodeEnd         Opcode = 0x0b
	OpcodeBr          Opcode = 0x0c
	OpcodeBrIf        Opcode = 0x0d
	OpcodeBrTable     Opcode = 0x0e
	OpcodeReturn      Opcode = 0x0f
	OpcodeCall        Opcode = 0x10
	OpcodeCallIndirect Opcode = 0x11
)

// Parametric and variable instructions.
const (
	OpcodeDrop       Opcode = 0x1a
	OpcodeSelect     Opcode = 0x1b
	OpcodeLocalGet   Opcode = 0x20
	OpcodeLocalSet   Opcode = 0x21
	OpcodeLocalTee   Opcode = 0x22
	OpcodeGlobalGet  Opcode = 0x23
	OpcodeGlobalSet  Opcode = 0x24
	OpcodeTableGet   Opcode = 0x25
	OpcodeTableSet   Opcode = 0x26
)

// Memory instructions.
const (
	OpcodeI32Load    Opcode = 0x28
	OpcodeI64Load    Opcode = 0x29
	OpcodeF32Load    Opcode = 0x2a
	OpcodeF64Load    Opcode = 0x2b
	OpcodeI32Load8S  Opcode = 0x2c
	OpcodeI32Load8U  Opcode = 0x2d
	OpcodeI32Load16S Opcode = 0x2e
	OpcodeI32Load16U Opcode = 0x2f
	OpcodeI64Load8S  Opcode = 0x30
	OpcodeI64Load8U  Opcode = 0x31
	OpcodeI64Load16S Opcode = 0x32
	OpcodeI64Load16U Opcode = 0x33
	OpcodeI64Load32S Opcode = 0x34
	OpcodeI64Load32U Opcode = 0x35
	OpcodeI32Store   Opcode = 0x36
	OpcodeI64Store   Opcode = 0x37
	OpcodeF32Store   Opcode = 0x38
	OpcodeF64Store   Opcode = 0x39
	OpcodeI32Store8  Opcode = 0x3a
	OpcodeI32Store16 Opcode = 0x3b
	OpcodeI64Store8  Opcode = 0x3c
	OpcodeI64Store16 Opcode = 0x3d
	OpcodeI64Store32 Opcode = 0x3e
	OpcodeMemorySize Opcode = 0x3f
	OpcodeMemoryGrow Opcode = 0x40
)

// Numeric constant and computation instructions.
const (
	OpcodeI32Const Opcode = 0x41
	OpcodeI64Const Opcode = 0x42
	OpcodeF32Const Opcode = 0x43
	OpcodeF64Const Opcode = 0x44

	OpcodeI32Eqz  Opcode = 0x45
	OpcodeI32Eq   Opcode = 0x46
	OpcodeI32Ne   Opcode = 0x47
	OpcodeI32LtS  Opcode = 0x48
	OpcodeI32LtU  Opcode = 0x49
	OpcodeI32GtS  Opcode = 0x4a
	OpcodeI32GtU  Opcode = 0x4b
	OpcodeI32LeS  Opcode = 0x4c
	OpcodeI32LeU  Opcode = 0x4d
	OpcodeI32GeS  Opcode = 0x4e
	OpcodeI32GeU  Opcode = 0x4f

	OpcodeI64Eqz Opcode = 0x50
	OpcodeI64Eq  Opcode = 0x51
	OpcodeI64Ne  Opcode = 0x52
	OpcodeI64LtS Opcode = 0x53
	OpcodeI64LtU Opcode = 0x54
	OpcodeI64GtS Opcode = 0x55
	OpcodeI64GtU Opcode = 0x56
	OpcodeI64LeS Opcode = 0x57
	OpcodeI64LeU Opcode = 0x58
	OpcodeI64GeS Opcode = 0x59
	OpcodeI64GeU Opcode = 0x5a

	OpcodeF32Eq Opcode = 0x5b
	OpcodeF32Ne Opcode = 0x5c
	OpcodeF32Lt Opcode = 0x5d
	OpcodeF32Gt Opcode = 0x5e
	OpcodeF32Le Opcode = 0x5f
	OpcodeF32Ge Opcode = 0x60

	OpcodeF64Eq Opcode = 0x61
	OpcodeF64Ne Opcode = 0x62
	OpcodeF64Lt Opcode = 0x63
	OpcodeF64Gt Opcode = 0x64
	OpcodeF64Le Opcode = 0x65
	OpcodeF64Ge Opcode = 0x66

	OpcodeI32Clz    Opcode = 0x67
	OpcodeI32Ctz    Opcode = 0x68
	OpcodeI32Popcnt Opcode = 0x69
	OpcodeI32Add    Opcode = 0x6a
	OpcodeI32Sub    Opcode = 0x6b
	OpcodeI32Mul    Opcode = 0x6c
	OpcodeI32DivS   Opcode = 0x6d
	OpcodeI32DivU   Opcode = 0x6e
	OpcodeI32RemS   Opcode = 0x6f
	OpcodeI32RemU   Opcode = 0x70
	OpcodeI32And    Opcode = 0x71
	OpcodeI32Or     Opcode = 0x72
	OpcodeI32Xor    Opcode = 0x73
	OpcodeI32Shl    Opcode = 0x74
	OpcodeI32ShrS   Opcode = 0x75
	OpcodeI32ShrU   Opcode = 0x76
	OpcodeI32Rotl   Opcode = 0x77
	OpcodeI32Rotr   Opcode = 0x78

	OpcodeI64Clz    Opcode = 0x79
	OpcodeI64Ctz    Opcode = 0x7a
	OpcodeI64Popcnt Opcode = 0x7b
	OpcodeI64Add    Opcode = 0x7c
	OpcodeI64Sub    Opcode = 0x7d
	OpcodeI64Mul    Opcode = 0x7e
	OpcodeI64DivS   Opcode = 0x7f
	OpcodeI64DivU   Opcode = 0x80
	OpcodeI64RemS   Opcode = 0x81
	OpcodeI64RemU   Opcode = 0x82
	OpcodeI64And    Opcode = 0x83
	OpcodeI64Or     Opcode = 0x84
	OpcodeI64Xor    Opcode = 0x85
	OpcodeI64Shl    Opcode = 0x86
	OpcodeI64ShrS   Opcode = 0x87
	OpcodeI64ShrU   Opcode = 0x88
	OpcodeI64Rotl   Opcode = 0x89
	OpcodeI64Rotr   Opcode = 0x8a

	OpcodeF32Abs      Opcode = 0x8b
	OpcodeF32Neg      Opcode = 0x8c
	OpcodeF32Ceil     Opcode = 0x8d
	OpcodeF32Floor    Opcode = 0x8e
	OpcodeF32Trunc    Opcode = 0x8f
	OpcodeF32Nearest  Opcode = 0x90
	OpcodeF32Sqrt     Opcode = 0x91
	OpcodeF32Add      Opcode = 0x92
	OpcodeF32Sub      Opcode = 0x93
	OpcodeF32Mul      Opcode = 0x94
	OpcodeF32Div      Opcode = 0x95
	OpcodeF32Min      Opcode = 0x96
	OpcodeF32Max      Opcode = 0x97
	OpcodeF32Copysign Opcode = 0x98

	OpcodeF64Abs      Opcode = 0x99
	OpcodeF64Neg      Opcode = 0x9a
	OpcodeF64Ceil     Opcode = 0x9b
	OpcodeF64Floor    Opcode = 0x9c
	OpcodeF64Trunc    Opcode = 0x9d
	OpcodeF64Nearest  Opcode = 0x9e
	OpcodeF64Sqrt     Opcode = 0x9f
	OpcodeF64Add      Opcode = 0xa0
	OpcodeF64Sub      Opcode = 0xa1
	OpcodeF64Mul      Opcode = 0xa2
	OpcodeF64Div      Opcode = 0xa3
	OpcodeF64Min      Opcode = 0xa4
	OpcodeF64Max      Opcode = 0xa5
	OpcodeF64Copysign Opcode = 0xa6

	OpcodeI32WrapI64      Opcode = 0xa7
	OpcodeI32TruncF32S    Opcode = 0xa8
	OpcodeI32TruncF32U    Opcode = 0xa9
	OpcodeI32TruncF64S    Opcode = 0xaa
	OpcodeI32TruncF64U    Opcode = 0xab
	OpcodeI64ExtendI32S   Opcode = 0xac
	OpcodeI64ExtendI32U   Opcode = 0xad
	OpcodeI64TruncF32S    Opcode = 0xae
	OpcodeI64TruncF32U    Opcode = 0xaf
	OpcodeI64TruncF64S    Opcode = 0xb0
	OpcodeI64TruncF64U    Opcode = 0xb1
	OpcodeF32ConvertI32S  Opcode = 0xb2
	OpcodeF32ConvertI32U  Opcode = 0xb3
	OpcodeF32ConvertI64S  Opcode = 0xb4
	OpcodeF32ConvertI64U  Opcode = 0xb5
	OpcodeF32DemoteF64    Opcode = 0xb6
	OpcodeF64ConvertI32S  Opcode = 0xb7
	OpcodeF64ConvertI32U  Opcode = 0xb8
	OpcodeF64ConvertI64S  Opcode = 0xb9
	OpcodeF64ConvertI64U  Opcode = 0xba
	OpcodeF64PromoteF32   Opcode = 0xbb
	OpcodeI32ReinterpretF32 Opcode = 0xbc
	OpcodeI64ReinterpretF64 Opcode = 0xbd
	OpcodeF32ReinterpretI32 Opcode = 0xbe
	OpcodeF64ReinterpretI64 Opcode = 0xbf

	// Sign-extension operators (accepted 2.0 extension, §6).
	OpcodeI32Extend8S  Opcode = 0xc0
	OpcodeI32Extend16S Opcode = 0xc1
	OpcodeI64Extend8S  Opcode = 0xc2
	OpcodeI64Extend16S Opcode = 0xc3
	OpcodeI64Extend32S Opcode = 0xc4

	OpcodeRefNull   Opcode = 0xd0
	OpcodeRefIsNull Opcode = 0xd1
	OpcodeRefFunc   Opcode = 0xd2
)

// OpcodeMiscPrefix introduces the 0xFC "misc" multi-byte opcode space:
// saturating truncation and bulk-memory/table operations. The second byte,
// a ULEB128 index, selects the sub-opcode; the decoder renumbers that index
// into bytes starting here so the interpreter's switch stays flat.
const OpcodeMiscPrefix Opcode = 0xfc

const (
	OpcodeMiscI32TruncSatF32S Opcode = OpcodeMiscPrefix + iota
	OpcodeMiscI32TruncSatF32U
	OpcodeMiscI32TruncSatF64S
	OpcodeMiscI32TruncSatF64U
	OpcodeMiscI64TruncSatF32S
	OpcodeMiscI64TruncSatF32U
	OpcodeMiscI64TruncSatF64S
	OpcodeMiscI64TruncSatF64U
	OpcodeMiscMemoryInit
	OpcodeMiscDataDrop
	OpcodeMiscMemoryCopy
	OpcodeMiscMemoryFill
	OpcodeMiscTableInit
	OpcodeMiscElemDrop
	OpcodeMiscTableCopy
	OpcodeMiscTableGrow
	OpcodeMiscTableSize
	OpcodeMiscTableFill
)

// MemArg is the alignment hint and offset immediate of a memory
// instruction. Alignment is not enforced (unaligned access is always
// legal per the spec); it is kept only for round-tripping encode/decode.
type MemArg struct {
	Align uint32
	Offset uint32
}

// BlockTypeKind distinguishes the three encodings of a structured
// instruction's type immediate.
type BlockTypeKind byte

const (
	BlockTypeEmpty BlockTypeKind = iota
	BlockTypeValue
	BlockTypeFuncType
)

// BlockType is the decoded (but not yet arity-resolved — that's cached
// directly on Instruction) type immediate of a block/loop/if.
type BlockType struct {
	Kind      BlockTypeKind
	ValueType ValType
	TypeIndex uint32
}

// BrTableTarget is one precomputed branch target: the enclosing block/
// loop/if instruction's own index (the interpreter resolves the actual
// jump address from it — its own index for a loop, its EndOffset
// otherwise), the number of values the branch carries across the jump,
// and the operand-stack height to truncate back to below those carried
// values, so a branch out of nested expressions never needs to walk a
// runtime label stack to find either value.
type BrTableTarget struct {
	InstrIndex uint32
	Arity      uint32
	StackBase  uint32
}

// Instruction is one decoded opcode, annotated at decode time with
// everything the interpreter needs to execute it in O(1): resolved
// branch/jump targets instead of block-type/opcode structural search.
//
// Not every field applies to every opcode; see the decoder for which
// fields a given Opcode populates.
type Instruction struct {
	Opcode Opcode

	// Operands, reused across opcode kinds.
	LocalIndex  uint32 // local.get/set/tee
	GlobalIndex uint32 // global.get/set
	TableIndex  uint32 // table.*, call_indirect; table.copy's destination
	FuncIndex   uint32 // call, ref.func
	TypeIndex   uint32 // call_indirect's declared type
	ElemIndex   uint32 // table.init, elem.drop; table.copy's source table
	DataIndex   uint32 // memory.init, data.drop
	ConstI64    int64  // i32.const (truncated)/i64.const
	ConstF64Bits uint64 // f32.const (widened)/f64.const bit pattern, see IsF32
	IsF32       bool
	RefType     ValType // ref.null's operand type
	MemArg      MemArg

	// SelectTypes is non-nil for the typed `select t*` encoding (always
	// length 1 in WebAssembly 1.0's restricted form).
	SelectTypes []ValType

	// Control-flow annotation, populated by the decoder's single linear
	// pass described in §4.2.
	BlockType    BlockType
	BlockParams  uint32 // resolved arity, cached so execution needs no type-section lookup.
	BlockResults uint32
	// ElseOffset is the instruction index of the matching `else` (or of
	// EndOffset if the `if` has no else branch). Only set on OpcodeIf.
	ElseOffset uint32
	// EndOffset is the instruction index of this block/if's own matching
	// `end` (a no-op the interpreter falls through), set on the
	// block/if instruction itself and, when present, on its `else`.
	EndOffset uint32

	// BrTableTargets holds one target per labelidx in a br_table vector,
	// plus the default target as BrTableTargets[0]... actually see
	// decoder: index 0 is the default branch followed by len(targets)-1
	// explicit targets, mirroring the binary encoding's vector-then-default
	// order collapsed into one slice for O(1) indexing at dispatch time.
	BrTableTargets []BrTableTarget
	// BrTarget is the relative label depth operand of br/br_if, resolved
	// at validation time into an absolute BrTarget so the interpreter
	// never walks the block stack.
	BrTarget BrTableTarget
}
