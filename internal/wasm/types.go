// Package wasm holds the static module representation produced by the
// decoder, the runtime store, and the instantiation logic that links the
// two together. It does not itself dispatch instructions; that is
// internal/engine/interpreter's job.
package wasm

import (
	"strings"

	"github.com/tinygo-wasm/tinywasm/api"
)

// ValType aliases api.ValueType so the decoder and store share one type
// vocabulary with the public API.
type ValType = api.ValueType

const (
	ValTypeI32       = api.ValueTypeI32
	ValTypeI64       = api.ValueTypeI64
	ValTypeF32       = api.ValueTypeF32
	ValTypeF64       = api.ValueTypeF64
	ValTypeFuncref   = api.ValueTypeFuncref
	ValTypeExternref = api.ValueTypeExternref
)

// FuncType is an ordered sequence of parameter types and an ordered
// sequence of result types. Equality is structural.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether ft and o describe the same parameter and result
// sequences.
func (ft *FuncType) Equal(o *FuncType) bool {
	if ft == o {
		return true
	}
	if ft == nil || o == nil {
		return false
	}
	return sliceEqual(ft.Params, o.Params) && sliceEqual(ft.Results, o.Results)
}

func sliceEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders a FuncType using the Params/Results shorthand used in
// error messages and debug traces, e.g. "i32i64_f32".
func (ft *FuncType) String() string {
	ps := valTypesString(ft.Params)
	rs := valTypesString(ft.Results)
	return ps + "_" + rs
}

func valTypesString(vs []ValType) string {
	if len(vs) == 0 {
		return "null"
	}
	var b strings.Builder
	for _, v := range vs {
		b.WriteString(api.ValueTypeName(v))
	}
	return b.String()
}

// Limits bound the size of a table or memory, expressed in elements or
// pages respectively.
type Limits struct {
	Min uint32
	Max *uint32 // nil means unbounded (up to the implicit maximum).
}

// TableType describes the element type and size bounds of a table.
type TableType struct {
	ElemType ValType // ValTypeFuncref or ValTypeExternref.
	Limits   Limits
}

// MemoryType describes the size bounds, in pages, of a linear memory.
type MemoryType struct {
	Limits Limits
}

// GlobalType describes the value type and mutability of a global.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// ExternType classifies an import or export, carrying only the fields
// relevant to its Kind.
type ExternType struct {
	Kind          api.ExternType
	FuncTypeIndex uint32
	Table         TableType
	Memory        MemoryType
	Global        GlobalType
}

// Import is a single entry of the import section: a two-level name plus the
// type the host is expected to satisfy.
type Import struct {
	Module string
	Name   string
	Type   ExternType
	// DescIndex is the module-local index this import occupies in its
	// space (funcs/tables/memories/globals are numbered with imports
	// first).
	DescIndex uint32
}

// Export maps a unique name to an index in one of the module's spaces.
type Export struct {
	Name  string
	Type  api.ExternType
	Index uint32
}

// Global is a module-declared global: its type, and the constant
// initializer expression establishing its starting value.
type Global struct {
	Type GlobalType
	Init ConstExpr
}

// Table is a module-declared table type. WebAssembly 1.0 tables have no
// initializer beyond their null-filled starting contents; initial non-null
// entries arrive via active element segments.
type Table struct {
	Type TableType
}

// Memory is a module-declared memory type.
type Memory struct {
	Type MemoryType
}

// SegmentMode distinguishes how an element or data segment is applied at
// instantiation time.
type SegmentMode byte

const (
	// SegmentModeActive segments are copied into a table/memory at
	// instantiation and then dropped.
	SegmentModeActive SegmentMode = iota
	// SegmentModePassive segments are retained until an explicit
	// elem.drop/data.drop or table.init/memory.init.
	SegmentModePassive
	// SegmentModeDeclarative segments (element segments only) are never
	// copied; they exist only to make a funcref referenceable by
	// ref.func and are dropped immediately.
	SegmentModeDeclarative
)

// ElementSegment is one entry of the element section.
type ElementSegment struct {
	Mode       SegmentMode
	TableIndex uint32    // meaningful only when Mode == SegmentModeActive.
	Offset     ConstExpr // meaningful only when Mode == SegmentModeActive.
	Type       ValType   // ValTypeFuncref or ValTypeExternref.
	// Init is the sequence of references, each given either as a bare
	// function index (common case) or a full constant expression
	// (ref.null / ref.func).
	Init []ConstExpr
}

// DataSegment is one entry of the data section.
type DataSegment struct {
	Mode       SegmentMode
	MemoryIndex uint32    // meaningful only when Mode == SegmentModeActive.
	Offset      ConstExpr // meaningful only when Mode == SegmentModeActive.
	Init        []byte
}

// NameSection holds the optional debug names recovered from the "name"
// custom section, used only to make traps and stack traces readable.
type NameSection struct {
	ModuleName    string
	FunctionNames map[uint32]string
}

// Module is the validated, immutable, decode-time representation of a
// WebAssembly binary. Nothing in Module is mutated after Decode returns.
type Module struct {
	Types []FuncType

	Imports []Import
	// NumImportedFuncs/Tables/Memories/Globals count the imports of each
	// kind. Imports come first in each index space, and FuncTypeIndexes,
	// Tables, Memories and Globals below hold only this module's own
	// definitions, so module-local index i is either "the i-th import of
	// that kind" or, e.g., "Globals[i-NumImportedGlobals]".
	NumImportedFuncs    uint32
	NumImportedTables   uint32
	NumImportedMemories uint32
	NumImportedGlobals  uint32

	// FuncTypeIndexes[i] is the type-section index of the i-th
	// module-defined function (Code[i] is its body).
	FuncTypeIndexes []uint32
	Code            []Code

	Tables    []Table
	Memories  []Memory
	Globals   []Global
	Elements  []ElementSegment
	Datas     []DataSegment
	HasDataCount bool // the data-count section was present.

	Exports    []Export
	ExportMap  map[string]Export

	Start *uint32

	NameSection *NameSection

	// ID is a content hash identifying this Module, used by the engine to
	// key compiled-function caches across repeated instantiation of one
	// decoded Module.
	ID [32]byte
}

// TypeOfFunc returns the FuncType of the function at module-local index
// idx, spanning imported and module-defined functions.
func (m *Module) TypeOfFunc(idx uint32) *FuncType {
	if idx < m.NumImportedFuncs {
		for _, im := range m.Imports {
			if im.Type.Kind == api.ExternTypeFunc && im.DescIndex == idx {
				return &m.Types[im.Type.FuncTypeIndex]
			}
		}
		return nil
	}
	return &m.Types[m.FuncTypeIndexes[idx-m.NumImportedFuncs]]
}

// NumFuncs is the size of the function index space (imports plus
// module-defined).
func (m *Module) NumFuncs() uint32 {
	return m.NumImportedFuncs + uint32(len(m.FuncTypeIndexes))
}

// NumTables is the size of the table index space.
func (m *Module) NumTables() uint32 {
	return m.NumImportedTables + uint32(len(m.Tables))
}

// NumMemories is the size of the memory index space.
func (m *Module) NumMemories() uint32 {
	return m.NumImportedMemories + uint32(len(m.Memories))
}

// NumGlobals is the size of the global index space.
func (m *Module) NumGlobals() uint32 {
	return m.NumImportedGlobals + uint32(len(m.Globals))
}

// DebugName returns a human-readable name for the function at index idx,
// preferring the name section, falling back to "$<idx>".
func (m *Module) DebugName(idx uint32) string {
	if m.NameSection != nil {
		if n, ok := m.NameSection.FunctionNames[idx]; ok && n != "" {
			return n
		}
	}
	return "$" + uitoa(idx)
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Code is a module-defined function body: its local declarations and its
// flattened, control-flow-annotated instruction stream.
type Code struct {
	// LocalTypes holds one entry per additional local (beyond
	// parameters), in declared order.
	LocalTypes []ValType
	Body       []Instruction
	// MaxStackHeight is computed during validation and used to
	// pre-size the interpreter's value stack for this call.
	MaxStackHeight int
}

// ConstExpr holds the single instruction of a constant expression (its
// terminating `end` is consumed by the decoder and not stored),
// restricted, per §4.3, to t.const, global.get of an imported immutable
// global, ref.null and ref.func.
type ConstExpr []Instruction
