package wasm

import (
	"crypto/sha256"

	"github.com/tinygo-wasm/tinywasm/api"
)

// SectionID identifies one section of the binary format, §4.2.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
)

// SectionIDName returns the section id's canonical name, or "unknown".
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data_count"
	}
	return "unknown"
}

// sectionOrder maps a known, non-custom section id to its position in the
// canonical ordering of §4.2. Custom sections (id 0) may appear between any
// two sections, or at the end, and are exempt from this check.
var sectionOrder = map[SectionID]int{
	SectionIDType:      0,
	SectionIDImport:    1,
	SectionIDFunction:  2,
	SectionIDTable:     3,
	SectionIDMemory:    4,
	SectionIDGlobal:    5,
	SectionIDExport:    6,
	SectionIDStart:     7,
	SectionIDElement:   8,
	SectionIDCode:      9,
	SectionIDData:      10,
	SectionIDDataCount: 11,
}

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const wasmVersion1 = uint32(1)

// Features toggles which 2.0 extensions (§6: "accepted 2.0 extensions") the
// decoder and validator accept. All default true; an embedder can disable
// one to reject modules that rely on it.
type Features struct {
	MultiValue       bool
	MutableGlobals   bool
	SignExtensionOps bool
	SaturatingTruncation bool
	ReferenceTypes   bool
	BulkMemory       bool
}

// DefaultFeatures enables every extension this implementation supports.
func DefaultFeatures() Features {
	return Features{
		MultiValue:           true,
		MutableGlobals:       true,
		SignExtensionOps:     true,
		SaturatingTruncation: true,
		ReferenceTypes:       true,
		BulkMemory:           true,
	}
}

// Decode parses buf as a WebAssembly 1.0 binary module, validating as it
// goes, and returns the resulting immutable Module.
func Decode(buf []byte, features Features) (*Module, error) {
	r := newReader(buf)
	if err := decodePreamble(r); err != nil {
		return nil, err
	}

	m := &Module{ExportMap: map[string]Export{}}
	d := &moduleDecoder{r: r, m: m, features: features}

	seenOrder := -1
	var customSections [][]byte
	for r.remaining() > 0 {
		idByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		id := SectionID(idByte)
		if id > SectionIDDataCount {
			return nil, newDecodeError(r.pos-1, "unknown section id %d", idByte)
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		sectionStart := r.pos
		sectionBytes, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		if id == SectionIDCustom {
			customSections = append(customSections, sectionBytes)
			if err := d.decodeCustomSection(sectionBytes); err != nil {
				return nil, err
			}
			continue
		}

		order, ok := sectionOrder[id]
		if !ok {
			return nil, newDecodeError(sectionStart, "unknown section id %d", id)
		}
		if order <= seenOrder {
			return nil, newDecodeError(sectionStart, "section %s out of order or duplicated", SectionIDName(id))
		}
		seenOrder = order

		sr := newReader(sectionBytes)
		if err := d.decodeKnownSection(id, sr); err != nil {
			return nil, err
		}
		if sr.remaining() != 0 {
			return nil, newDecodeError(sectionStart+sr.pos, "section %s has trailing bytes", SectionIDName(id))
		}
	}

	if err := d.finalize(); err != nil {
		return nil, err
	}

	m.ID = sha256.Sum256(buf)
	return m, nil
}

func decodePreamble(r *reader) error {
	magic, err := r.bytes(4)
	if err != nil {
		return newDecodeError(0, "missing magic header")
	}
	if [4]byte(magic) != wasmMagic {
		return newDecodeError(0, "invalid magic header")
	}
	verBytes, err := r.bytes(4)
	if err != nil {
		return newDecodeError(4, "missing version")
	}
	version := uint32(verBytes[0]) | uint32(verBytes[1])<<8 | uint32(verBytes[2])<<16 | uint32(verBytes[3])<<24
	if version != wasmVersion1 {
		return newDecodeError(4, "unsupported version %d", version)
	}
	return nil
}

// moduleDecoder carries the shared mutable decode state that spans
// sections: function type indexes must be known before the code section is
// decoded, for instance.
type moduleDecoder struct {
	r        *reader
	m        *Module
	features Features
}

func (d *moduleDecoder) decodeKnownSection(id SectionID, r *reader) error {
	switch id {
	case SectionIDType:
		return d.decodeTypeSection(r)
	case SectionIDImport:
		return d.decodeImportSection(r)
	case SectionIDFunction:
		return d.decodeFunctionSection(r)
	case SectionIDTable:
		return d.decodeTableSection(r)
	case SectionIDMemory:
		return d.decodeMemorySection(r)
	case SectionIDGlobal:
		return d.decodeGlobalSection(r)
	case SectionIDExport:
		return d.decodeExportSection(r)
	case SectionIDStart:
		return d.decodeStartSection(r)
	case SectionIDElement:
		return d.decodeElementSection(r)
	case SectionIDCode:
		return d.decodeCodeSection(r)
	case SectionIDData:
		return d.decodeDataSection(r)
	case SectionIDDataCount:
		return d.decodeDataCountSection(r)
	}
	return newDecodeError(r.pos, "unknown section id %d", id)
}

// decodeCustomSection only inspects the "name" custom section (§4.2: custom
// sections are otherwise skipped, "payload preserved only if a name-section
// consumer is wired in").
func (d *moduleDecoder) decodeCustomSection(b []byte) error {
	r := newReader(b)
	name, err := r.name()
	if err != nil {
		// A malformed custom section name is tolerated: custom sections
		// are not required to be well-formed beyond the outer framing.
		return nil
	}
	if name != "name" {
		return nil
	}
	ns := &NameSection{FunctionNames: map[uint32]string{}}
	for r.remaining() > 0 {
		subID, err := r.byte()
		if err != nil {
			return nil
		}
		size, err := r.u32()
		if err != nil {
			return nil
		}
		sub, err := r.bytes(int(size))
		if err != nil {
			return nil
		}
		sr := newReader(sub)
		switch subID {
		case 0: // module name
			if n, err := sr.name(); err == nil {
				ns.ModuleName = n
			}
		case 1: // function names
			count, err := sr.vectorLen()
			if err != nil {
				continue
			}
			for i := uint32(0); i < count; i++ {
				idx, err := sr.u32()
				if err != nil {
					break
				}
				n, err := sr.name()
				if err != nil {
					break
				}
				ns.FunctionNames[idx] = n
			}
		}
	}
	d.m.NameSection = ns
	return nil
}

func (d *moduleDecoder) decodeTypeSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	d.m.Types = make([]FuncType, count)
	for i := uint32(0); i < count; i++ {
		tag, err := r.byte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return newDecodeError(r.pos-1, "invalid functype tag %#x", tag)
		}
		params, err := d.decodeValTypeVec(r)
		if err != nil {
			return err
		}
		results, err := d.decodeValTypeVec(r)
		if err != nil {
			return err
		}
		if !d.features.MultiValue && len(results) > 1 {
			return &UnsupportedError{Feature: "multi-value results"}
		}
		d.m.Types[i] = FuncType{Params: params, Results: results}
	}
	return nil
}

func (d *moduleDecoder) decodeValTypeVec(r *reader) ([]ValType, error) {
	n, err := r.vectorLen()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, n)
	for i := uint32(0); i < n; i++ {
		vt, err := d.decodeValType(r)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

func (d *moduleDecoder) decodeValType(r *reader) (ValType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch b {
	case ValTypeI32, ValTypeI64, ValTypeF32, ValTypeF64:
		return b, nil
	case ValTypeFuncref, ValTypeExternref:
		if !d.features.ReferenceTypes {
			return 0, &UnsupportedError{Feature: "reference types"}
		}
		return b, nil
	}
	return 0, newDecodeError(r.pos-1, "invalid value type %#x", b)
}

func (d *moduleDecoder) decodeLimits(r *reader) (Limits, error) {
	flag, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	if flag > 1 {
		return Limits{}, &UnsupportedError{Feature: "shared memories or memory64"}
	}
	min, err := r.u32()
	if err != nil {
		return Limits{}, err
	}
	lim := Limits{Min: min}
	if flag == 1 {
		max, err := r.u32()
		if err != nil {
			return Limits{}, err
		}
		lim.Max = &max
	}
	return lim, nil
}

func (d *moduleDecoder) decodeTableType(r *reader) (TableType, error) {
	et, err := d.decodeValType(r)
	if err != nil {
		return TableType{}, err
	}
	if et != ValTypeFuncref && et != ValTypeExternref {
		return TableType{}, newDecodeError(r.pos, "invalid table element type")
	}
	lim, err := d.decodeLimits(r)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: et, Limits: lim}, nil
}

func (d *moduleDecoder) decodeMemoryType(r *reader) (MemoryType, error) {
	lim, err := d.decodeLimits(r)
	if err != nil {
		return MemoryType{}, err
	}
	if lim.Min > 65536 || (lim.Max != nil && *lim.Max > 65536) {
		return MemoryType{}, newValidationError(r.pos, "memory size exceeds 65536 pages")
	}
	return MemoryType{Limits: lim}, nil
}

func (d *moduleDecoder) decodeGlobalType(r *reader) (GlobalType, error) {
	vt, err := d.decodeValType(r)
	if err != nil {
		return GlobalType{}, err
	}
	mb, err := r.byte()
	if err != nil {
		return GlobalType{}, err
	}
	if mb > 1 {
		return GlobalType{}, newDecodeError(r.pos-1, "invalid mutability flag")
	}
	mutable := mb == 1
	if mutable && !d.features.MutableGlobals {
		return GlobalType{}, &UnsupportedError{Feature: "mutable globals"}
	}
	return GlobalType{ValType: vt, Mutable: mutable}, nil
}

func (d *moduleDecoder) decodeImportSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		mod, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		im := Import{Module: mod, Name: name}
		switch kind {
		case api.ExternTypeFunc:
			idx, err := r.u32()
			if err != nil {
				return err
			}
			if int(idx) >= len(d.m.Types) {
				return newValidationError(r.pos, "import function type index %d out of range", idx)
			}
			im.Type = ExternType{Kind: api.ExternTypeFunc, FuncTypeIndex: idx}
			im.DescIndex = d.m.NumImportedFuncs
			d.m.NumImportedFuncs++
		case api.ExternTypeTable:
			tt, err := d.decodeTableType(r)
			if err != nil {
				return err
			}
			im.Type = ExternType{Kind: api.ExternTypeTable, Table: tt}
			im.DescIndex = d.m.NumImportedTables
			d.m.NumImportedTables++
		case api.ExternTypeMemory:
			mt, err := d.decodeMemoryType(r)
			if err != nil {
				return err
			}
			im.Type = ExternType{Kind: api.ExternTypeMemory, Memory: mt}
			im.DescIndex = d.m.NumImportedMemories
			d.m.NumImportedMemories++
		case api.ExternTypeGlobal:
			gt, err := d.decodeGlobalType(r)
			if err != nil {
				return err
			}
			im.Type = ExternType{Kind: api.ExternTypeGlobal, Global: gt}
			im.DescIndex = d.m.NumImportedGlobals
			d.m.NumImportedGlobals++
		default:
			return newDecodeError(r.pos-1, "invalid import kind %#x", kind)
		}
		d.m.Imports = append(d.m.Imports, im)
	}
	return nil
}

func (d *moduleDecoder) decodeFunctionSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	d.m.FuncTypeIndexes = make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.u32()
		if err != nil {
			return err
		}
		if int(idx) >= len(d.m.Types) {
			return newValidationError(r.pos, "function type index %d out of range", idx)
		}
		d.m.FuncTypeIndexes[i] = idx
	}
	return nil
}

func (d *moduleDecoder) decodeTableSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tt, err := d.decodeTableType(r)
		if err != nil {
			return err
		}
		d.m.Tables = append(d.m.Tables, Table{Type: tt})
	}
	return nil
}

func (d *moduleDecoder) decodeMemorySection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	if d.m.NumImportedMemories+count > 1 {
		return &UnsupportedError{Feature: "multiple memories"}
	}
	for i := uint32(0); i < count; i++ {
		mt, err := d.decodeMemoryType(r)
		if err != nil {
			return err
		}
		d.m.Memories = append(d.m.Memories, Memory{Type: mt})
	}
	return nil
}

func (d *moduleDecoder) decodeGlobalSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		gt, err := d.decodeGlobalType(r)
		if err != nil {
			return err
		}
		init, err := d.decodeConstExpr(r)
		if err != nil {
			return err
		}
		d.m.Globals = append(d.m.Globals, Global{Type: gt, Init: init})
	}
	return nil
}

func (d *moduleDecoder) decodeExportSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		if _, dup := d.m.ExportMap[name]; dup {
			return newValidationError(r.pos, "duplicate export name %q", name)
		}
		switch kind {
		case api.ExternTypeFunc:
			if idx >= d.m.NumFuncs() {
				return newValidationError(r.pos, "export function index %d out of range", idx)
			}
		case api.ExternTypeTable:
			if idx >= d.m.NumTables() {
				return newValidationError(r.pos, "export table index %d out of range", idx)
			}
		case api.ExternTypeMemory:
			if idx >= d.m.NumMemories() {
				return newValidationError(r.pos, "export memory index %d out of range", idx)
			}
		case api.ExternTypeGlobal:
			if idx >= d.m.NumGlobals() {
				return newValidationError(r.pos, "export global index %d out of range", idx)
			}
		default:
			return newDecodeError(r.pos-1, "invalid export kind %#x", kind)
		}
		e := Export{Name: name, Type: kind, Index: idx}
		d.m.Exports = append(d.m.Exports, e)
		d.m.ExportMap[name] = e
	}
	return nil
}

func (d *moduleDecoder) decodeStartSection(r *reader) error {
	idx, err := r.u32()
	if err != nil {
		return err
	}
	if idx >= d.m.NumFuncs() {
		return newValidationError(r.pos, "start function index %d out of range", idx)
	}
	d.m.Start = &idx
	return nil
}

func (d *moduleDecoder) decodeElementSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		seg, err := d.decodeElementSegment(r)
		if err != nil {
			return err
		}
		d.m.Elements = append(d.m.Elements, seg)
	}
	return nil
}

func (d *moduleDecoder) decodeElementSegment(r *reader) (ElementSegment, error) {
	flag, err := r.u32()
	if err != nil {
		return ElementSegment{}, err
	}
	var seg ElementSegment
	// Bit 0: passive/declarative vs active. Bit 1: when bit 0 is set,
	// declarative vs passive; when bit 0 is clear, an explicit table index.
	// Bit 2: expr-form elements instead of bare function indices.
	switch flag {
	case 0:
		seg.Mode = SegmentModeActive
		seg.Type = ValTypeFuncref
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return seg, err
		}
		seg.Offset = off
		idxs, err := d.decodeFuncIndexVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = idxs
	case 1:
		seg.Mode = SegmentModePassive
		if _, err := r.byte(); err != nil { // elemkind, must be 0x00 (funcref)
			return seg, err
		}
		seg.Type = ValTypeFuncref
		idxs, err := d.decodeFuncIndexVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = idxs
	case 2:
		seg.Mode = SegmentModeActive
		ti, err := r.u32()
		if err != nil {
			return seg, err
		}
		seg.TableIndex = ti
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return seg, err
		}
		seg.Offset = off
		if _, err := r.byte(); err != nil {
			return seg, err
		}
		seg.Type = ValTypeFuncref
		idxs, err := d.decodeFuncIndexVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = idxs
	case 3:
		seg.Mode = SegmentModeDeclarative
		if _, err := r.byte(); err != nil {
			return seg, err
		}
		seg.Type = ValTypeFuncref
		idxs, err := d.decodeFuncIndexVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = idxs
	case 4:
		seg.Mode = SegmentModeActive
		seg.Type = ValTypeFuncref
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return seg, err
		}
		seg.Offset = off
		exprs, err := d.decodeConstExprVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = exprs
	case 5:
		seg.Mode = SegmentModePassive
		et, err := d.decodeValType(r)
		if err != nil {
			return seg, err
		}
		seg.Type = et
		exprs, err := d.decodeConstExprVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = exprs
	case 6:
		seg.Mode = SegmentModeActive
		ti, err := r.u32()
		if err != nil {
			return seg, err
		}
		seg.TableIndex = ti
		off, err := d.decodeConstExpr(r)
		if err != nil {
			return seg, err
		}
		seg.Offset = off
		et, err := d.decodeValType(r)
		if err != nil {
			return seg, err
		}
		seg.Type = et
		exprs, err := d.decodeConstExprVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = exprs
	case 7:
		seg.Mode = SegmentModeDeclarative
		et, err := d.decodeValType(r)
		if err != nil {
			return seg, err
		}
		seg.Type = et
		exprs, err := d.decodeConstExprVec(r)
		if err != nil {
			return seg, err
		}
		seg.Init = exprs
	default:
		return seg, newDecodeError(r.pos, "invalid element segment flag %d", flag)
	}
	return seg, nil
}

func (d *moduleDecoder) decodeFuncIndexVec(r *reader) ([]ConstExpr, error) {
	n, err := r.vectorLen()
	if err != nil {
		return nil, err
	}
	out := make([]ConstExpr, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i] = ConstExpr{{Opcode: OpcodeRefFunc, FuncIndex: idx}}
	}
	return out, nil
}

func (d *moduleDecoder) decodeConstExprVec(r *reader) ([]ConstExpr, error) {
	n, err := r.vectorLen()
	if err != nil {
		return nil, err
	}
	out := make([]ConstExpr, n)
	for i := uint32(0); i < n; i++ {
		ce, err := d.decodeConstExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = ce
	}
	return out, nil
}

func (d *moduleDecoder) decodeDataCountSection(r *reader) error {
	_, err := r.u32()
	if err != nil {
		return err
	}
	d.m.HasDataCount = true
	return nil
}

func (d *moduleDecoder) decodeDataSection(r *reader) error {
	count, err := r.vectorLen()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		flag, err := r.u32()
		if err != nil {
			return err
		}
		var seg DataSegment
		switch flag {
		case 0:
			seg.Mode = SegmentModeActive
			off, err := d.decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = off
		case 1:
			seg.Mode = SegmentModePassive
		case 2:
			seg.Mode = SegmentModeActive
			mi, err := r.u32()
			if err != nil {
				return err
			}
			seg.MemoryIndex = mi
			off, err := d.decodeConstExpr(r)
			if err != nil {
				return err
			}
			seg.Offset = off
		default:
			return newDecodeError(r.pos, "invalid data segment flag %d", flag)
		}
		n, err := r.vectorLen()
		if err != nil {
			return err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return err
		}
		seg.Init = append([]byte(nil), b...)
		d.m.Datas = append(d.m.Datas, seg)
	}
	return nil
}

// finalize runs whole-module checks that need every section present, e.g.
// table-index bounds in element segments that named an explicit table.
func (d *moduleDecoder) finalize() error {
	m := d.m
	for i := range m.Elements {
		e := &m.Elements[i]
		if e.Mode == SegmentModeActive && e.TableIndex >= m.NumTables() {
			return newValidationError(-1, "element segment %d: table index %d out of range", i, e.TableIndex)
		}
	}
	for i := range m.Datas {
		dd := &m.Datas[i]
		if dd.Mode == SegmentModeActive && dd.MemoryIndex >= m.NumMemories() {
			return newValidationError(-1, "data segment %d: memory index %d out of range", i, dd.MemoryIndex)
		}
	}
	if len(m.Code) != len(m.FuncTypeIndexes) {
		return newValidationError(-1, "code section entry count %d does not match function section count %d", len(m.Code), len(m.FuncTypeIndexes))
	}
	return nil
}
