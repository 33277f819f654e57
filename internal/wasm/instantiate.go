package wasm

import (
	"context"
	"fmt"

	"github.com/tinygo-wasm/tinywasm/api"
)

// Invoker calls a single function instance to completion, whether it is
// Wasm-defined (interpreted) or a host callback, and is supplied by the
// engine layer so this package never needs to import it. Instantiate uses
// it exactly once, to run a module's start function.
type Invoker func(ctx context.Context, fn *FunctionInstance, params []uint64) ([]uint64, error)

// Instantiate performs §4.3's instantiation algorithm: resolve imports
// against modules already registered in store, allocate this module's own
// tables/memories/globals/functions, copy active element and data
// segments, and run the start function if one is declared. A trap raised
// while copying a segment or running start aborts instantiation: the
// ModuleInstance is not registered under instanceName and is returned
// alongside an *InstantiationTrapError, store-allocated entries are left
// in place (the store does not roll back).
func Instantiate(ctx context.Context, store *Store, instanceName string, m *Module, invoke Invoker) (*ModuleInstance, error) {
	mi := &ModuleInstance{
		Name:    instanceName,
		Module:  m,
		Store:   store,
		Exports: map[string]Export{},
	}

	if err := resolveImports(store, m, mi); err != nil {
		return nil, err
	}
	if err := allocateDefinitions(store, m, mi); err != nil {
		return nil, err
	}
	for name, e := range m.ExportMap {
		mi.Exports[name] = e
	}

	if err := applyElementSegments(mi, m); err != nil {
		return mi, &InstantiationTrapError{Cause: err}
	}
	if err := applyDataSegments(mi, m); err != nil {
		return mi, &InstantiationTrapError{Cause: err}
	}

	if m.Start != nil {
		fn := mi.Function(*m.Start)
		if _, err := invoke(ctx, fn, nil); err != nil {
			return mi, &InstantiationTrapError{Cause: err}
		}
	}

	if err := store.registerModule(mi); err != nil {
		return mi, err
	}
	return mi, nil
}

func resolveImports(store *Store, m *Module, mi *ModuleInstance) error {
	for _, im := range m.Imports {
		src, ok := store.Module(im.Module)
		if !ok {
			return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "module not found in store"}
		}
		exp, ok := src.Exports[im.Name]
		if !ok {
			return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "export not found"}
		}
		if exp.Type != im.Type.Kind {
			return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "export kind mismatch"}
		}
		switch im.Type.Kind {
		case api.ExternTypeFunc:
			addr := src.FuncAddrs[exp.Index]
			target := store.Functions[addr]
			want := &m.Types[im.Type.FuncTypeIndex]
			if !target.Type.Equal(want) {
				return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: fmt.Sprintf("function type mismatch: want %s, have %s", want, target.Type)}
			}
			mi.FuncAddrs = append(mi.FuncAddrs, addr)
		case api.ExternTypeTable:
			addr := src.TableAddrs[exp.Index]
			target := store.Tables[addr]
			if target.Type != im.Type.Table.ElemType {
				return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "table element type mismatch"}
			}
			if !limitsCompatible(uint32(len(target.References)), target.Max, im.Type.Table.Limits) {
				return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "table limits mismatch"}
			}
			mi.TableAddrs = append(mi.TableAddrs, addr)
		case api.ExternTypeMemory:
			addr := src.MemoryAddrs[exp.Index]
			target := store.Memories[addr]
			max := target.Max
			if !limitsCompatible(target.Size(), &max, im.Type.Memory.Limits) {
				return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "memory limits mismatch"}
			}
			mi.MemoryAddrs = append(mi.MemoryAddrs, addr)
		case api.ExternTypeGlobal:
			addr := src.GlobalAddrs[exp.Index]
			target := store.Globals[addr]
			if target.Type != im.Type.Global {
				return &ImportMismatchError{Module: im.Module, Name: im.Name, Reason: "global type mismatch"}
			}
			mi.GlobalAddrs = append(mi.GlobalAddrs, addr)
		}
	}
	return nil
}

// limitsCompatible implements the subtyping rule §4.3 cites for import
// matching: the actual instance must be at least as small a commitment as
// the import's declared bound (actual min >= wanted min) and at least as
// tight a promise (actual max, if any, must fit within wanted max, if any).
func limitsCompatible(actualMin uint32, actualMax *uint32, want Limits) bool {
	if actualMin < want.Min {
		return false
	}
	if want.Max == nil {
		return true
	}
	return actualMax != nil && *actualMax <= *want.Max
}

func allocateDefinitions(store *Store, m *Module, mi *ModuleInstance) error {
	// Functions first: globals' constant initializers may ref.func into
	// this module's own function space.
	for i := range m.Code {
		idx := m.NumImportedFuncs + uint32(i)
		fi := &FunctionInstance{
			Type:           m.TypeOfFunc(idx),
			Module:         mi,
			Body:           m.Code[i].Body,
			LocalTypes:     m.Code[i].LocalTypes,
			MaxStackHeight: m.Code[i].MaxStackHeight,
			DebugName:      m.DebugName(idx),
		}
		store.Functions = append(store.Functions, fi)
		mi.FuncAddrs = append(mi.FuncAddrs, uint32(len(store.Functions)-1))
	}

	for _, t := range m.Tables {
		ti := &TableInstance{
			Type:       t.Type.ElemType,
			Max:        t.Type.Limits.Max,
			References: make([]uint64, t.Type.Limits.Min),
		}
		store.Tables = append(store.Tables, ti)
		mi.TableAddrs = append(mi.TableAddrs, uint32(len(store.Tables)-1))
	}

	for _, mt := range m.Memories {
		max := store.MemoryMaxPages
		if mt.Type.Limits.Max != nil {
			max = *mt.Type.Limits.Max
		}
		memi := &MemoryInstance{
			Data: make([]byte, uint64(mt.Type.Limits.Min)*PageSize),
			Min:  mt.Type.Limits.Min,
			Max:  max,
		}
		store.Memories = append(store.Memories, memi)
		mi.MemoryAddrs = append(mi.MemoryAddrs, uint32(len(store.Memories)-1))
	}

	for _, g := range m.Globals {
		v, err := evalConstExpr(mi, g.Init)
		if err != nil {
			return err
		}
		gi := &GlobalInstance{Type: g.Type, Value: v}
		store.Globals = append(store.Globals, gi)
		mi.GlobalAddrs = append(mi.GlobalAddrs, uint32(len(store.Globals)-1))
	}
	return nil
}

// evalConstExpr evaluates a restricted constant expression (always exactly
// one instruction, enforced at decode time) against a ModuleInstance whose
// imported globals and function address space are already resolved.
func evalConstExpr(mi *ModuleInstance, ce ConstExpr) (uint64, error) {
	instr := ce[0]
	switch instr.Opcode {
	case OpcodeI32Const:
		return uint64(uint32(instr.ConstI64)), nil
	case OpcodeI64Const:
		return uint64(instr.ConstI64), nil
	case OpcodeF32Const, OpcodeF64Const:
		return instr.ConstF64Bits, nil
	case OpcodeGlobalGet:
		return mi.Global(instr.GlobalIndex).Value, nil
	case OpcodeRefNull:
		return 0, nil
	case OpcodeRefFunc:
		return uint64(mi.FuncAddrs[instr.FuncIndex]) + 1, nil
	}
	return 0, fmt.Errorf("invalid constant expression opcode %#x", instr.Opcode)
}

func applyElementSegments(mi *ModuleInstance, m *Module) error {
	mi.ElemAddrs = make([]uint32, len(m.Elements))
	for i, seg := range m.Elements {
		refs := make([]uint64, len(seg.Init))
		for j, ce := range seg.Init {
			v, err := evalConstExpr(mi, ce)
			if err != nil {
				return err
			}
			refs[j] = v
		}
		ei := &ElementInstance{Type: seg.Type, References: refs}
		mi.Store.Elements = append(mi.Store.Elements, ei)
		addr := uint32(len(mi.Store.Elements) - 1)
		mi.ElemAddrs[i] = addr

		switch seg.Mode {
		case SegmentModeActive:
			offVal, err := evalConstExpr(mi, seg.Offset)
			if err != nil {
				return err
			}
			off := uint32(offVal)
			table := mi.Table(seg.TableIndex)
			if uint64(off)+uint64(len(refs)) > uint64(len(table.References)) {
				return api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil)
			}
			copy(table.References[off:], refs)
			ei.References = nil
		case SegmentModeDeclarative:
			ei.References = nil
		}
	}
	return nil
}

func applyDataSegments(mi *ModuleInstance, m *Module) error {
	mi.DataAddrs = make([]uint32, len(m.Datas))
	for i, seg := range m.Datas {
		di := &DataInstance{Bytes: append([]byte(nil), seg.Init...)}
		mi.Store.Datas = append(mi.Store.Datas, di)
		addr := uint32(len(mi.Store.Datas) - 1)
		mi.DataAddrs[i] = addr

		if seg.Mode == SegmentModeActive {
			offVal, err := evalConstExpr(mi, seg.Offset)
			if err != nil {
				return err
			}
			off := uint32(offVal)
			mem := mi.Memory(seg.MemoryIndex)
			if uint64(off)+uint64(len(seg.Init)) > uint64(len(mem.Data)) {
				return api.NewTrap(api.TrapCodeOutOfBoundsMemoryAccess, nil)
			}
			copy(mem.Data[off:], seg.Init)
			di.Bytes = nil
		}
	}
	return nil
}
