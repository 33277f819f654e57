package wasm

import "github.com/tinygo-wasm/tinywasm/api"

// HostFuncExport describes a single Go-implemented function to attach to a
// host module. Unlike a Wasm-defined function, a host module has no binary
// to decode: the embedder supplies the signature and callback directly.
type HostFuncExport struct {
	// Name is the export name other modules import this function by.
	Name string
	// DebugName identifies this function in traps and stack traces; it
	// defaults to Name when left empty.
	DebugName string
	Type      FuncType
	Func      HostFunc
}

// InstantiateHostModule builds and registers a ModuleInstance made entirely
// of host functions (and optionally one exported memory), bypassing
// Instantiate's decode-driven allocation path since a host module is not
// decoded from a binary. memoryName == "" means no memory is exported.
func InstantiateHostModule(store *Store, name string, funcs []HostFuncExport, memoryName string, memoryMin, memoryMax uint32) (*ModuleInstance, error) {
	mi := &ModuleInstance{Name: name, Store: store, Exports: map[string]Export{}}

	for i := range funcs {
		hf := &funcs[i]
		debugName := hf.DebugName
		if debugName == "" {
			debugName = hf.Name
		}
		fi := &FunctionInstance{
			Type:      &hf.Type,
			Module:    mi,
			GoFunc:    hf.Func,
			DebugName: name + "." + debugName,
		}
		store.Functions = append(store.Functions, fi)
		addr := uint32(len(store.Functions) - 1)
		idx := uint32(len(mi.FuncAddrs))
		mi.FuncAddrs = append(mi.FuncAddrs, addr)
		mi.Exports[hf.Name] = Export{Name: hf.Name, Type: api.ExternTypeFunc, Index: idx}
	}

	if memoryName != "" {
		memi := &MemoryInstance{Data: make([]byte, uint64(memoryMin)*PageSize), Min: memoryMin, Max: memoryMax}
		store.Memories = append(store.Memories, memi)
		addr := uint32(len(store.Memories) - 1)
		mi.MemoryAddrs = append(mi.MemoryAddrs, addr)
		mi.Exports[memoryName] = Export{Name: memoryName, Type: api.ExternTypeMemory, Index: 0}
	}

	if err := store.registerModule(mi); err != nil {
		return nil, err
	}
	return mi, nil
}
