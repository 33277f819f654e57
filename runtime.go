// Package tinywasm is a WebAssembly 1.0 (20191205) runtime: decode, validate
// and instantiate a module, then call its exported functions or let it call
// back into host functions you define in Go.
package tinywasm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/engine/interpreter"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// Runtime instantiates and runs WebAssembly modules against one shared
// Store. All modules instantiated by one Runtime can import from each
// other; modules from different Runtimes never interact.
type Runtime struct {
	store  *wasm.Store
	engine *interpreter.Engine
	ctx    context.Context
}

// NewRuntime creates a Runtime configured by config, or NewRuntimeConfig's
// defaults if config is nil. ctx becomes the default context used when a
// caller passes nil to Function.Call, InstantiateModule or Close; a module's
// start function runs under the context InstantiateModule resolves to.
func NewRuntime(ctx context.Context, config *RuntimeConfig) *Runtime {
	if ctx == nil {
		ctx = context.Background()
	}
	if config == nil {
		config = NewRuntimeConfig()
	}
	engine := interpreter.NewEngine(config.callStackDepth)
	if config.listener != nil {
		engine.Listener = functionListenerAdapter{config.listener}
	}
	store := wasm.NewStore(config.enabledFeatures)
	store.MemoryMaxPages = config.memoryMaxPages
	return &Runtime{
		store:  store,
		engine: engine,
		ctx:    ctx,
	}
}

// CompiledModule is a decoded and validated WebAssembly binary, ready to be
// instantiated (possibly more than once) via Runtime.InstantiateModule. A
// CompiledModule produced by HostModuleBuilder.Compile instead carries a
// hostModule, since a host module has no binary to decode.
type CompiledModule struct {
	module     *wasm.Module
	hostModule *hostModuleBuilder
}

// Close releases resources held by this CompiledModule. TinyWasm's
// interpreter holds nothing beyond the decoded *wasm.Module itself, so this
// is a no-op kept for API symmetry with Runtime.Close.
func (c *CompiledModule) Close(context.Context) error { return nil }

// CompileModule decodes and validates a WebAssembly binary without
// instantiating it, so the result can be instantiated multiple times (e.g.
// under different names) without repeating decode/validate work.
func (r *Runtime) CompileModule(ctx context.Context, binary []byte) (*CompiledModule, error) {
	m, err := wasm.Decode(binary, r.store.EnabledFeatures)
	if err != nil {
		return nil, err
	}
	return &CompiledModule{module: m}, nil
}

// InstantiateModule instantiates compiled against this Runtime's Store,
// resolving its imports from modules already instantiated here, running any
// active element/data segments and its start function. config may be nil to
// accept every default (the module's own decoded name, no overrides).
func (r *Runtime) InstantiateModule(ctx context.Context, compiled *CompiledModule, config *ModuleConfig) (api.Module, error) {
	if ctx == nil {
		ctx = r.ctx
	}

	if b := compiled.hostModule; b != nil {
		nameStr := b.moduleName
		if config != nil && config.name != "" {
			nameStr = config.name
		}
		memName := ""
		if b.hasMemory {
			memName = b.memoryName
		}
		mi, err := wasm.InstantiateHostModule(r.store, nameStr, b.funcs, memName, b.memoryMin, b.memoryMax)
		if err != nil {
			return nil, err
		}
		return &moduleInstance{mi: mi, r: r}, nil
	}

	nameStr := ""
	if ns := compiled.module.NameSection; ns != nil {
		nameStr = ns.ModuleName
	}
	if config != nil && config.name != "" {
		nameStr = config.name
	}
	mi, err := wasm.Instantiate(ctx, r.store, nameStr, compiled.module, r.engine.Call)
	if err != nil {
		return nil, err
	}
	return &moduleInstance{mi: mi, r: r}, nil
}

// InstantiateModuleFromBinary is a convenience combining CompileModule and
// InstantiateModule for the common case of running a binary exactly once.
func (r *Runtime) InstantiateModuleFromBinary(ctx context.Context, binary []byte) (api.Module, error) {
	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		return nil, err
	}
	return r.InstantiateModule(ctx, compiled, nil)
}

// Close releases every resource this Runtime allocated, including all
// modules it instantiated. A closed Runtime must not be used again.
func (r *Runtime) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = r.ctx
	}
	return r.store.CloseAllModules(ctx)
}

// moduleInstance adapts a *wasm.ModuleInstance to api.Module.
type moduleInstance struct {
	mi *wasm.ModuleInstance
	r  *Runtime
}

func (m *moduleInstance) String() string { return fmt.Sprintf("module[%s]", m.mi.Name) }

func (m *moduleInstance) Name() string { return m.mi.Name }

func (m *moduleInstance) Memory() api.Memory {
	mem := m.mi.Memory(0)
	if mem == nil {
		return nil
	}
	return &memoryInstance{mem}
}

func (m *moduleInstance) ExportedFunction(name string) api.Function {
	idx, ok := m.mi.ExportedFunctionIndex(name)
	if !ok {
		return nil
	}
	return &exportedFunction{mi: m.mi, idx: idx, r: m.r}
}

func (m *moduleInstance) ExportedMemory(name string) api.Memory {
	e, ok := m.mi.Exports[name]
	if !ok || e.Type != api.ExternTypeMemory {
		return nil
	}
	return &memoryInstance{m.mi.Store.Memories[m.mi.MemoryAddrs[e.Index]]}
}

func (m *moduleInstance) ExportedGlobal(name string) api.Global {
	e, ok := m.mi.Exports[name]
	if !ok || e.Type != api.ExternTypeGlobal {
		return nil
	}
	gi := m.mi.Store.Globals[m.mi.GlobalAddrs[e.Index]]
	if gi.Type.Mutable {
		return &mutableGlobal{globalInstance{gi}}
	}
	return &globalInstance{gi}
}

func (m *moduleInstance) CloseWithExitCode(ctx context.Context, exitCode uint32) error {
	if ctx == nil {
		ctx = m.r.ctx
	}
	return m.mi.CloseWithExitCode(ctx, exitCode)
}

func (m *moduleInstance) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = m.r.ctx
	}
	return m.mi.Close(ctx)
}

// exportedFunction adapts a module-local function index to api.Function.
type exportedFunction struct {
	mi  *wasm.ModuleInstance
	idx uint32
	r   *Runtime
}

func (f *exportedFunction) fn() *wasm.FunctionInstance { return f.mi.Function(f.idx) }

func (f *exportedFunction) Definition() api.FunctionDefinition {
	return functionDefinition{mi: f.mi, idx: f.idx}
}

func (f *exportedFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if ctx == nil {
		ctx = f.r.ctx
	}
	return f.r.engine.Call(ctx, f.fn(), params)
}

// functionDefinition adapts a module-local function index's static metadata
// to api.FunctionDefinition.
type functionDefinition struct {
	mi  *wasm.ModuleInstance
	idx uint32
}

func (d functionDefinition) fn() *wasm.FunctionInstance { return d.mi.Function(d.idx) }

func (d functionDefinition) ModuleName() string { return d.mi.Name }

func (d functionDefinition) Index() uint32 { return d.idx }

func (d functionDefinition) Name() string {
	if d.mi.Module != nil {
		return d.mi.Module.DebugName(d.idx)
	}
	return d.fn().DebugName
}

func (d functionDefinition) DebugName() string { return d.fn().DebugName }

func (d functionDefinition) Import() (moduleName, name string, isImport bool) {
	if d.mi.Module == nil || d.idx >= d.mi.Module.NumImportedFuncs {
		return "", "", false
	}
	for _, im := range d.mi.Module.Imports {
		if im.Type.Kind == api.ExternTypeFunc && im.DescIndex == d.idx {
			return im.Module, im.Name, true
		}
	}
	return "", "", false
}

func (d functionDefinition) ExportNames() []string {
	var names []string
	for name, e := range d.mi.Exports {
		if e.Type == api.ExternTypeFunc && e.Index == d.idx {
			names = append(names, name)
		}
	}
	return names
}

// GoFunc is nil here: TinyWasm does not expose the original reflected Go
// function behind a host import, only its signature and callback.
func (d functionDefinition) GoFunc() *reflect.Value { return nil }

func (d functionDefinition) ParamTypes() []api.ValueType { return d.fn().Type.Params }

func (d functionDefinition) ResultTypes() []api.ValueType { return d.fn().Type.Results }
