package tinywasm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// HostFunctionBuilder defines a single host function (implemented in Go) so
// a WebAssembly module can import and call it.
//
//	hostModuleBuilder.NewFunctionBuilder().
//		WithFunc(func(ctx context.Context, x, y uint32) uint32 {
//			return x + y
//		}).
//		Export("add")
type HostFunctionBuilder interface {
	// WithFunc uses reflection to map a Go func to a WebAssembly-compatible
	// signature. Every parameter and result must be uint32, int32, uint64,
	// int64, float32 or float64, except that the first parameter may be a
	// context.Context and, after it, a parameter may be declared as
	// api.Module to access the memory of the host module that defines the
	// function. A trailing error
	// result, if present, becomes a trap when non-nil.
	WithFunc(fn interface{}) HostFunctionBuilder

	// WithName defines the optional module-local name of this function,
	// used in debug output. Not required to match the Export name.
	WithName(name string) HostFunctionBuilder

	// Export exports this function from the enclosing HostModuleBuilder
	// under name.
	Export(name string) HostModuleBuilder
}

// HostModuleBuilder builds a module made entirely of host functions (and
// optionally one exported memory) that WebAssembly modules instantiated
// against the same Runtime can import.
type HostModuleBuilder interface {
	// ExportMemory adds a linear memory a WebAssembly module can import.
	ExportMemory(name string, minPages uint32) HostModuleBuilder

	// ExportMemoryWithMax is like ExportMemory, bounding how far
	// memory.grow may expand it.
	ExportMemoryWithMax(name string, minPages, maxPages uint32) HostModuleBuilder

	// NewFunctionBuilder begins the definition of a host function.
	NewFunctionBuilder() HostFunctionBuilder

	// Compile validates the accumulated definitions and returns them as a
	// CompiledModule, instantiable (possibly more than once) via
	// Runtime.InstantiateModule.
	Compile(ctx context.Context) (*CompiledModule, error)

	// Instantiate is a convenience that compiles then instantiates this
	// host module against its owning Runtime, under its given name.
	Instantiate(ctx context.Context) (api.Module, error)
}

type hostModuleBuilder struct {
	r          *Runtime
	moduleName string
	funcs      []wasm.HostFuncExport
	names      map[string]bool
	memoryName string
	memoryMin  uint32
	memoryMax  uint32
	hasMemory  bool
	err        error
}

// NewHostModuleBuilder begins defining a host module named moduleName.
func (r *Runtime) NewHostModuleBuilder(moduleName string) HostModuleBuilder {
	return &hostModuleBuilder{r: r, moduleName: moduleName, names: map[string]bool{}}
}

func (b *hostModuleBuilder) ExportMemory(name string, minPages uint32) HostModuleBuilder {
	return b.ExportMemoryWithMax(name, minPages, 65536)
}

func (b *hostModuleBuilder) ExportMemoryWithMax(name string, minPages, maxPages uint32) HostModuleBuilder {
	b.hasMemory = true
	b.memoryName, b.memoryMin, b.memoryMax = name, minPages, maxPages
	return b
}

func (b *hostModuleBuilder) NewFunctionBuilder() HostFunctionBuilder {
	return &hostFunctionBuilder{b: b}
}

func (b *hostModuleBuilder) Compile(ctx context.Context) (*CompiledModule, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.names[""] {
		return nil, fmt.Errorf("host module %q: function exported with empty name", b.moduleName)
	}
	// A host module has no wasm.Module binary to decode; CompiledModule
	// carries nil and InstantiateModule recognizes that as "build the host
	// module directly from the builder's accumulated definitions" via
	// hostModuleCompiled below.
	return &CompiledModule{module: nil, hostModule: b}, nil
}

func (b *hostModuleBuilder) Instantiate(ctx context.Context) (api.Module, error) {
	compiled, err := b.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return b.r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName(b.moduleName))
}

type hostFunctionBuilder struct {
	b    *hostModuleBuilder
	fn   interface{}
	name string
}

func (h *hostFunctionBuilder) WithFunc(fn interface{}) HostFunctionBuilder {
	h.fn = fn
	return h
}

func (h *hostFunctionBuilder) WithName(name string) HostFunctionBuilder {
	h.name = name
	return h
}

func (h *hostFunctionBuilder) Export(name string) HostModuleBuilder {
	if h.b.err != nil {
		return h.b
	}
	debugName := h.name
	if debugName == "" {
		debugName = name
	}
	hf, err := reflectHostFunc(h.fn, debugName, h.b.r)
	if err != nil {
		h.b.err = fmt.Errorf("export %q: %w", name, err)
		return h.b
	}
	hf.Name = name
	hf.DebugName = debugName
	h.b.funcs = append(h.b.funcs, *hf)
	h.b.names[name] = true
	return h.b
}

// moduleType, ctxType and errorType are the reflect.Type values WithFunc
// recognizes as special, non-WebAssembly-numeric parameters and results.
var (
	moduleType  = reflect.TypeOf((*api.Module)(nil)).Elem()
	ctxType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// reflectHostFunc builds a wasm.HostFuncExport from an arbitrary Go func
// value, grounded on the teacher's WithFunc contract: an optional leading
// context.Context, an optional api.Module, then WebAssembly-numeric
// parameters; results are the same numeric types, optionally followed by a
// trailing error.
func reflectHostFunc(fn interface{}, debugName string, r *Runtime) (*wasm.HostFuncExport, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function: %v", t)
	}

	wantsCtx := false
	wantsModule := false
	pi := 0
	if pi < t.NumIn() && t.In(pi) == ctxType {
		wantsCtx = true
		pi++
	}
	if pi < t.NumIn() && t.In(pi) == moduleType {
		wantsModule = true
		pi++
	}

	var params []api.ValueType
	for ; pi < t.NumIn(); pi++ {
		vt, err := valueTypeOf(t.In(pi))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", pi, err)
		}
		params = append(params, vt)
	}

	numOut := t.NumOut()
	returnsError := numOut > 0 && t.Out(numOut-1) == errorType
	if returnsError {
		numOut--
	}
	var results []api.ValueType
	for i := 0; i < numOut; i++ {
		vt, err := valueTypeOf(t.Out(i))
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		results = append(results, vt)
	}

	goFunc := func(ctx context.Context, cc wasm.CallContext, params []uint64) ([]uint64, error) {
		in := make([]reflect.Value, 0, t.NumIn())
		pi := 0
		if wantsCtx {
			in = append(in, reflect.ValueOf(ctx))
			pi++
		}
		if wantsModule {
			in = append(in, reflect.ValueOf(api.Module(&moduleInstance{mi: cc.Module, r: r})))
			pi++
		}
		for i, p := range params {
			in = append(in, decodeArg(t.In(pi+i), p))
		}
		out := v.Call(in)
		if returnsError {
			if errv := out[len(out)-1]; !errv.IsNil() {
				return nil, errv.Interface().(error)
			}
			out = out[:len(out)-1]
		}
		results := make([]uint64, len(out))
		for i, o := range out {
			results[i] = encodeResult(o)
		}
		return results, nil
	}

	return &wasm.HostFuncExport{
		Name: debugName,
		Type: wasm.FuncType{Params: params, Results: results},
		Func: goFunc,
	}, nil
}

func valueTypeOf(t reflect.Type) (api.ValueType, error) {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return api.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return api.ValueTypeI64, nil
	case reflect.Float32:
		return api.ValueTypeF32, nil
	case reflect.Float64:
		return api.ValueTypeF64, nil
	}
	return 0, fmt.Errorf("unsupported type %v", t)
}

func decodeArg(t reflect.Type, raw uint64) reflect.Value {
	switch t.Kind() {
	case reflect.Uint32:
		return reflect.ValueOf(uint32(raw))
	case reflect.Int32:
		return reflect.ValueOf(int32(uint32(raw)))
	case reflect.Uint64:
		return reflect.ValueOf(raw)
	case reflect.Int64:
		return reflect.ValueOf(int64(raw))
	case reflect.Float32:
		return reflect.ValueOf(api.DecodeF32(raw))
	case reflect.Float64:
		return reflect.ValueOf(api.DecodeF64(raw))
	}
	panic("unreachable: validated by valueTypeOf")
}

func encodeResult(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Uint32:
		return uint64(uint32(v.Uint()))
	case reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Uint64:
		return v.Uint()
	case reflect.Int64:
		return api.EncodeI64(v.Int())
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return api.EncodeF64(v.Float())
	}
	panic("unreachable: validated by valueTypeOf")
}
