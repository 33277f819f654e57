package tinywasm

import (
	"context"

	"github.com/tinygo-wasm/tinywasm/internal/engine/interpreter"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// FunctionListener observes every function invocation a Runtime makes,
// Wasm-defined or host, without the engine itself depending on a logging
// library — supplementing the bare call/trap surface with an optional
// tracing seam, mirroring the teacher's experimental function-listener
// hook.
type FunctionListener interface {
	// Before is called immediately before fn begins executing.
	Before(ctx context.Context, moduleName, funcName string, params []uint64)

	// After is called once fn returns, successfully or via trap. err is
	// non-nil exactly when the call produced a trap or other failure.
	After(ctx context.Context, moduleName, funcName string, results []uint64, err error)
}

// functionListenerAdapter bridges the public FunctionListener to the
// interpreter's internal one, which carries the richer *wasm.FunctionInstance
// an embedder has no need to see.
type functionListenerAdapter struct {
	l FunctionListener
}

func (a functionListenerAdapter) Before(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) {
	a.l.Before(ctx, moduleNameOf(fn), fn.DebugName, params)
}

func (a functionListenerAdapter) After(ctx context.Context, fn *wasm.FunctionInstance, results []uint64, err error) {
	a.l.After(ctx, moduleNameOf(fn), fn.DebugName, results, err)
}

func moduleNameOf(fn *wasm.FunctionInstance) string {
	if fn.Module == nil {
		return ""
	}
	return fn.Module.Name
}

var _ interpreter.FunctionListener = functionListenerAdapter{}
