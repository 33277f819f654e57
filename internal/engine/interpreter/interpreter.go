// Package interpreter is TinyWasm's execution engine: a direct interpreter
// whose dispatch loop steps a program counter through the flattened,
// control-flow-annotated instruction stream the decoder produces. There is no further compilation
// step — unlike the teacher, which lowers to its own wazeroir SSA-like IR
// before a second interpretation pass, this engine executes
// wasm.Instruction directly, since the decoder's single annotation pass
// already resolved every branch target and operand-stack height it would
// otherwise have had to recompute.
package interpreter

import (
	"context"

	"github.com/tinygo-wasm/tinywasm/api"
	"github.com/tinygo-wasm/tinywasm/internal/wasm"
)

// DefaultCallStackCeiling bounds call depth so a runaway recursive module
// fails with a catchable trap instead of exhausting the host goroutine
// stack.
const DefaultCallStackCeiling = 2000

// Engine executes compiled wasm.FunctionInstances. It holds no per-call
// state itself; each Call starts a fresh callEngine, so one Engine is safe
// to share across concurrently executing calls.
type Engine struct {
	CallStackCeiling int
	// Listener, if non-nil, is notified before and after every function
	// invocation (Wasm-defined or host), mirroring the experimental
	// function-listener hook the teacher exposes for tracing/profiling.
	Listener FunctionListener
}

// FunctionListener observes function calls for tracing or metrics. Both
// methods are called on every invocation; Engine.Listener itself may be nil.
type FunctionListener interface {
	Before(ctx context.Context, fn *wasm.FunctionInstance, params []uint64)
	After(ctx context.Context, fn *wasm.FunctionInstance, results []uint64, err error)
}

// NewEngine constructs an Engine with the given call-stack depth ceiling.
// A ceiling of 0 uses DefaultCallStackCeiling.
func NewEngine(callStackCeiling int) *Engine {
	if callStackCeiling <= 0 {
		callStackCeiling = DefaultCallStackCeiling
	}
	return &Engine{CallStackCeiling: callStackCeiling}
}

// Call is a wasm.Invoker: it runs fn to completion (interpreting its body
// if Wasm-defined, or invoking its GoFunc if a host import) and returns its
// results, or the *api.Trap that aborted it.
func (e *Engine) Call(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) (results []uint64, err error) {
	ce := &callEngine{engine: e}
	defer func() {
		if r := recover(); r != nil {
			err = ce.recoverToError(r)
		}
	}()
	results, err = ce.invoke(ctx, fn, params)
	return
}

// callEngine tracks the live call-frame stack of one top-level Call, used
// both for the call-depth ceiling and to build a Trap's stack trace. Each
// nested call recurses through Go's own call stack; callEngine.frames is
// bookkeeping alongside it, not a replacement for it.
type callEngine struct {
	engine *Engine
	frames []string
}

// recoverToError converts a panic raised anywhere under invoke back into an
// error: an *api.Trap is annotated with the accumulated frame names (unless
// already populated by a deeper recovery) and returned as-is; anything else
// is re-panicked, since it indicates a bug rather than a Wasm-level trap.
func (ce *callEngine) recoverToError(r interface{}) error {
	if t, ok := r.(*api.Trap); ok {
		if len(t.Frames) == 0 {
			t.Frames = make([]string, len(ce.frames))
			for i, name := range ce.frames {
				t.Frames[len(ce.frames)-1-i] = name
			}
		}
		return t
	}
	if err, ok := r.(error); ok {
		panic(err)
	}
	panic(r)
}

// invoke pushes fn's debug name onto the frame trace, runs it, and pops the
// frame on normal return. On a panic (a trap unwinding through this call),
// the pop is skipped so the frame survives into the trace the top-level
// Call.recover reads off ce.frames.
func (ce *callEngine) invoke(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) ([]uint64, error) {
	if len(ce.frames) >= ce.engine.CallStackCeiling {
		panic(api.NewTrap(api.TrapCodeCallStackExhausted, nil))
	}
	ce.frames = append(ce.frames, fn.DebugName)

	if l := ce.engine.Listener; l != nil {
		l.Before(ctx, fn, params)
	}

	var results []uint64
	var err error
	if fn.IsHostFunction() {
		results, err = ce.callHost(ctx, fn, params)
	} else {
		results, err = ce.callWasm(ctx, fn, params)
	}

	if l := ce.engine.Listener; l != nil {
		l.After(ctx, fn, results, err)
	}

	ce.frames = ce.frames[:len(ce.frames)-1]
	return results, err
}

// callHost invokes a host function. Its CallContext carries the module that
// defines the host function (fn.Module) and that module's memory 0, not the
// calling module's.
func (ce *callEngine) callHost(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) ([]uint64, error) {
	cc := wasm.CallContext{Module: fn.Module}
	if fn.Module != nil {
		cc.Memory = fn.Module.Memory(0)
	}
	return fn.GoFunc(ctx, cc, params)
}

// callFrame is the interpreter's per-invocation state: the local variable
// array (parameters followed by declared locals) and the operand stack,
// sized up front from the decoder's MaxStackHeight so no call-time
// reallocation is needed along the common path.
type callFrame struct {
	fn     *wasm.FunctionInstance
	locals []uint64
	stack  []uint64
	pc     uint32
}

func (f *callFrame) push(v uint64)     { f.stack = append(f.stack, v) }
func (f *callFrame) pushU32(v uint32)  { f.push(uint64(v)) }
func (f *callFrame) pushI32(v int32)   { f.push(uint64(uint32(v))) }
func (f *callFrame) pushU64(v uint64)  { f.push(v) }
func (f *callFrame) pushI64(v int64)   { f.push(uint64(v)) }
func (f *callFrame) pushF32(v float32) { f.push(api.EncodeF32(v)) }
func (f *callFrame) pushF64(v float64) { f.push(api.EncodeF64(v)) }

func (f *callFrame) pop() uint64 {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}
func (f *callFrame) popU32() uint32  { return uint32(f.pop()) }
func (f *callFrame) popI32() int32   { return int32(f.pop()) }
func (f *callFrame) popU64() uint64  { return f.pop() }
func (f *callFrame) popI64() int64   { return int64(f.pop()) }
func (f *callFrame) popF32() float32 { return api.DecodeF32(f.pop()) }
func (f *callFrame) popF64() float64 { return api.DecodeF64(f.pop()) }

func (f *callFrame) pop2U32() (a, b uint32)  { b = f.popU32(); a = f.popU32(); return }
func (f *callFrame) pop2I32() (a, b int32)   { b = f.popI32(); a = f.popI32(); return }
func (f *callFrame) pop2U64() (a, b uint64)  { b = f.popU64(); a = f.popU64(); return }
func (f *callFrame) pop2I64() (a, b int64)   { b = f.popI64(); a = f.popI64(); return }
func (f *callFrame) pop2F32() (a, b float32) { b = f.popF32(); a = f.popF32(); return }
func (f *callFrame) pop2F64() (a, b float64) { b = f.popF64(); a = f.popF64(); return }

func (f *callFrame) truncateTo(n uint32) { f.stack = f.stack[:n] }

// callWasm interprets fn.Body from instruction 0, dispatching every opcode
// in SPEC_FULL's §4/§5/§6 coverage, until a `return` or the implicit
// function-level `end` (running past the last instruction) is reached.
func (ce *callEngine) callWasm(ctx context.Context, fn *wasm.FunctionInstance, params []uint64) ([]uint64, error) {
	f := &callFrame{
		fn:     fn,
		locals: make([]uint64, len(fn.Type.Params)+len(fn.LocalTypes)),
		stack:  make([]uint64, 0, fn.MaxStackHeight),
	}
	copy(f.locals, params)

	body := fn.Body
	for int(f.pc) < len(body) {
		instr := &body[f.pc]
		done, err := ce.execOne(ctx, f, instr)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		f.pc++
	}

	nr := len(fn.Type.Results)
	results := make([]uint64, nr)
	copy(results, f.stack[len(f.stack)-nr:])
	return results, nil
}

// execOne executes a single instruction against f, returning done=true
// when a `return` should stop execution. Control-flow opcodes set f.pc
// directly instead of relying on the caller's increment, using the
// BrTarget/BrTableTargets indirection the decoder computed: InstrIndex
// names the enclosing block/loop/if instruction, and whether it's a Loop
// decides whether to jump to that instruction itself (repeating it) or to
// its EndOffset (falling out of it).
func (ce *callEngine) execOne(ctx context.Context, f *callFrame, instr *wasm.Instruction) (done bool, err error) {
	op := instr.Opcode
	switch op {
	case wasm.OpcodeUnreachable:
		panic(api.NewTrap(api.TrapCodeUnreachable, nil))
	case wasm.OpcodeNop, wasm.OpcodeBlock, wasm.OpcodeLoop:
		// Structural no-ops at runtime: a block's only effect was on the
		// decode-time operand-stack bookkeeping; a loop's only runtime
		// role is as a branch target.
	case wasm.OpcodeIf:
		if f.popU32() == 0 {
			f.pc = instr.ElseOffset
		}
	case wasm.OpcodeElse:
		// Falling through from the true branch: skip past the false one.
		f.pc = instr.EndOffset
	case wasm.OpcodeEnd:
		// No-op landing pad for a block/if's EndOffset.

	case wasm.OpcodeBr:
		ce.branch(f, instr.BrTarget)
	case wasm.OpcodeBrIf:
		if f.popU32() != 0 {
			ce.branch(f, instr.BrTarget)
		}
	case wasm.OpcodeBrTable:
		idx := f.popU32()
		targets := instr.BrTableTargets
		var t wasm.BrTableTarget
		if int(idx)+1 < len(targets) {
			t = targets[idx+1]
		} else {
			t = targets[0]
		}
		ce.branch(f, t)
	case wasm.OpcodeReturn:
		return true, nil

	case wasm.OpcodeCall:
		callee := f.fn.Module.Function(instr.FuncIndex)
		args := popN(f, len(callee.Type.Params))
		results, cerr := ce.invoke(ctx, callee, args)
		if cerr != nil {
			return false, cerr
		}
		for _, v := range results {
			f.push(v)
		}
	case wasm.OpcodeCallIndirect:
		tableIdx := f.popU32()
		table := f.fn.Module.Table(instr.TableIndex)
		if int(tableIdx) >= len(table.References) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil))
		}
		ref := table.References[tableIdx]
		if ref == 0 {
			panic(api.NewTrap(api.TrapCodeUninitializedElement, nil))
		}
		callee := f.fn.Module.Store.Functions[ref-1]
		want := &f.fn.Module.Module.Types[instr.TypeIndex]
		if !callee.Type.Equal(want) {
			panic(api.NewTrap(api.TrapCodeIndirectCallTypeMismatch, nil))
		}
		args := popN(f, len(callee.Type.Params))
		results, cerr := ce.invoke(ctx, callee, args)
		if cerr != nil {
			return false, cerr
		}
		for _, v := range results {
			f.push(v)
		}

	case wasm.OpcodeDrop:
		f.pop()
	case wasm.OpcodeSelect:
		cond := f.popU32()
		b := f.pop()
		a := f.pop()
		if cond != 0 {
			f.push(a)
		} else {
			f.push(b)
		}

	case wasm.OpcodeLocalGet:
		f.push(f.locals[instr.LocalIndex])
	case wasm.OpcodeLocalSet:
		f.locals[instr.LocalIndex] = f.pop()
	case wasm.OpcodeLocalTee:
		f.locals[instr.LocalIndex] = f.stack[len(f.stack)-1]
	case wasm.OpcodeGlobalGet:
		f.push(f.fn.Module.Global(instr.GlobalIndex).Value)
	case wasm.OpcodeGlobalSet:
		f.fn.Module.Global(instr.GlobalIndex).Value = f.pop()

	case wasm.OpcodeTableGet:
		idx := f.popU32()
		table := f.fn.Module.Table(instr.TableIndex)
		if int(idx) >= len(table.References) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil))
		}
		f.push(table.References[idx])
	case wasm.OpcodeTableSet:
		v := f.pop()
		idx := f.popU32()
		table := f.fn.Module.Table(instr.TableIndex)
		if int(idx) >= len(table.References) {
			panic(api.NewTrap(api.TrapCodeOutOfBoundsTableAccess, nil))
		}
		table.References[idx] = v

	case wasm.OpcodeI32Const:
		f.pushI32(int32(instr.ConstI64))
	case wasm.OpcodeI64Const:
		f.pushI64(instr.ConstI64)
	case wasm.OpcodeF32Const, wasm.OpcodeF64Const:
		f.push(instr.ConstF64Bits)

	case wasm.OpcodeRefNull:
		f.push(0)
	case wasm.OpcodeRefIsNull:
		f.push(b2i(f.pop() == 0))
	case wasm.OpcodeRefFunc:
		f.push(uint64(f.fn.Module.FuncAddrs[instr.FuncIndex]) + 1)

	case wasm.OpcodeMemorySize:
		f.pushU32(f.fn.Module.Memory(0).Size())
	case wasm.OpcodeMemoryGrow:
		delta := f.popU32()
		prev, ok := f.fn.Module.Memory(0).Grow(delta)
		if !ok {
			f.pushI32(-1)
		} else {
			f.pushU32(prev)
		}

	default:
		switch {
		case isMemoryOp(op):
			ce.execMemoryOp(f, instr)
		case op >= wasm.OpcodeMiscPrefix:
			ce.execMisc(f, instr)
		default:
			applyNumeric(f, instr)
		}
	}
	return false, nil
}

// branch executes one resolved branch: truncate the operand stack back to
// the target block's entry height, then jump to either the loop's own
// start instruction (repeating it) or its EndOffset (falling out of it).
// The Arity carried values are popped off first and pushed back, in their
// original order, once the stack is truncated to StackBase.
func (ce *callEngine) branch(f *callFrame, t wasm.BrTableTarget) {
	carried := popN(f, int(t.Arity))
	f.truncateTo(t.StackBase)
	for _, v := range carried {
		f.push(v)
	}
	target := &f.fn.Body[t.InstrIndex]
	if target.Opcode == wasm.OpcodeLoop {
		f.pc = t.InstrIndex
	} else {
		f.pc = target.EndOffset
	}
}

// popN pops n values off f's stack in original push order (unlike popping
// one at a time, which yields reverse order), used for call arguments and
// branch-carried values.
func popN(f *callFrame, n int) []uint64 {
	if n == 0 {
		return nil
	}
	start := len(f.stack) - n
	out := append([]uint64(nil), f.stack[start:]...)
	f.stack = f.stack[:start]
	return out
}
