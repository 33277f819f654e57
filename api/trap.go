package api

import "fmt"

// TrapCode identifies why a WebAssembly invocation aborted abnormally. See
// https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#trap%E2%91%A0
type TrapCode byte

const (
	// TrapCodeUnreachable is raised by the unreachable instruction.
	TrapCodeUnreachable TrapCode = iota + 1
	// TrapCodeIntegerDivideByZero is raised by i32.div_s, i32.div_u,
	// i32.rem_s, i32.rem_u and their i64 equivalents when the divisor is
	// zero.
	TrapCodeIntegerDivideByZero
	// TrapCodeIntegerOverflow is raised by i32.div_s/i64.div_s when
	// dividing the minimum representable value by -1, and by the
	// non-saturating float-to-int conversions when the result is out of
	// the target integer's range.
	TrapCodeIntegerOverflow
	// TrapCodeInvalidConversionToInteger is raised by the non-saturating
	// float-to-int conversions when the input is NaN.
	TrapCodeInvalidConversionToInteger
	// TrapCodeOutOfBoundsMemoryAccess is raised when a load, store, or
	// bulk memory operation addresses bytes outside the current memory.
	TrapCodeOutOfBoundsMemoryAccess
	// TrapCodeOutOfBoundsTableAccess is raised when call_indirect or a
	// table operation addresses an element outside the current table.
	TrapCodeOutOfBoundsTableAccess
	// TrapCodeUninitializedElement is raised by call_indirect when the
	// referenced table slot holds a null reference.
	TrapCodeUninitializedElement
	// TrapCodeIndirectCallTypeMismatch is raised by call_indirect when the
	// callee's type does not match the declared type index.
	TrapCodeIndirectCallTypeMismatch
	// TrapCodeCallStackExhausted is raised when a call would exceed the
	// configured maximum call-frame depth.
	TrapCodeCallStackExhausted
	// TrapCodeOutOfMemory is raised when the host allocator cannot
	// satisfy a memory.grow or an initial allocation.
	TrapCodeOutOfMemory
)

// String implements fmt.Stringer.
func (c TrapCode) String() string {
	switch c {
	case TrapCodeUnreachable:
		return "unreachable"
	case TrapCodeIntegerDivideByZero:
		return "integer divide by zero"
	case TrapCodeIntegerOverflow:
		return "integer overflow"
	case TrapCodeInvalidConversionToInteger:
		return "invalid conversion to integer"
	case TrapCodeOutOfBoundsMemoryAccess:
		return "out of bounds memory access"
	case TrapCodeOutOfBoundsTableAccess:
		return "out of bounds table access"
	case TrapCodeUninitializedElement:
		return "uninitialized element"
	case TrapCodeIndirectCallTypeMismatch:
		return "indirect call type mismatch"
	case TrapCodeCallStackExhausted:
		return "call stack exhausted"
	case TrapCodeOutOfMemory:
		return "out of memory"
	}
	return "unknown trap"
}

// Trap is the error type returned when a WebAssembly invocation aborts
// abnormally. It unwinds every call and block frame of the triggering
// invocation; the instance remains usable for future invocations.
type Trap struct {
	Code TrapCode
	// Frames is a stack trace, innermost frame first, of the
	// function.DebugName strings active when the trap was raised.
	Frames []string
}

// Error implements the error interface.
func (t *Trap) Error() string {
	if len(t.Frames) == 0 {
		return fmt.Sprintf("wasm trap: %s", t.Code)
	}
	msg := fmt.Sprintf("wasm trap: %s", t.Code)
	for _, f := range t.Frames {
		msg += "\n\t" + f
	}
	return msg
}

// NewTrap constructs a Trap carrying the given stack trace.
func NewTrap(code TrapCode, frames []string) *Trap {
	return &Trap{Code: code, Frames: frames}
}
