package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrapCodeString(t *testing.T) {
	tests := []struct {
		code TrapCode
		want string
	}{
		{TrapCodeUnreachable, "unreachable"},
		{TrapCodeIntegerDivideByZero, "integer divide by zero"},
		{TrapCodeIntegerOverflow, "integer overflow"},
		{TrapCodeInvalidConversionToInteger, "invalid conversion to integer"},
		{TrapCodeOutOfBoundsMemoryAccess, "out of bounds memory access"},
		{TrapCodeOutOfBoundsTableAccess, "out of bounds table access"},
		{TrapCodeUninitializedElement, "uninitialized element"},
		{TrapCodeIndirectCallTypeMismatch, "indirect call type mismatch"},
		{TrapCodeCallStackExhausted, "call stack exhausted"},
		{TrapCodeOutOfMemory, "out of memory"},
		{TrapCode(0xff), "unknown trap"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, tc.code.String())
	}
}

func TestTrap_Error_NoFrames(t *testing.T) {
	err := NewTrap(TrapCodeUnreachable, nil)
	require.Equal(t, "wasm trap: unreachable", err.Error())
}

func TestTrap_Error_WithFrames(t *testing.T) {
	err := NewTrap(TrapCodeCallStackExhausted, []string{"inner", "outer"})
	require.Equal(t, "wasm trap: call stack exhausted\n\tinner\n\touter", err.Error())
}

func TestTrap_ImplementsError(t *testing.T) {
	var err error = NewTrap(TrapCodeOutOfMemory, nil)
	require.Error(t, err)
}
