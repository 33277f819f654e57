package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTypeName(t *testing.T) {
	tests := []struct {
		vt   ValueType
		want string
	}{
		{ValueTypeI32, "i32"},
		{ValueTypeI64, "i64"},
		{ValueTypeF32, "f32"},
		{ValueTypeF64, "f64"},
		{ValueTypeFuncref, "funcref"},
		{ValueTypeExternref, "externref"},
		{0xff, "unknown"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ValueTypeName(tc.vt))
	}
}

func TestExternTypeName(t *testing.T) {
	require.Equal(t, "func", ExternTypeName(ExternTypeFunc))
	require.Equal(t, "table", ExternTypeName(ExternTypeTable))
	require.Equal(t, "memory", ExternTypeName(ExternTypeMemory))
	require.Equal(t, "global", ExternTypeName(ExternTypeGlobal))
	require.Equal(t, "0xff", ExternTypeName(0xff))
}

func TestEncodeDecodeI32(t *testing.T) {
	require.Equal(t, uint64(0xffffffff), EncodeI32(-1))
	require.Equal(t, uint64(42), EncodeI32(42))
}

func TestEncodeDecodeI64(t *testing.T) {
	require.Equal(t, uint64(math.MaxUint64), EncodeI64(-1))
}

func TestEncodeDecodeF32RoundTrip(t *testing.T) {
	want := float32(3.14159)
	require.Equal(t, want, DecodeF32(EncodeF32(want)))
}

func TestEncodeDecodeF64RoundTrip(t *testing.T) {
	want := 2.718281828459045
	require.Equal(t, want, DecodeF64(EncodeF64(want)))
}

func TestEncodeDecodeFuncrefRoundTrip(t *testing.T) {
	var want uintptr = 0x1234
	require.Equal(t, want, DecodeFuncref(EncodeFuncref(want)))
}

func TestEncodeDecodeExternrefRoundTrip(t *testing.T) {
	var want uintptr = 0x5678
	require.Equal(t, want, DecodeExternref(EncodeExternref(want)))
}
