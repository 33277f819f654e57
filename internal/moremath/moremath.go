// Package moremath supplies floating point helpers whose NaN/±0 semantics
// diverge from the Go standard library but match the WebAssembly numeric
// instructions.
package moremath

import "math"

// WasmCompatMin normalizes Go's math.Min to match the semantics of the Wasm
// f32.min/f64.min instructions: either operand being NaN always produces
// NaN, even when the other operand is -Inf.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L74-L91
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax normalizes Go's math.Max to match the semantics of the Wasm
// f32.max/f64.max instructions.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L42-L59
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)

	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 rounds to the nearest integral value, ties to even,
// as required by f32.nearest.
func WasmCompatNearestF32(f float32) float32 {
	return float32(math.RoundToEven(float64(f)))
}

// WasmCompatNearestF64 rounds to the nearest integral value, ties to even,
// as required by f64.nearest.
func WasmCompatNearestF64(f float64) float64 {
	return math.RoundToEven(f)
}
