// Package require provides minimal, dependency-light test assertions for
// internal packages, modeled on testify/require's API but implemented
// without pulling testify into non-test code paths.
package require

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// TestingT is satisfied by *testing.T; abstracted so assertions can be
// tested against a mock that records the failure message instead of the
// process exiting.
type TestingT interface {
	Fatal(args ...interface{})
}

func fail(t TestingT, msg, format string, formatWithArgs ...interface{}) {
	if format != "" {
		msg = fmt.Sprintf("%s: %s", msg, format)
	}
	if len(formatWithArgs) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, formatArgs(formatWithArgs))
	}
	t.Fatal(msg)
}

// formatArgs renders a require call's trailing formatWithArgs: Sprintf-style
// when the first argument is a format string containing a verb, otherwise a
// space-joined rendering of each argument (so a bare extra message like
// "because" or a lone non-string value reads naturally without stray
// fmt.Sprintf artifacts).
func formatArgs(args []interface{}) string {
	if s, ok := args[0].(string); ok && strings.Contains(s, "%") {
		return fmt.Sprintf(s, args[1:]...)
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

// CapturePanic runs fn and converts any panic into an error instead of
// letting it propagate, so a caller can assert on what a function panics
// with the same way it asserts on a returned error.
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("%v", v)
			}
		}
	}()
	fn()
	return
}

// Contains fails unless s contains substr.
func Contains(t TestingT, s, substr string, formatWithArgs ...interface{}) {
	if !contains(s, substr) {
		fail(t, fmt.Sprintf("expected %q to contain %q", s, substr), "", formatWithArgs...)
	}
}

func contains(s, substr string) bool {
	return bytes.Contains([]byte(s), []byte(substr))
}

// Equal fails unless expected and actual are deeply equal.
func Equal(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if actual == nil {
		if expected != nil {
			fail(t, fmt.Sprintf("expected %s, but was nil", describeNil(expected)), "", formatWithArgs...)
		}
		return
	}
	if expected == nil {
		fail(t, fmt.Sprintf("expected nil, but was %s", describeNil(actual)), "", formatWithArgs...)
		return
	}

	et, at := reflect.TypeOf(expected), reflect.TypeOf(actual)
	if et != at {
		fail(t, fmt.Sprintf("expected %s, but was %s", describeMismatchExpected(expected), describeMismatchActual(actual)), "", formatWithArgs...)
		return
	}

	if reflect.DeepEqual(expected, actual) {
		return
	}

	if isMultiLine(expected) || isMultiLine(actual) {
		msg := "unexpected value"
		if len(formatWithArgs) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, formatArgs(formatWithArgs))
		}
		t.Fatal(fmt.Sprintf("%s\nexpected:\n\t%#v\nwas:\n\t%#v\n", msg, expected, actual))
		return
	}
	fail(t, fmt.Sprintf("expected %s, but was %s", describe(expected), describe(actual)), "", formatWithArgs...)
}

// describeNil renders the non-nil side of an Equal comparison against nil:
// quoted for strings, Go-syntax representation otherwise.
func describeNil(v interface{}) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%#v", v)
}

// describeMismatchExpected renders the expected side when expected and
// actual have different types: quoted for strings, Type(value) otherwise.
func describeMismatchExpected(v interface{}) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%T(%v)", v, v)
}

// describeMismatchActual renders the actual side when expected and actual
// have different types: always Type(value), even for strings.
func describeMismatchActual(v interface{}) string {
	return fmt.Sprintf("%T(%v)", v, v)
}

// isMultiLine reports whether Equal should render its failure using the
// expected/was block format instead of a single "expected X, but was Y" line.
// Byte slices and structs get the block format since their %#v output is
// long enough to be hard to read inline; scalars stay single-line.
func isMultiLine(v interface{}) bool {
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Struct || k == reflect.Ptr
}

func describe(v interface{}) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// NotEqual fails if expected and actual are deeply equal.
func NotEqual(t TestingT, expected, actual interface{}, formatWithArgs ...interface{}) {
	if reflect.DeepEqual(expected, actual) {
		fail(t, fmt.Sprintf("expected to not equal %s", describeNotEqual(expected)), "", formatWithArgs...)
	}
}

func describeNotEqual(v interface{}) string {
	if v == nil {
		return fmt.Sprintf("%v", v)
	}
	if isMultiLine(v) {
		return fmt.Sprintf("%#v", v)
	}
	return describe(v)
}

// EqualError fails unless err is non-nil and err.Error() == expected.
func EqualError(t TestingT, err error, expected string, formatWithArgs ...interface{}) {
	if err == nil {
		fail(t, "expected an error, but was nil", "", formatWithArgs...)
		return
	}
	if err.Error() != expected {
		fail(t, fmt.Sprintf("expected error %q, but was %q", expected, err.Error()), "", formatWithArgs...)
	}
}

// Error fails if err is nil.
func Error(t TestingT, err error, formatWithArgs ...interface{}) {
	if err == nil {
		fail(t, "expected an error, but was nil", "", formatWithArgs...)
	}
}

// ErrorIs fails unless errors.Is(err, target).
func ErrorIs(t TestingT, err, target error, formatWithArgs ...interface{}) {
	if !errors.Is(err, target) {
		fail(t, fmt.Sprintf("expected errors.Is(%v, %v), but it wasn't", err, target), "", formatWithArgs...)
	}
}

// Nil fails unless v is nil (including a typed nil pointer/interface).
func Nil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if !isNil(v) {
		fail(t, fmt.Sprintf("expected nil, but was %v", v), "", formatWithArgs...)
	}
}

// NotNil fails if v is nil.
func NotNil(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	if isNil(v) {
		fail(t, "expected to not be nil", "", formatWithArgs...)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// NoError fails if err is non-nil.
func NoError(t TestingT, err error, formatWithArgs ...interface{}) {
	if err != nil {
		fail(t, fmt.Sprintf("expected no error, but was %v", err), "", formatWithArgs...)
	}
}

// True fails unless v is true.
func True(t TestingT, v bool, formatWithArgs ...interface{}) {
	if !v {
		fail(t, "expected true, but was false", "", formatWithArgs...)
	}
}

// False fails unless v is false.
func False(t TestingT, v bool, formatWithArgs ...interface{}) {
	if v {
		fail(t, "expected false, but was true", "", formatWithArgs...)
	}
}

// Same fails unless x and y are pointers to the same object.
func Same(t TestingT, x, y interface{}, formatWithArgs ...interface{}) {
	if !samePointer(x, y) {
		fail(t, fmt.Sprintf("expected %v to point to the same object as %v", y, x), "", formatWithArgs...)
	}
}

// NotSame fails if x and y are pointers to the same object.
func NotSame(t TestingT, x, y interface{}, formatWithArgs ...interface{}) {
	if samePointer(x, y) {
		fail(t, fmt.Sprintf("expected %v to point to a different object", x), "", formatWithArgs...)
	}
}

func samePointer(x, y interface{}) bool {
	xv, yv := reflect.ValueOf(x), reflect.ValueOf(y)
	if xv.Kind() != reflect.Ptr || yv.Kind() != reflect.Ptr {
		return false
	}
	if xv.Type() != yv.Type() {
		return false
	}
	return xv.Pointer() == yv.Pointer()
}

// Zero fails unless v is the zero value for its type.
func Zero(t TestingT, v interface{}, formatWithArgs ...interface{}) {
	rv := reflect.ValueOf(v)
	if !rv.IsZero() {
		fail(t, fmt.Sprintf("expected zero, but was %v", v), "", formatWithArgs...)
	}
}
