package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func nameBytes(s string) []byte {
	out := uleb(uint32(len(s)))
	return append(out, s...)
}

// buildStartModule encodes a module exporting a niladic () -> (i32)
// function under exportName that returns 42.
func buildStartModule(exportName string) []byte {
	typeSec := section(1, append(uleb(1), []byte{0x60, 0x00, 0x01, 0x7f}...)) // () -> (i32)
	funcSec := section(3, append(uleb(1), uleb(0)...))

	exportEntry := append(nameBytes(exportName), 0x00)
	exportEntry = append(exportEntry, uleb(0)...)
	exportSec := section(7, append(uleb(1), exportEntry...))

	body := []byte{0x41, 42, 0x0B} // i32.const 42; end
	code := append(uleb(0), body...)
	codeEntry := append(uleb(uint32(len(code))), code...)
	codeSec := section(10, append(uleb(1), codeEntry...))

	buf := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
	buf = append(buf, typeSec...)
	buf = append(buf, funcSec...)
	buf = append(buf, exportSec...)
	buf = append(buf, codeSec...)
	return buf
}

// runMain executes doMain with a fresh flag.CommandLine (main's flags are
// registered on the global FlagSet, so each invocation needs its own to
// avoid "flag redefined" panics across tests).
func runMain(t *testing.T, args []string) (int, string, string) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = append([]string{"tinywasm"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	code := doMain(stdOut, stdErr)
	return code, stdOut.String(), stdErr.String()
}

func TestDoMain_Version(t *testing.T) {
	code, stdOut, _ := runMain(t, []string{"version"})
	require.Equal(t, 0, code)
	require.NotEmpty(t, stdOut)
}

func TestDoMain_Help(t *testing.T) {
	code, _, stdErr := runMain(t, []string{"-h"})
	require.Equal(t, 0, code)
	require.Contains(t, stdErr, "Usage:")
}

func TestDoMain_NoArgsPrintsUsage(t *testing.T) {
	code, _, stdErr := runMain(t, []string{})
	require.Equal(t, 0, code)
	require.Contains(t, stdErr, "Usage:")
}

func TestDoMain_InvalidCommand(t *testing.T) {
	code, _, stdErr := runMain(t, []string{"bogus"})
	require.Equal(t, 1, code)
	require.Contains(t, stdErr, "invalid command")
}

func TestDoRun_MissingPath(t *testing.T) {
	code, _, stdErr := runMain(t, []string{"run"})
	require.Equal(t, 1, code)
	require.Contains(t, stdErr, "missing path to wasm file")
}

func TestDoRun_FileNotFound(t *testing.T) {
	code, _, stdErr := runMain(t, []string{"run", "does-not-exist.wasm"})
	require.Equal(t, 1, code)
	require.Contains(t, stdErr, "error reading wasm binary")
}

func TestDoRun_InvalidBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wasm")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x00, 0x00, 0x00}, 0644))

	code, _, stdErr := runMain(t, []string{"run", path})
	require.Equal(t, 1, code)
	require.Contains(t, stdErr, "error instantiating wasm binary")
}

func TestDoRun_MissingExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wasm")
	require.NoError(t, os.WriteFile(path, buildStartModule("_start"), 0644))

	code, _, stdErr := runMain(t, []string{"run", "-invoke", "missing", path})
	require.Equal(t, 1, code)
	require.Contains(t, stdErr, `no exported function "missing"`)
}

func TestDoRun_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wasm")
	require.NoError(t, os.WriteFile(path, buildStartModule("_start"), 0644))

	code, stdOut, stdErr := runMain(t, []string{"run", path})
	require.Equal(t, 0, code)
	require.Empty(t, stdErr)
	require.Equal(t, "42\n", stdOut)
}

func TestDoRun_InvokeFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wasm")
	require.NoError(t, os.WriteFile(path, buildStartModule("compute"), 0644))

	code, stdOut, _ := runMain(t, []string{"run", "-invoke", "compute", path})
	require.Equal(t, 0, code)
	require.Equal(t, "42\n", stdOut)
}
