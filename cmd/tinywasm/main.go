// Command tinywasm runs or inspects a WebAssembly 1.0 binary from the
// command line, a thin wrapper around the tinywasm package.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tinygo-wasm/tinywasm"
	"github.com/tinygo-wasm/tinywasm/internal/version"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer) int {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "Prints usage.")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		return 0
	}

	switch subCmd := flag.Arg(0); subCmd {
	case "run":
		return doRun(flag.Args()[1:], stdOut, stdErr)
	case "version":
		fmt.Fprintln(stdOut, version.GetTinyWasmVersion())
		return 0
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		return 1
	}
}

func doRun(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "Prints usage.")

	var callStackDepth int
	flags.IntVar(&callStackDepth, "call-stack-depth", tinywasm.DefaultCallStackDepth,
		"Maximum nested function call depth before trapping.")

	var invoke string
	flags.StringVar(&invoke, "invoke", "_start",
		"Name of the exported function to call after instantiation.")

	_ = flags.Parse(args)

	if help {
		printRunUsage(stdErr, flags)
		return 0
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to wasm file")
		printRunUsage(stdErr, flags)
		return 1
	}

	wasmPath := flags.Arg(0)
	binary, err := os.ReadFile(wasmPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading wasm binary: %v\n", err)
		return 1
	}

	ctx := context.Background()
	config := tinywasm.NewRuntimeConfig().WithCallStackDepth(callStackDepth)
	rt := tinywasm.NewRuntime(ctx, config)
	defer rt.Close(ctx)

	mod, err := rt.InstantiateModuleFromBinary(ctx, binary)
	if err != nil {
		fmt.Fprintf(stdErr, "error instantiating wasm binary: %v\n", err)
		return 1
	}

	fn := mod.ExportedFunction(invoke)
	if fn == nil {
		fmt.Fprintf(stdErr, "module has no exported function %q\n", invoke)
		return 1
	}

	results, err := fn.Call(ctx)
	if err != nil {
		fmt.Fprintf(stdErr, "error calling %q: %v\n", invoke, err)
		return 1
	}
	for _, r := range results {
		fmt.Fprintln(stdOut, r)
	}
	return 0
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "tinywasm is a WebAssembly 1.0 runtime")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:")
	fmt.Fprintln(stdErr, "\ttinywasm <command> [arguments...]")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "The commands are:")
	fmt.Fprintln(stdErr, "\trun\t\tRuns a WebAssembly binary")
	fmt.Fprintln(stdErr, "\tversion\t\tPrints the version")
}

func printRunUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "tinywasm run [flags] <path to .wasm file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Flags:")
	flags.PrintDefaults()
}
