// Package version exposes the version of this module, for use by the CLI's
// "version" subcommand and anywhere else a build wants to report it.
package version

import "runtime/debug"

// Default is returned when the version can't be determined, e.g. because
// the binary wasn't built with module information (a plain `go build` of a
// package main outside of GOPATH mode always has it, but an old toolchain
// or -trimpath variant might not).
const Default = "dev"

// GetTinyWasmVersion returns the version of this module as resolved by the
// Go toolchain: the tagged version when the main module (or a replace
// directive) pins one, the pseudo-version for a commit otherwise, or
// Default if build info isn't available at all.
func GetTinyWasmVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}

	// A `go run`/`go build` of cmd/tinywasm itself reports this module via
	// info.Main; an external importer sees it listed in info.Deps instead.
	if info.Main.Path == modulePath && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Replace != nil && dep.Replace.Version != "" {
				return dep.Replace.Version
			}
			if dep.Version != "" {
				return dep.Version
			}
		}
	}
	return Default
}

const modulePath = "github.com/tinygo-wasm/tinywasm"
