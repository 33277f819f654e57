package tinywasm

import "github.com/tinygo-wasm/tinywasm/internal/wasm"

// DefaultCallStackDepth is the default nesting limit a Runtime enforces
// before raising TrapCodeCallStackExhausted.
const DefaultCallStackDepth = 1024

// RuntimeConfig controls the behavior of a Runtime created by NewRuntime.
// Every With* method returns a new, independent copy, exactly mirroring the
// teacher's chained-immutable-config pattern.
type RuntimeConfig struct {
	enabledFeatures wasm.Features
	callStackDepth  int
	memoryMaxPages  uint32
	listener        FunctionListener
}

// NewRuntimeConfig returns a RuntimeConfig with every "accepted 2.0
// extension" feature enabled, a 1024-deep call stack, and the default
// memory ceiling of 65536 pages (4GiB).
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		enabledFeatures: wasm.DefaultFeatures(),
		callStackDepth:  DefaultCallStackDepth,
		memoryMaxPages:  65536,
	}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithCallStackDepth bounds the number of nested function calls (direct or
// indirect) a Call may make before trapping with TrapCodeCallStackExhausted.
func (c *RuntimeConfig) WithCallStackDepth(depth int) *RuntimeConfig {
	ret := c.clone()
	ret.callStackDepth = depth
	return ret
}

// WithMemoryMaxPages lowers the maximum number of 64KiB pages a module's
// memory may grow to when the module itself declares no maximum.
func (c *RuntimeConfig) WithMemoryMaxPages(pages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryMaxPages = pages
	return ret
}

// WithFeatureMultiValue toggles whether function/block types may declare
// more than one result.
func (c *RuntimeConfig) WithFeatureMultiValue(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures.MultiValue = enabled
	return ret
}

// WithFeatureMutableGlobal toggles whether globals may be declared mutable.
func (c *RuntimeConfig) WithFeatureMutableGlobal(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures.MutableGlobals = enabled
	return ret
}

// WithFeatureSignExtensionOps toggles i32/i64 sign-extension instructions.
func (c *RuntimeConfig) WithFeatureSignExtensionOps(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures.SignExtensionOps = enabled
	return ret
}

// WithFeatureSaturatingTruncation toggles the 0xFC-prefixed saturating
// float-to-integer truncation instructions.
func (c *RuntimeConfig) WithFeatureSaturatingTruncation(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures.SaturatingTruncation = enabled
	return ret
}

// WithFeatureReferenceTypes toggles funcref/externref and the table/bulk
// instructions that operate on them.
func (c *RuntimeConfig) WithFeatureReferenceTypes(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.enabledFeatures.ReferenceTypes = enabled
	ret.enabledFeatures.BulkMemory = enabled
	return ret
}

// WithFunctionListener attaches a FunctionListener notified before and
// after every function call a Runtime makes. Pass nil to detach.
func (c *RuntimeConfig) WithFunctionListener(l FunctionListener) *RuntimeConfig {
	ret := c.clone()
	ret.listener = l
	return ret
}

// ModuleConfig configures a single InstantiateModule call.
type ModuleConfig struct {
	name string
}

// NewModuleConfig returns a ModuleConfig with no overrides: the module's
// own decoded name (or, for a host module, the name passed to
// NewHostModuleBuilder) is used as-is.
func NewModuleConfig() *ModuleConfig {
	return &ModuleConfig{}
}

// WithName overrides the name a module is registered under in the Runtime's
// Store, which is also the name other modules import it by.
func (c *ModuleConfig) WithName(name string) *ModuleConfig {
	ret := *c
	ret.name = name
	return &ret
}
