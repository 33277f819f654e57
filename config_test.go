package tinywasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRuntimeConfig_defaults(t *testing.T) {
	c := NewRuntimeConfig()
	require.Equal(t, DefaultCallStackDepth, c.callStackDepth)
	require.Equal(t, uint32(65536), c.memoryMaxPages)
	require.Nil(t, c.listener)
}

func TestRuntimeConfig_WithMethodsReturnNewCopies(t *testing.T) {
	c1 := NewRuntimeConfig()
	c2 := c1.WithCallStackDepth(10)

	require.NotSame(t, c1, c2)
	require.Equal(t, DefaultCallStackDepth, c1.callStackDepth, "original is untouched")
	require.Equal(t, 10, c2.callStackDepth)
}

func TestRuntimeConfig_WithFeatureToggles(t *testing.T) {
	c := NewRuntimeConfig().
		WithFeatureMultiValue(false).
		WithFeatureMutableGlobal(false).
		WithFeatureSignExtensionOps(false).
		WithFeatureSaturatingTruncation(false).
		WithFeatureReferenceTypes(false)

	require.False(t, c.enabledFeatures.MultiValue)
	require.False(t, c.enabledFeatures.MutableGlobals)
	require.False(t, c.enabledFeatures.SignExtensionOps)
	require.False(t, c.enabledFeatures.SaturatingTruncation)
	require.False(t, c.enabledFeatures.ReferenceTypes)
	require.False(t, c.enabledFeatures.BulkMemory, "reference-types toggle also gates bulk memory")
}

func TestRuntimeConfig_WithMemoryMaxPages(t *testing.T) {
	c := NewRuntimeConfig().WithMemoryMaxPages(10)
	require.Equal(t, uint32(10), c.memoryMaxPages)
}

func TestModuleConfig_WithName(t *testing.T) {
	c1 := NewModuleConfig()
	c2 := c1.WithName("foo")

	require.Equal(t, "", c1.name)
	require.Equal(t, "foo", c2.name)
}
