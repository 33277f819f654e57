package wasm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	s := NewStore(DefaultFeatures())
	require.NotNil(t, s.modules)
	require.Empty(t, s.Functions)
}

func TestStore_Module(t *testing.T) {
	s := NewStore(DefaultFeatures())

	_, ok := s.Module("foo")
	require.False(t, ok)

	mi := &ModuleInstance{Name: "foo", Store: s, Exports: map[string]Export{}}
	require.NoError(t, s.registerModule(mi))

	got, ok := s.Module("foo")
	require.True(t, ok)
	require.Same(t, mi, got)
}

func TestStore_registerModule_duplicateName(t *testing.T) {
	s := NewStore(DefaultFeatures())
	mi1 := &ModuleInstance{Name: "foo", Store: s, Exports: map[string]Export{}}
	mi2 := &ModuleInstance{Name: "foo", Store: s, Exports: map[string]Export{}}

	require.NoError(t, s.registerModule(mi1))
	require.EqualError(t, s.registerModule(mi2), `module "foo" already instantiated in this store`)
}

func TestStore_deleteModule(t *testing.T) {
	s := NewStore(DefaultFeatures())
	mi := &ModuleInstance{Name: "foo", Store: s, Exports: map[string]Export{}}
	require.NoError(t, s.registerModule(mi))

	s.deleteModule("foo")
	_, ok := s.Module("foo")
	require.False(t, ok)

	// Name becomes available for reuse.
	require.NoError(t, s.registerModule(mi))
}

func TestStore_CloseAllModules(t *testing.T) {
	s := NewStore(DefaultFeatures())
	m1 := &ModuleInstance{Name: "m1", Store: s, Exports: map[string]Export{}}
	m2 := &ModuleInstance{Name: "m2", Store: s, Exports: map[string]Export{}}
	require.NoError(t, s.registerModule(m1))
	require.NoError(t, s.registerModule(m2))

	require.NoError(t, s.CloseAllModules(context.Background()))

	_, ok := s.Module("m1")
	require.False(t, ok)
	_, ok = s.Module("m2")
	require.False(t, ok)
}

func TestMemoryInstance_GrowAndSize(t *testing.T) {
	m := &MemoryInstance{Data: make([]byte, PageSize), Min: 1, Max: 2}
	require.Equal(t, uint32(1), m.Size())

	prev, ok := m.Grow(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), m.Size())

	_, ok = m.Grow(1)
	require.False(t, ok)
	require.Equal(t, uint32(2), m.Size())
}

func TestMemoryInstance_GrowZero(t *testing.T) {
	m := &MemoryInstance{Data: make([]byte, PageSize), Min: 1, Max: 1}
	prev, ok := m.Grow(0)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
}

func TestElementInstance_Dropped(t *testing.T) {
	e := &ElementInstance{References: []uint64{1}}
	require.False(t, e.Dropped())
	e.References = nil
	require.True(t, e.Dropped())
}

func TestDataInstance_Dropped(t *testing.T) {
	d := &DataInstance{Bytes: []byte{1}}
	require.False(t, d.Dropped())
	d.Bytes = nil
	require.True(t, d.Dropped())
}
