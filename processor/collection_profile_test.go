package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRegistryLookup(t *testing.T) {
	reg, err := NewProfileRegistry(DefaultProfiles()...)
	require.NoError(t, err)

	p, err := reg.Lookup("sentinel-2-l2a")
	require.NoError(t, err)
	assert.Equal(t, "B08", p.NIRBand)
	assert.Equal(t, "B04", p.RedBand)
	assert.Equal(t, "visual", p.TrueColorBand)
	assert.Equal(t, "SCL", p.ClassificationBand)
	assert.True(t, p.ClearSet().Contains(4))
	assert.False(t, p.ClearSet().Contains(9))

	_, err = reg.Lookup("landsat-c2-l2")
	assert.ErrorIs(t, err, ErrUnsupportedCollection)
	_, err = reg.Lookup("")
	assert.ErrorIs(t, err, ErrUnsupportedCollection)

	assert.Equal(t, []string{"sentinel-2-l2a"}, reg.Collections())
}

func TestProfileRegistryRejectsBadProfiles(t *testing.T) {
	_, err := NewProfileRegistry(DefaultProfiles()[0], DefaultProfiles()[0])
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewProfileRegistry(&CollectionProfile{Collection: "x", NIRBand: "B08"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewProfileRegistry(&CollectionProfile{Collection: "x", NIRBand: "n", RedBand: "r", ClassificationBand: "scl"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewProfileRegistry(&CollectionProfile{Collection: "x", NIRBand: "n", RedBand: "r", Indices: map[string]string{"bad": "(n -"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProfileRegistryCopiesInput(t *testing.T) {
	in := DefaultProfiles()[0]
	reg, err := NewProfileRegistry(in)
	require.NoError(t, err)

	in.ClearValues[0] = 99
	p, err := reg.Lookup("sentinel-2-l2a")
	require.NoError(t, err)
	assert.False(t, p.ClearSet().Contains(99))
}

func TestSwappableProfiles(t *testing.T) {
	empty, err := NewProfileRegistry()
	require.NoError(t, err)
	full, err := NewProfileRegistry(DefaultProfiles()...)
	require.NoError(t, err)

	s := NewSwappableProfiles(empty)
	_, err = s.Lookup("sentinel-2-l2a")
	assert.ErrorIs(t, err, ErrUnsupportedCollection)

	s.Swap(full)
	_, err = s.Lookup("sentinel-2-l2a")
	assert.NoError(t, err)
}
