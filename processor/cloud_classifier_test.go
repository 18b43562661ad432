package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCloudy(t *testing.T) {
	allowed := NewClassSet(4, 5, 6, 7)

	cases := []struct {
		name    string
		values  []float64
		allowed ClassSet
		cloudy  bool
	}{
		{"all clear", []float64{4, 5, 6, 7}, allowed, false},
		{"one cloud", []float64{4, 5, 8, 7}, allowed, true},
		{"zeros allowed", []float64{0, 0, 0, 0}, NewClassSet(0, 4, 5, 6, 7), false},
		{"zeros not allowed", []float64{0, 0, 0, 0}, allowed, true},
		{"nan", []float64{4, math.NaN(), 4, 4}, allowed, true},
		{"fraction", []float64{4, 4.5, 4, 4}, allowed, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cov := gridRaster(t, 2, 2, tc.values)
			cloudy, err := IsCloudy(cov, tc.allowed)
			require.NoError(t, err)
			assert.Equal(t, tc.cloudy, cloudy)
		})
	}
}

func TestIsCloudyRequiresSingleBand(t *testing.T) {
	cov := gridRaster(t, 1, 1, []float64{4}, []float64{4})
	_, err := IsCloudy(cov, NewClassSet(4))
	assert.ErrorIs(t, err, ErrIncompatibleRasters)
}

func TestClassSetValues(t *testing.T) {
	assert.Equal(t, []int{0, 4, 7}, NewClassSet(7, 0, 4, 4).Values())
	assert.False(t, NewClassSet(1).Contains(math.Inf(1)))
	assert.True(t, NewClassSet(1).Contains(1.0))
}
