package processor

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestValidateAOI(t *testing.T) {
	cfg := DefaultValidationConfig()

	valid := []AOI{
		{Geometry: rect(16.37, 48.20, 16.38, 48.21)},
		{Geometry: orb.MultiPolygon{rect(16.37, 48.20, 16.375, 48.205), rect(16.38, 48.20, 16.385, 48.205)}},
		{Geometry: rect(600000, 5300000, 610000, 5310000), CRS: "EPSG:32633"},
		{Geometry: orb.Polygon{
			rect(16.37, 48.20, 16.38, 48.21)[0],
			rect(16.372, 48.202, 16.374, 48.204)[0],
			rect(16.376, 48.202, 16.378, 48.204)[0],
		}},
		{Geometry: orb.MultiPolygon{
			orb.Polygon{rect(16.37, 48.20, 16.38, 48.21)[0], rect(16.372, 48.202, 16.378, 48.208)[0]},
			rect(16.374, 48.204, 16.376, 48.206),
		}},
	}
	for i, aoi := range valid {
		assert.NoError(t, ValidateAOI(aoi, cfg), "aoi %d", i)
	}

	invalid := map[string]AOI{
		"nil":        {},
		"point":      {Geometry: orb.Point{16.37, 48.2}},
		"bowtie":     {Geometry: orb.Polygon{orb.Ring{{0, 0}, {0.01, 0.01}, {0.01, 0}, {0, 0.01}, {0, 0}}}},
		"open ring":  {Geometry: orb.Polygon{orb.Ring{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}}}},
		"too short":  {Geometry: orb.Polygon{orb.Ring{{0, 0}, {0.01, 0}, {0, 0}}}},
		"lat first":  {Geometry: rect(48.20, 100.0, 48.21, 100.01)},
		"too large":  {Geometry: rect(16, 48, 17, 49)},
		"empty poly": {Geometry: orb.Polygon{}},
		"hole outside shell": {Geometry: orb.Polygon{
			rect(16.37, 48.20, 16.38, 48.21)[0],
			rect(16.39, 48.20, 16.395, 48.205)[0],
		}},
		"hole crossing shell": {Geometry: orb.Polygon{
			rect(16.37, 48.20, 16.38, 48.21)[0],
			rect(16.375, 48.202, 16.385, 48.205)[0],
		}},
		"overlapping holes": {Geometry: orb.Polygon{
			rect(16.37, 48.20, 16.38, 48.21)[0],
			rect(16.371, 48.201, 16.375, 48.205)[0],
			rect(16.373, 48.203, 16.377, 48.207)[0],
		}},
		"overlapping parts": {Geometry: orb.MultiPolygon{
			rect(16.37, 48.20, 16.38, 48.21),
			rect(16.375, 48.205, 16.385, 48.215),
		}},
		"nested parts": {Geometry: orb.MultiPolygon{
			rect(16.37, 48.20, 16.38, 48.21),
			rect(16.372, 48.202, 16.374, 48.204),
		}},
	}
	for name, aoi := range invalid {
		assert.ErrorIs(t, ValidateAOI(aoi, cfg), ErrValidation, name)
	}
}

func TestValidateAOIAreaTolerance(t *testing.T) {
	// roughly 12.3 km2 at the equator
	aoi := AOI{Geometry: rect(0, 0, 0.0316, 0.0316)}

	assert.ErrorIs(t, ValidateAOI(aoi, ValidationConfig{MaxAreaKm2: 10, AreaTolerance: 1.1}), ErrValidation)
	assert.NoError(t, ValidateAOI(aoi, ValidationConfig{MaxAreaKm2: 10, AreaTolerance: 1.3}))
	assert.NoError(t, ValidateAOI(aoi, ValidationConfig{}))
}

func TestAOISourceCRS(t *testing.T) {
	assert.Equal(t, "EPSG:4326", AOI{}.SourceCRS())
	assert.True(t, AOI{CRS: "epsg:4326"}.Geographic())
	assert.False(t, AOI{CRS: "EPSG:3857"}.Geographic())
}
