package processor

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridRaster builds a north-up raster of 1x1 pixels whose top left
// corner is (0, height).
func gridRaster(t *testing.T, width, height int, bands ...[]float64) *Coverage {
	t.Helper()
	cov, err := NewCoverage("grid", width, height, Float32, "EPSG:32633", GeoTransform{0, 1, 0, float64(height), 0, -1}, bands...)
	require.NoError(t, err)
	return cov
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func TestCropCoveringAOIIsIdentity(t *testing.T) {
	cov := gridRaster(t, 4, 4, seq(16), constBand(16, 3))

	for _, aoi := range []orb.Geometry{rect(0, 0, 4, 4), rect(-10, -10, 20, 20)} {
		out, err := Crop(context.Background(), cov, aoi)
		require.NoError(t, err)
		assert.Equal(t, 4, out.Width)
		assert.Equal(t, 4, out.Height)
		assert.Equal(t, cov.GeoTransform, out.GeoTransform)
		assert.Equal(t, cov.Data, out.Data)
	}
}

func TestCropDisjointAOIIsEmpty(t *testing.T) {
	cov := gridRaster(t, 4, 4, seq(16))

	out, err := Crop(context.Background(), cov, rect(10, 10, 12, 12))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Width*out.Height)

	_, err = Aggregate(out)
	assert.ErrorIs(t, err, ErrEmptyStatistic)
}

func TestCropDimensionsFollowEnvelope(t *testing.T) {
	cov := gridRaster(t, 4, 4, seq(16))

	square, err := Crop(context.Background(), cov, rect(0.5, 0.5, 2.5, 2.5))
	require.NoError(t, err)
	triangle, err := Crop(context.Background(), cov, orb.Polygon{orb.Ring{{0.5, 0.5}, {2.5, 0.5}, {0.5, 2.5}, {0.5, 0.5}}})
	require.NoError(t, err)

	for _, out := range []*Coverage{square, triangle} {
		assert.Equal(t, 2, out.Width)
		assert.Equal(t, 2, out.Height)
		assert.Equal(t, GeoTransform{0, 1, 0, 3, 0, -1}, out.GeoTransform)
	}

	small, err := Crop(context.Background(), cov, rect(0.25, 0.25, 1.25, 1.25))
	require.NoError(t, err)
	assert.Equal(t, 1, small.Width)
	assert.Equal(t, 1, small.Height)
	assert.Equal(t, GeoTransform{0, 1, 0, 2, 0, -1}, small.GeoTransform)
	assert.Equal(t, []float64{9}, small.Data[0])

	wide, err := Crop(context.Background(), cov, rect(0.5, 1.5, 3.7, 1.9))
	require.NoError(t, err)
	assert.Equal(t, 4, wide.Width)
	assert.Equal(t, 1, wide.Height)
}

func TestCropZeroesPixelsOutsideTriangle(t *testing.T) {
	cov := gridRaster(t, 3, 3, constBand(9, 5))

	// hypotenuse passes through the corner shared by the last pixel of
	// the diagonal and its neighbours
	aoi := orb.Polygon{orb.Ring{{0, 3}, {3, 3}, {0, 0}, {0, 3}}}
	out, err := Crop(context.Background(), cov, aoi)
	require.NoError(t, err)

	require.Equal(t, 3, out.Width)
	require.Equal(t, 3, out.Height)
	assert.Equal(t, []float64{5, 5, 5, 5, 5, 5, 5, 5, 0}, out.Data[0])
}

func TestCropHoleExcludesCoveredPixel(t *testing.T) {
	cov := gridRaster(t, 5, 5, constBand(25, 1))

	aoi := orb.Polygon{
		rect(0, 0, 5, 5)[0],
		orb.Ring{{1.2, 1.2}, {1.2, 3.8}, {3.8, 3.8}, {3.8, 1.2}, {1.2, 1.2}},
	}
	out, err := Crop(context.Background(), cov, aoi)
	require.NoError(t, err)

	for k, v := range out.Data[0] {
		if k == 2*5+2 {
			assert.Equal(t, 0.0, v, "center pixel lies inside the hole")
		} else {
			assert.Equal(t, 1.0, v, "pixel %d", k)
		}
	}
}

func TestCropMultiPolygon(t *testing.T) {
	cov := gridRaster(t, 4, 1, seq(4))

	aoi := orb.MultiPolygon{rect(0.2, 0.2, 0.8, 0.8), rect(3.2, 0.2, 3.8, 0.8)}
	out, err := Crop(context.Background(), cov, aoi)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 4}, out.Data[0])
}

func TestCropReadsOnlyEnvelopeWindow(t *testing.T) {
	full := gridRaster(t, 8, 8, seq(64))
	rd := &recordingReader{full: full}
	lazy := &Coverage{Name: "lazy", Width: 8, Height: 8, Bands: 1, Type: Float32, CRS: full.CRS, GeoTransform: full.GeoTransform, Reader: rd}

	out, err := Crop(context.Background(), lazy, rect(2.5, 2.5, 4.5, 3.5))
	require.NoError(t, err)
	assert.Equal(t, []windowCall{{2, 4, 2, 1}}, rd.calls)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 1, out.Height)
}

func TestCropSingularTransform(t *testing.T) {
	cov := gridRaster(t, 2, 2, seq(4))
	cov.GeoTransform = GeoTransform{0, 0, 0, 0, 0, 0}

	_, err := Crop(context.Background(), cov, rect(0, 0, 1, 1))
	assert.ErrorIs(t, err, ErrTransformFailure)
}

func TestCropRejectsNonPolygon(t *testing.T) {
	cov := gridRaster(t, 2, 2, seq(4))

	_, err := Crop(context.Background(), cov, orb.Point{1, 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMaskLeftHalfTriangle(t *testing.T) {
	// cell-center grid coordinates of a 2x2 raster
	aoi := orb.Polygon{orb.Ring{{-0.5, -0.5}, {-0.5, 1.5}, {0.4, 0.5}, {-0.5, -0.5}}}

	mask, err := Mask(2, 2, aoi)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, false}, mask)
}

func TestMaskTouchingFootprintsAreInside(t *testing.T) {
	// exactly the footprint of pixel (0, 0)
	aoi := rect(-0.5, -0.5, 0.5, 0.5)

	mask, err := Mask(3, 3, aoi)
	require.NoError(t, err)
	assert.Equal(t, []bool{
		true, true, false,
		true, true, false,
		false, false, false,
	}, mask)
}

func TestMaskPolygonInsideSinglePixel(t *testing.T) {
	aoi := rect(0.9, 0.9, 1.1, 1.1)

	mask, err := Mask(3, 3, aoi)
	require.NoError(t, err)
	assert.Equal(t, []bool{
		false, false, false,
		false, true, false,
		false, false, false,
	}, mask)
}

func TestSegmentsIntersect(t *testing.T) {
	assert.True(t, segmentsIntersect(orb.Point{0, 0}, orb.Point{2, 2}, orb.Point{0, 2}, orb.Point{2, 0}))
	assert.True(t, segmentsIntersect(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{1, 0}, orb.Point{1, 1}), "shared endpoint")
	assert.True(t, segmentsIntersect(orb.Point{0, 0}, orb.Point{2, 0}, orb.Point{1, 0}, orb.Point{3, 0}), "collinear overlap")
	assert.False(t, segmentsIntersect(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}, orb.Point{3, 0}))
	assert.False(t, segmentsIntersect(orb.Point{0, 0}, orb.Point{1, 1}, orb.Point{0, 1}, orb.Point{0.4, 0.6}))
}
