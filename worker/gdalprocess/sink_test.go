package gdalprocess

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/11904212/pcc-demo-api/processor"
)

func TestSinkSourceRoundTrip(t *testing.T) {
	RegisterGDALDrivers()
	ctx := context.Background()
	dir := t.TempDir()

	gt := processor.GeoTransform{16.0, 0.001, 0, 48.003, 0, -0.001}
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	cov, err := processor.NewCoverage("scene", 3, 3, processor.UInt16, "EPSG:4326", gt, values)
	require.NoError(t, err)
	nd := 0.0
	cov.NoData = &nd

	out, err := NewSink(dir).Encode(ctx, cov)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	path := filepath.Join(dir, "scene.tif")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	src := NewSource(nil, nil)
	got, err := src.Fetch(ctx, path)
	require.NoError(t, err)
	defer got.Close()

	assert.Equal(t, 3, got.Width)
	assert.Equal(t, 3, got.Height)
	assert.Equal(t, 1, got.Bands)
	assert.Equal(t, processor.UInt16, got.Type)
	assert.InDeltaSlice(t, gt[:], got.GeoTransform[:], 1e-12)
	require.NotNil(t, got.NoData)
	assert.Equal(t, 0.0, *got.NoData)
	assert.False(t, got.Loaded())

	win, err := got.Window(ctx, 1, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6, 8, 9}, win.Data[0])

	aoi := orb4326Square(16.0011, 48.0001, 16.0029, 48.0019)
	cropped, err := processor.Crop(ctx, got, aoi)
	require.NoError(t, err)
	assert.Equal(t, 2, cropped.Width)
	assert.Equal(t, 2, cropped.Height)
	assert.Equal(t, []float64{5, 6, 8, 9}, cropped.Data[0])
}

func TestSinkRejectsEmptyCoverage(t *testing.T) {
	_, err := NewSink("").Encode(context.Background(), &processor.Coverage{Name: "empty", CRS: "EPSG:4326"})
	assert.ErrorIs(t, err, processor.ErrIO)
}

func TestSourceMissingFile(t *testing.T) {
	RegisterGDALDrivers()
	_, err := NewSource(nil, nil).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.tif"))
	assert.ErrorIs(t, err, processor.ErrIO)
}

func orb4326Square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}
