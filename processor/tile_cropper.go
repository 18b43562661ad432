package processor

import (
	"context"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// windowEpsilon absorbs floating point noise when an AOI edge falls
// exactly on a pixel edge.
const windowEpsilon = 1e-9

// Crop cuts cov down to the envelope window of aoi and zeroes the
// pixels outside it. aoi must already be expressed in the CRS of cov.
// The window is ceil(envelope width) x ceil(envelope height) pixels;
// every pixel of it whose footprint misses aoi is set to 0 in all
// bands. An aoi disjoint from the raster yields an empty coverage.
func Crop(ctx context.Context, cov *Coverage, aoi orb.Geometry) (*Coverage, error) {
	if _, err := polygonsOf(aoi); err != nil {
		return nil, err
	}

	inv, err := cov.GeoTransform.Invert()
	if err != nil {
		return nil, err
	}

	x0, y0, width, height := envelopeWindow(inv, aoi.Bound(), cov.Width, cov.Height)
	win, err := cov.Window(ctx, x0, y0, width, height)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return win, nil
	}

	mask, err := Mask(width, height, toGrid(aoi, inv, x0, y0))
	if err != nil {
		return nil, err
	}

	for b := range win.Data {
		band := win.Data[b]
		for k, keep := range mask {
			if !keep {
				band[k] = 0
			}
		}
	}
	return win, nil
}

// GridGeometry expresses g, given in the CRS of cov, in the cell-center
// grid coordinates of cov.
func GridGeometry(cov *Coverage, g orb.Geometry) (orb.Geometry, error) {
	inv, err := cov.GeoTransform.Invert()
	if err != nil {
		return nil, err
	}
	return toGrid(g, inv, 0, 0), nil
}

func toGrid(g orb.Geometry, inv GeoTransform, x0, y0 int) orb.Geometry {
	ox, oy := float64(x0)+0.5, float64(y0)+0.5
	return project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		px, py := inv.Apply(p[0], p[1])
		return orb.Point{px - ox, py - oy}
	})
}

// envelopeWindow returns the pixel window, clipped to the raster,
// covering the bound. Its size is the bound extent in pixels rounded
// up, anchored at the pixel holding the bound's minimum corner, so the
// dimensions depend only on the bound and the pixel size.
func envelopeWindow(inv GeoTransform, bound orb.Bound, rasterWidth, rasterHeight int) (x0, y0, width, height int) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range []orb.Point{bound.Min, {bound.Max[0], bound.Min[1]}, bound.Max, {bound.Min[0], bound.Max[1]}} {
		px, py := inv.Apply(c[0], c[1])
		minX, maxX = math.Min(minX, px), math.Max(maxX, px)
		minY, maxY = math.Min(minY, py), math.Max(maxY, py)
	}

	clip := func(v, limit int) int {
		if v < 0 {
			return 0
		}
		if v > limit {
			return limit
		}
		return v
	}

	ax := int(math.Floor(minX + windowEpsilon))
	ay := int(math.Floor(minY + windowEpsilon))
	w := int(math.Max(1, math.Ceil(maxX-minX-windowEpsilon)))
	h := int(math.Max(1, math.Ceil(maxY-minY-windowEpsilon)))

	x0, x1 := clip(ax, rasterWidth), clip(ax+w, rasterWidth)
	y0, y1 := clip(ay, rasterHeight), clip(ay+h, rasterHeight)
	if x1 <= x0 || y1 <= y0 {
		return x0, y0, 0, 0
	}
	return x0, y0, x1 - x0, y1 - y0
}
