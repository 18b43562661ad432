package processor

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// preparedPolygon caches the bound of one AOI polygon expressed in
// cell-center grid coordinates.
type preparedPolygon struct {
	poly  orb.Polygon
	bound orb.Bound
}

// footprintTester decides whether the unit square footprint of a
// pixel intersects an AOI. Boundaries count: a footprint that only
// touches the AOI edge or a vertex intersects it.
type footprintTester struct {
	polys []preparedPolygon
}

func polygonsOf(g orb.Geometry) ([]orb.Polygon, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{geom}, nil
	case orb.MultiPolygon:
		return geom, nil
	case nil:
		return nil, errors.Wrap(ErrValidation, "aoi geometry is empty")
	default:
		return nil, errors.Wrapf(ErrValidation, "aoi geometry %s is not a Polygon or MultiPolygon", g.GeoJSONType())
	}
}

func newFootprintTester(g orb.Geometry) (*footprintTester, error) {
	polys, err := polygonsOf(g)
	if err != nil {
		return nil, err
	}

	t := &footprintTester{}
	for _, p := range polys {
		if len(p) == 0 || len(p[0]) == 0 {
			continue
		}
		t.polys = append(t.polys, preparedPolygon{poly: p, bound: p.Bound()})
	}
	return t, nil
}

func (t *footprintTester) intersects(i, j int) bool {
	cx, cy := float64(i), float64(j)
	square := orb.Bound{Min: orb.Point{cx - 0.5, cy - 0.5}, Max: orb.Point{cx + 0.5, cy + 0.5}}
	for _, pp := range t.polys {
		if !square.Intersects(pp.bound) {
			continue
		}
		if squareIntersectsPolygon(square, pp.poly) {
			return true
		}
	}
	return false
}

func squareIntersectsPolygon(square orb.Bound, poly orb.Polygon) bool {
	if planar.PolygonContains(poly, square.Center()) {
		return true
	}

	corners := [4]orb.Point{
		square.Min,
		{square.Max[0], square.Min[1]},
		square.Max,
		{square.Min[0], square.Max[1]},
	}
	for _, c := range corners {
		if planar.PolygonContains(poly, c) {
			return true
		}
	}

	// polygon entirely inside the square
	for _, v := range poly[0] {
		if square.Contains(v) {
			return true
		}
	}

	for _, ring := range poly {
		for k := 0; k+1 < len(ring); k++ {
			a, b := ring[k], ring[k+1]
			for e := 0; e < 4; e++ {
				if segmentsIntersect(a, b, corners[e], corners[(e+1)%4]) {
					return true
				}
			}
		}
	}
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return p[0] >= min(a[0], b[0]) && p[0] <= max(a[0], b[0]) &&
		p[1] >= min(a[1], b[1]) && p[1] <= max(a[1], b[1])
}

// segmentsIntersect reports whether the closed segments pq and rs share
// at least one point.
func segmentsIntersect(p, q, r, s orb.Point) bool {
	d1 := orientation(r, s, p)
	d2 := orientation(r, s, q)
	d3 := orientation(p, q, r)
	d4 := orientation(p, q, s)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(r, s, p):
		return true
	case d2 == 0 && onSegment(r, s, q):
		return true
	case d3 == 0 && onSegment(p, q, r):
		return true
	case d4 == 0 && onSegment(p, q, s):
		return true
	}
	return false
}

// Mask evaluates the footprint predicate for every pixel of a
// width x height grid. aoi must be expressed in cell-center grid
// coordinates of that grid, so pixel (i, j) covers
// [i-0.5, i+0.5] x [j-0.5, j+0.5]. The result is row-major.
func Mask(width, height int, aoi orb.Geometry) ([]bool, error) {
	tester, err := newFootprintTester(aoi)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, width*height)
	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			mask[j*width+i] = tester.intersects(i, j)
		}
	}
	return mask, nil
}

// polygonsIntersect reports whether two polygons share at least one
// point, boundaries included.
func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 || !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, v := range a[0] {
		if planar.PolygonContains(b, v) {
			return true
		}
	}
	for _, v := range b[0] {
		if planar.PolygonContains(a, v) {
			return true
		}
	}
	for _, ra := range a {
		for i := 0; i+1 < len(ra); i++ {
			for _, rb := range b {
				for j := 0; j+1 < len(rb); j++ {
					if segmentsIntersect(ra[i], ra[i+1], rb[j], rb[j+1]) {
						return true
					}
				}
			}
		}
	}
	return false
}

// GeometriesIntersect tests Polygon and MultiPolygon geometries exactly
// and falls back to a bound test for other geometry types.
func GeometriesIntersect(a, b orb.Geometry) bool {
	pa, errA := polygonsOf(a)
	pb, errB := polygonsOf(b)
	if errA != nil || errB != nil {
		return a != nil && b != nil && a.Bound().Intersects(b.Bound())
	}
	for _, x := range pa {
		for _, y := range pb {
			if polygonsIntersect(x, y) {
				return true
			}
		}
	}
	return false
}
