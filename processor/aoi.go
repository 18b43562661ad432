package processor

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

const DefaultAOICRS = "EPSG:4326"

// AOI is the area of interest of a request. An empty CRS means
// EPSG:4326 in longitude/latitude order.
type AOI struct {
	Geometry orb.Geometry
	CRS      string
}

func (a AOI) SourceCRS() string {
	if strings.TrimSpace(a.CRS) == "" {
		return DefaultAOICRS
	}
	return a.CRS
}

func (a AOI) Geographic() bool {
	return strings.EqualFold(a.SourceCRS(), DefaultAOICRS)
}

type ValidationConfig struct {
	// MaxAreaKm2 bounds the geodesic area of a geographic AOI. Zero
	// disables the check.
	MaxAreaKm2 float64 `json:"max_area_km2" yaml:"max_area_km2"`
	// AreaTolerance multiplies MaxAreaKm2.
	AreaTolerance float64 `json:"area_tolerance" yaml:"area_tolerance"`
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{MaxAreaKm2: 10, AreaTolerance: 1.1}
}

// ValidateAOI checks that the AOI is a usable Polygon or MultiPolygon:
// closed rings of at least four finite points, no self-intersecting
// ring, holes strictly inside their shell and apart from each other,
// disjoint parts, longitude/latitude ranges and the area limit for
// geographic AOIs.
func ValidateAOI(aoi AOI, cfg ValidationConfig) error {
	polys, err := polygonsOf(aoi.Geometry)
	if err != nil {
		return err
	}
	if len(polys) == 0 {
		return errors.Wrap(ErrValidation, "aoi has no polygon")
	}

	for pi, poly := range polys {
		if len(poly) == 0 {
			return errors.Wrapf(ErrValidation, "polygon %d has no ring", pi)
		}
		for ri, ring := range poly {
			if err := validateRing(ring); err != nil {
				return errors.Wrapf(err, "polygon %d ring %d", pi, ri)
			}
			if aoi.Geographic() {
				for _, p := range ring {
					if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
						return errors.Wrapf(ErrValidation, "polygon %d ring %d: point %v is outside longitude/latitude range", pi, ri, p)
					}
				}
			}
		}
		if err := validateHoles(poly); err != nil {
			return errors.Wrapf(err, "polygon %d", pi)
		}
	}
	for i := range polys {
		for j := i + 1; j < len(polys); j++ {
			if polygonsIntersect(polys[i], polys[j]) {
				return errors.Wrapf(ErrValidation, "polygons %d and %d overlap", i, j)
			}
		}
	}

	if aoi.Geographic() && cfg.MaxAreaKm2 > 0 {
		tol := cfg.AreaTolerance
		if tol <= 0 {
			tol = 1
		}
		areaKm2 := math.Abs(geo.Area(aoi.Geometry)) / 1e6
		if areaKm2 > cfg.MaxAreaKm2*tol {
			return errors.Wrapf(ErrValidation, "aoi area %.3f km2 exceeds the limit of %.3f km2", areaKm2, cfg.MaxAreaKm2)
		}
	}
	return nil
}

func validateRing(ring orb.Ring) error {
	if len(ring) < 4 {
		return errors.Wrapf(ErrValidation, "ring has %d points, at least 4 are required", len(ring))
	}
	if !ring.Closed() {
		return errors.Wrap(ErrValidation, "ring is not closed")
	}
	for _, p := range ring {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return errors.Wrapf(ErrValidation, "ring point %v is not finite", p)
		}
	}

	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// adjacent segments share a vertex
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return errors.Wrapf(ErrValidation, "ring self-intersects between segments %d and %d", i, j)
			}
		}
	}
	return nil
}

// ringsTouch reports whether any segment of a shares a point with any
// segment of b.
func ringsTouch(a, b orb.Ring) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

// validateHoles requires every hole to lie inside the shell without
// touching it, and holes to be disjoint.
func validateHoles(poly orb.Polygon) error {
	shell := poly[0]
	for hi := 1; hi < len(poly); hi++ {
		hole := poly[hi]
		if ringsTouch(shell, hole) {
			return errors.Wrapf(ErrValidation, "hole %d touches its shell", hi)
		}
		if !planar.RingContains(shell, hole[0]) {
			return errors.Wrapf(ErrValidation, "hole %d lies outside its shell", hi)
		}
		for hj := hi + 1; hj < len(poly); hj++ {
			other := poly[hj]
			if ringsTouch(hole, other) || planar.RingContains(hole, other[0]) || planar.RingContains(other, hole[0]) {
				return errors.Wrapf(ErrValidation, "holes %d and %d overlap", hi, hj)
			}
		}
	}
	return nil
}
