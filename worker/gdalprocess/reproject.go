package gdalprocess

import (
	"math"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/pkg/errors"

	"github.com/11904212/pcc-demo-api/processor"
)

// ReprojectorConfig is fixed at construction. godal spatial references
// use the traditional GIS axis order, x = longitude and y = latitude,
// for every CRS.
type ReprojectorConfig struct {
	// DefaultSourceCRS applies when a caller passes an empty source CRS.
	DefaultSourceCRS string
	// CheckGeographicRange rejects geographic input outside the
	// longitude/latitude range, which is how latitude-first input
	// usually shows up.
	CheckGeographicRange bool
}

func DefaultReprojectorConfig() ReprojectorConfig {
	return ReprojectorConfig{DefaultSourceCRS: processor.DefaultAOICRS, CheckGeographicRange: true}
}

// Reprojector transforms orb geometries between coordinate reference
// systems with GDAL/PROJ. It keeps no GDAL state between calls and is
// safe for concurrent use.
type Reprojector struct {
	cfg ReprojectorConfig
}

func NewReprojector(cfg ReprojectorConfig) *Reprojector {
	if cfg.DefaultSourceCRS == "" {
		cfg.DefaultSourceCRS = processor.DefaultAOICRS
	}
	return &Reprojector{cfg: cfg}
}

// ParseCRS resolves "EPSG:<code>", PROJ strings and WKT definitions.
func ParseCRS(crs string) (*godal.SpatialRef, error) {
	def := strings.TrimSpace(crs)
	switch {
	case def == "":
		return nil, errors.Wrap(processor.ErrUnknownCRS, "empty crs definition")
	case strings.HasPrefix(strings.ToUpper(def), "EPSG:"):
		code, err := strconv.Atoi(strings.TrimSpace(def[5:]))
		if err != nil {
			return nil, errors.Wrapf(processor.ErrUnknownCRS, "invalid epsg code in %q", crs)
		}
		sr, err := godal.NewSpatialRefFromEPSG(code)
		if err != nil {
			return nil, errors.Wrapf(processor.ErrUnknownCRS, "EPSG:%d: %v", code, err)
		}
		return sr, nil
	case strings.HasPrefix(def, "+proj"):
		sr, err := godal.NewSpatialRefFromProj4(def)
		if err != nil {
			return nil, errors.Wrapf(processor.ErrUnknownCRS, "%q: %v", crs, err)
		}
		return sr, nil
	default:
		sr, err := godal.NewSpatialRefFromWKT(def)
		if err != nil {
			return nil, errors.Wrapf(processor.ErrUnknownCRS, "%.60q: %v", crs, err)
		}
		return sr, nil
	}
}

func sameCRS(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Reproject returns a copy of g transformed from sourceCRS to
// targetCRS. All vertices go through PROJ in a single batch; any vertex
// that fails to transform fails the whole call.
func (r *Reprojector) Reproject(g orb.Geometry, sourceCRS, targetCRS string) (orb.Geometry, error) {
	if g == nil {
		return nil, errors.Wrap(processor.ErrValidation, "nothing to reproject")
	}
	if strings.TrimSpace(sourceCRS) == "" {
		sourceCRS = r.cfg.DefaultSourceCRS
	}
	if sameCRS(sourceCRS, targetCRS) {
		return orb.Clone(g), nil
	}

	src, err := ParseCRS(sourceCRS)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	dst, err := ParseCRS(targetCRS)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	out := orb.Clone(g)
	var xs, ys []float64
	out = project.Geometry(out, func(p orb.Point) orb.Point {
		xs = append(xs, p[0])
		ys = append(ys, p[1])
		return p
	})

	if r.cfg.CheckGeographicRange && src.Geographic() {
		for i := range xs {
			if xs[i] < -180 || xs[i] > 180 || ys[i] < -90 || ys[i] > 90 {
				return nil, errors.Wrapf(processor.ErrTransformFailure,
					"vertex %d (%v, %v) is outside the longitude/latitude range of %s", i, xs[i], ys[i], sourceCRS)
			}
		}
	}

	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return nil, errors.Wrapf(processor.ErrTransformFailure, "%s -> %s: %v", sourceCRS, targetCRS, err)
	}
	defer trn.Close()

	ok := make([]bool, len(xs))
	origX, origY := append([]float64(nil), xs...), append([]float64(nil), ys...)
	if err := trn.TransformEx(xs, ys, nil, ok); err != nil {
		return nil, errors.Wrapf(processor.ErrTransformFailure, "%s -> %s: %v", sourceCRS, targetCRS, err)
	}
	for i := range ok {
		if !ok[i] || math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			return nil, errors.Wrapf(processor.ErrTransformFailure,
				"vertex %d (%v, %v) has no image in %s", i, origX[i], origY[i], targetCRS)
		}
	}

	k := 0
	out = project.Geometry(out, func(orb.Point) orb.Point {
		p := orb.Point{xs[k], ys[k]}
		k++
		return p
	})
	return out, nil
}
