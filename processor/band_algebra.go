package processor

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func checkCompatible(a, b *Coverage) error {
	switch {
	case a.Bands != 1 || b.Bands != 1:
		return errors.Wrapf(ErrIncompatibleRasters, "%s has %d bands and %s has %d, expected 1 each", a.Name, a.Bands, b.Name, b.Bands)
	case a.Width != b.Width || a.Height != b.Height:
		return errors.Wrapf(ErrIncompatibleRasters, "%s is %dx%d but %s is %dx%d", a.Name, a.Width, a.Height, b.Name, b.Width, b.Height)
	case !a.GeoTransform.SameOrigin(b.GeoTransform):
		return errors.Wrapf(ErrIncompatibleRasters, "%s and %s have different origins (%v,%v) and (%v,%v)",
			a.Name, b.Name, a.GeoTransform[0], a.GeoTransform[3], b.GeoTransform[0], b.GeoTransform[3])
	case !a.Loaded() || !b.Loaded():
		return errors.Wrapf(ErrIO, "%s or %s has no samples in memory", a.Name, b.Name)
	}
	return nil
}

// ComputeNDVI returns (nir - red) / (nir + red) per pixel. Arithmetic is
// done in float64 and stored at Float32 precision. Division by zero is
// not an error: 0/0 gives NaN and x/0 gives an infinity, and both flow
// into the output.
func ComputeNDVI(nir, red *Coverage) (*Coverage, error) {
	if err := checkCompatible(nir, red); err != nil {
		log.WithField("component", "processor").Errorf("ndvi: %v", err)
		return nil, err
	}

	n, r := nir.Data[0], red.Data[0]
	ndvi := make([]float64, len(n))
	for k := range n {
		ndvi[k] = float64(float32((n[k] - r[k]) / (n[k] + r[k])))
	}

	return &Coverage{
		Name:         "ndvi",
		Width:        nir.Width,
		Height:       nir.Height,
		Bands:        1,
		Type:         Float32,
		CRS:          nir.CRS,
		GeoTransform: nir.GeoTransform,
		Data:         [][]float64{ndvi},
	}, nil
}
