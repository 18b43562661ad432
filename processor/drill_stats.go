package processor

import (
	"math"

	"github.com/pkg/errors"
)

type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// NdviStats is the per item result of an NDVI statistics request.
type NdviStats struct {
	ItemID string  `json:"item_id" csv:"item_id"`
	Min    float64 `json:"ndvi_min" csv:"ndvi_min"`
	Max    float64 `json:"ndvi_max" csv:"ndvi_max"`
	Mean   float64 `json:"ndvi_avg" csv:"ndvi_avg"`
	Count  int     `json:"count" csv:"count"`
}

// Aggregate computes min, max and mean of the finite samples of a
// single band coverage. No data samples are skipped as well. A coverage
// without any finite sample fails with ErrEmptyStatistic.
func Aggregate(cov *Coverage) (Stats, error) {
	if cov.Bands != 1 {
		return Stats{}, errors.Wrapf(ErrIncompatibleRasters, "%s has %d bands, expected 1", cov.Name, cov.Bands)
	}
	if !cov.Loaded() {
		return Stats{}, errors.Wrapf(ErrIO, "%s has no samples in memory", cov.Name)
	}

	st := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	// Neumaier compensated summation
	var sum, comp float64
	for _, v := range cov.Data[0] {
		if !cov.Valid(v) {
			continue
		}
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}

		t := sum + v
		if math.Abs(sum) >= math.Abs(v) {
			comp += (sum - t) + v
		} else {
			comp += (v - t) + sum
		}
		sum = t
		st.Count++
	}

	if st.Count == 0 {
		return Stats{}, errors.Wrapf(ErrEmptyStatistic, "%s has no finite sample in %dx%d pixels", cov.Name, cov.Width, cov.Height)
	}

	st.Mean = (sum + comp) / float64(st.Count)
	st.Mean = math.Max(st.Min, math.Min(st.Max, st.Mean))
	return st, nil
}
