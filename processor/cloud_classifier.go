package processor

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ClassSet holds the classification values that mark a clear pixel.
type ClassSet map[int]struct{}

func NewClassSet(values ...int) ClassSet {
	s := make(ClassSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether the sample v is an integer class of the set.
// Non-finite and fractional samples are never members.
func (s ClassSet) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return false
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return false
	}
	_, ok := s[int(v)]
	return ok
}

func (s ClassSet) Values() []int {
	out := make([]int, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// IsCloudy scans a single band classification coverage row by row and
// reports true on the first sample outside clear.
func IsCloudy(classification *Coverage, clear ClassSet) (bool, error) {
	if classification.Bands != 1 {
		return false, errors.Wrapf(ErrIncompatibleRasters, "classification raster %s has %d bands, expected 1", classification.Name, classification.Bands)
	}
	if !classification.Loaded() {
		return false, errors.Wrapf(ErrIO, "classification raster %s has no samples in memory", classification.Name)
	}

	for _, v := range classification.Data[0] {
		if !clear.Contains(v) {
			return true, nil
		}
	}
	return false, nil
}
