package utils

import (
	"math"

	"github.com/pkg/errors"
)

// NoDataByte marks pixels without a value in scaled bands.
const NoDataByte = 0xFF

// ScaleParams maps a sample v to the byte (v + Offset) * Scale,
// clipped to [0, Clip] with Clip at most 254.
type ScaleParams struct {
	Offset float64 `json:"offset" yaml:"offset"`
	Scale  float64 `json:"scale" yaml:"scale"`
	Clip   float64 `json:"clip" yaml:"clip"`
}

// NDVIScale spreads [-1, 1] over the whole byte range.
var NDVIScale = ScaleParams{Offset: 1, Scale: 127, Clip: 254}

// ReflectanceScale fits 8 bit true colour bands.
var ReflectanceScale = ScaleParams{Offset: 0, Scale: 1, Clip: 254}

// ScaleBand converts samples to bytes. Non-finite samples and samples
// equal to noData, when given, become NoDataByte.
func ScaleBand(data []float64, noData *float64, params ScaleParams) ([]uint8, error) {
	if params.Scale <= 0 || math.IsNaN(params.Scale) {
		return nil, errors.Errorf("invalid scale %v", params.Scale)
	}
	clip := params.Clip
	if clip <= 0 || clip > 254 {
		clip = 254
	}

	out := make([]uint8, len(data))
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) || (noData != nil && v == *noData) {
			out[i] = NoDataByte
			continue
		}
		s := (v + params.Offset) * params.Scale
		if s < 0 {
			s = 0
		}
		if s > clip {
			s = clip
		}
		out[i] = uint8(s)
	}
	return out, nil
}
