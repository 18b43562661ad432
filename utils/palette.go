package utils

import (
	"image/color"

	"github.com/pkg/errors"
)

type Palette struct {
	Interpolate bool         `json:"interpolate" yaml:"interpolate"`
	Colours     []color.RGBA `json:"colours" yaml:"colours"`
}

// NDVIPalette runs from bare soil brown through yellow to dense
// vegetation green.
var NDVIPalette = &Palette{
	Interpolate: true,
	Colours: []color.RGBA{
		{165, 0, 38, 255},
		{244, 109, 67, 255},
		{254, 224, 139, 255},
		{166, 217, 106, 255},
		{26, 152, 80, 255},
		{0, 104, 55, 255},
	},
}

// InterpolateUint8 interpolates the value of a
// byte between two numbers 'a' and 'b' by
// especifying a length and a position 'i'
// along that length.
func InterpolateUint8(a, b uint8, i, sectionLength int) uint8 {
	return uint8(int(a) + i*(int(b)-int(a))/sectionLength)
}

// InterpolateColor returns an RGBA color where
// the R, G, B, and A components have been
// interpolated from the 'a' and 'b' colors
func InterpolateColor(a, b color.RGBA, i, sectionLength int) color.RGBA {
	return color.RGBA{InterpolateUint8(a.R, b.R, i, sectionLength),
		InterpolateUint8(a.G, b.G, i, sectionLength),
		InterpolateUint8(a.B, b.B, i, sectionLength),
		255}
}

// GradientRGBAPalette returns a ramp of 255 colours, one per scaled
// byte value, going through the palette colours. Value 0xFF is no data
// and has no colour.
func GradientRGBAPalette(palette *Palette) ([]color.RGBA, error) {
	if palette == nil {
		return nil, nil
	}
	if len(palette.Colours) < 2 {
		return nil, errors.New("the colour palette must contain at least 2 colours")
	}

	const size = 255
	ramp := make([]color.RGBA, size)

	bins := len(palette.Colours)
	if palette.Interpolate {
		bins--
	}
	sectionLength := size / bins
	bonus := size - (sectionLength * bins)

	index := 0
	for section := 0; section < bins; section++ {
		n := sectionLength
		if section < bonus {
			n++
		}
		for i := 0; i < n; i++ {
			if palette.Interpolate {
				ramp[index] = InterpolateColor(palette.Colours[section], palette.Colours[section+1], i, n)
			} else {
				ramp[index] = palette.Colours[section]
			}
			index++
		}
	}
	return ramp, nil
}
