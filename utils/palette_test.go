package utils

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientRGBAPaletteInterpolates(t *testing.T) {
	black := color.RGBA{0, 0, 0, 255}
	white := color.RGBA{255, 255, 255, 255}
	ramp, err := GradientRGBAPalette(&Palette{Interpolate: true, Colours: []color.RGBA{black, white}})
	require.NoError(t, err)
	require.Len(t, ramp, 255)

	assert.Equal(t, black, ramp[0])
	assert.Equal(t, color.RGBA{127, 127, 127, 255}, ramp[127])
	for i := 1; i < len(ramp); i++ {
		assert.GreaterOrEqual(t, ramp[i].R, ramp[i-1].R)
	}
}

func TestGradientRGBAPaletteSteps(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	ramp, err := GradientRGBAPalette(&Palette{Colours: []color.RGBA{red, blue}})
	require.NoError(t, err)

	assert.Equal(t, red, ramp[0])
	assert.Equal(t, red, ramp[127])
	assert.Equal(t, blue, ramp[128])
	assert.Equal(t, blue, ramp[254])
}

func TestGradientRGBAPaletteNeedsTwoColours(t *testing.T) {
	_, err := GradientRGBAPalette(&Palette{Colours: []color.RGBA{{}}})
	assert.Error(t, err)

	ramp, err := GradientRGBAPalette(nil)
	assert.NoError(t, err)
	assert.Nil(t, ramp)
}
