package utils

import (
	"bytes"
	"context"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/11904212/pcc-demo-api/processor"
)

// QuicklookOptions control EncodeQuicklook. Scale and Palette apply to
// single band coverages; three band coverages are drawn as RGB.
type QuicklookOptions struct {
	Scale   ScaleParams
	Palette *Palette
	// PixelSize is the side, in image pixels, of one raster pixel.
	PixelSize int
	// Outline, in the CRS of the coverage, is stroked over the image.
	Outline orb.Geometry
	Stroke  color.RGBA
}

// EncodeQuicklook renders a coverage as PNG. No data pixels stay
// transparent.
func EncodeQuicklook(ctx context.Context, cov *processor.Coverage, opts QuicklookOptions) ([]byte, error) {
	if cov.Width == 0 || cov.Height == 0 {
		return nil, errors.Wrapf(processor.ErrEmptyStatistic, "%s has no pixel to draw", cov.Name)
	}
	if cov.Bands != 1 && cov.Bands != 3 {
		return nil, errors.Errorf("cannot draw %d bands, need 1 or 3", cov.Bands)
	}
	cov, err := cov.Load(ctx)
	if err != nil {
		return nil, err
	}

	bands := make([][]uint8, cov.Bands)
	for b := range bands {
		params := opts.Scale
		if params.Scale == 0 {
			params = ReflectanceScale
		}
		if bands[b], err = ScaleBand(cov.Data[b], cov.NoData, params); err != nil {
			return nil, err
		}
	}

	var ramp []color.RGBA
	if cov.Bands == 1 {
		palette := opts.Palette
		if palette == nil {
			palette = &Palette{Interpolate: true, Colours: []color.RGBA{{0, 0, 0, 255}, {255, 255, 255, 255}}}
		}
		if ramp, err = GradientRGBAPalette(palette); err != nil {
			return nil, err
		}
	}

	px := opts.PixelSize
	if px <= 0 {
		px = 1
	}
	dc := gg.NewContext(cov.Width*px, cov.Height*px)

	for y := 0; y < cov.Height; y++ {
		for x := 0; x < cov.Width; x++ {
			k := y*cov.Width + x
			c, ok := pixelColour(bands, ramp, k)
			if !ok {
				continue
			}
			dc.SetColor(c)
			dc.DrawRectangle(float64(x*px), float64(y*px), float64(px), float64(px))
			dc.Fill()
		}
	}

	if opts.Outline != nil {
		grid, err := processor.GridGeometry(cov, opts.Outline)
		if err != nil {
			return nil, err
		}
		stroke := opts.Stroke
		if stroke.A == 0 {
			stroke = color.RGBA{255, 0, 0, 255}
		}
		drawOutline(dc, grid, float64(px))
		dc.SetColor(stroke)
		dc.SetLineWidth(1)
		dc.Stroke()
	}

	buf := new(bytes.Buffer)
	if err := dc.EncodePNG(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pixelColour(bands [][]uint8, ramp []color.RGBA, k int) (color.RGBA, bool) {
	if len(bands) == 1 {
		v := bands[0][k]
		if v == NoDataByte {
			return color.RGBA{}, false
		}
		return ramp[v], true
	}
	r, g, b := bands[0][k], bands[1][k], bands[2][k]
	if r == NoDataByte || g == NoDataByte || b == NoDataByte {
		return color.RGBA{}, false
	}
	return color.RGBA{r, g, b, 255}, true
}

// drawOutline adds the rings of g, given in cell-center grid
// coordinates, to the current path.
func drawOutline(dc *gg.Context, g orb.Geometry, px float64) {
	var rings []orb.Ring
	switch g := g.(type) {
	case orb.Polygon:
		rings = g
	case orb.MultiPolygon:
		for _, p := range g {
			rings = append(rings, p...)
		}
	case orb.Ring:
		rings = []orb.Ring{g}
	default:
		return
	}
	for _, r := range rings {
		for i, p := range r {
			x, y := (p[0]+0.5)*px, (p[1]+0.5)*px
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
	}
}
