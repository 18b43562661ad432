package processor

import (
	"context"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

type DataType int

const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Unknown: "Unknown",
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return dataTypeNames[Unknown]
}

// GeoTransform maps pixel/line coordinates, with (0, 0) at the top left
// corner of the raster, to CRS coordinates using the GDAL coefficient
// order.
type GeoTransform [6]float64

func (gt GeoTransform) Apply(pixel, line float64) (float64, float64) {
	return gt[0] + pixel*gt[1] + line*gt[2], gt[3] + pixel*gt[4] + line*gt[5]
}

func (gt GeoTransform) Invert() (GeoTransform, error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return GeoTransform{}, errors.Wrapf(ErrTransformFailure, "geotransform %v is not invertible", [6]float64(gt))
	}

	inv := 1 / det
	return GeoTransform{
		(gt[2]*gt[3] - gt[0]*gt[5]) * inv,
		gt[5] * inv,
		-gt[2] * inv,
		(gt[0]*gt[4] - gt[1]*gt[3]) * inv,
		-gt[4] * inv,
		gt[1] * inv,
	}, nil
}

// Offset returns the transform of a window whose top left pixel is
// (xOff, yOff) in the original grid.
func (gt GeoTransform) Offset(xOff, yOff int) GeoTransform {
	x, y := gt.Apply(float64(xOff), float64(yOff))
	return GeoTransform{x, gt[1], gt[2], y, gt[4], gt[5]}
}

func (gt GeoTransform) SameOrigin(other GeoTransform) bool {
	tol := 1e-9 * math.Max(math.Abs(gt[1]), math.Abs(gt[5]))
	return math.Abs(gt[0]-other[0]) <= tol && math.Abs(gt[3]-other[3]) <= tol
}

// WindowReader fills the samples of a pixel window on demand. It
// returns one row-major slice per band.
type WindowReader interface {
	ReadWindow(ctx context.Context, x0, y0, width, height int) ([][]float64, error)
}

// Coverage is a georeferenced multi band raster. Samples are held as
// float64 whatever the storage type, one row-major slice per band.
// A coverage built by a CoverageSource may leave Data nil and read
// windows lazily through Reader.
type Coverage struct {
	Name          string
	Width, Height int
	Bands         int
	Type          DataType
	NoData        *float64
	CRS           string
	GeoTransform  GeoTransform
	Data          [][]float64
	Reader        WindowReader
}

func (c *Coverage) Loaded() bool {
	return c.Data != nil
}

// Valid reports whether v is a finite sample that is not the no data
// value.
func (c *Coverage) Valid(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return c.NoData == nil || v != *c.NoData
}

// Envelope returns the CRS bound covered by the outer pixel edges.
func (c *Coverage) Envelope() orb.Bound {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, p := range [][2]float64{{0, 0}, {float64(c.Width), 0}, {0, float64(c.Height)}, {float64(c.Width), float64(c.Height)}} {
		x, y := c.GeoTransform.Apply(p[0], p[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Window returns a new coverage holding the pixels of the given window.
// The window must lie inside the raster.
func (c *Coverage) Window(ctx context.Context, x0, y0, width, height int) (*Coverage, error) {
	if x0 < 0 || y0 < 0 || width < 0 || height < 0 || x0+width > c.Width || y0+height > c.Height {
		return nil, errors.Wrapf(ErrIO, "window (%d,%d,%d,%d) outside %dx%d raster %s", x0, y0, width, height, c.Width, c.Height, c.Name)
	}

	out := c.header()
	out.Width, out.Height = width, height
	out.GeoTransform = c.GeoTransform.Offset(x0, y0)

	if width == 0 || height == 0 {
		out.Data = make([][]float64, c.Bands)
		for b := range out.Data {
			out.Data[b] = []float64{}
		}
		return out, nil
	}

	if c.Data == nil {
		if c.Reader == nil {
			return nil, errors.Wrapf(ErrIO, "raster %s has neither samples nor a reader", c.Name)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := c.Reader.ReadWindow(ctx, x0, y0, width, height)
		if err != nil {
			if errors.Is(err, ErrIO) {
				return nil, err
			}
			return nil, errors.Wrapf(ErrIO, "reading window of %s: %v", c.Name, err)
		}
		if len(data) != c.Bands {
			return nil, errors.Wrapf(ErrIO, "reader returned %d bands for %s, expected %d", len(data), c.Name, c.Bands)
		}
		out.Data = data
		return out, nil
	}

	out.Data = make([][]float64, c.Bands)
	for b := 0; b < c.Bands; b++ {
		dst := make([]float64, width*height)
		for y := 0; y < height; y++ {
			src := c.Data[b][(y0+y)*c.Width+x0 : (y0+y)*c.Width+x0+width]
			copy(dst[y*width:(y+1)*width], src)
		}
		out.Data[b] = dst
	}
	return out, nil
}

// Load returns the whole raster with its samples in memory.
func (c *Coverage) Load(ctx context.Context) (*Coverage, error) {
	if c.Data != nil {
		return c, nil
	}
	return c.Window(ctx, 0, 0, c.Width, c.Height)
}

// Close releases the reader of a lazily read coverage.
func (c *Coverage) Close() error {
	if closer, ok := c.Reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// header copies everything but the samples and the reader.
func (c *Coverage) header() *Coverage {
	out := &Coverage{
		Name:         c.Name,
		Width:        c.Width,
		Height:       c.Height,
		Bands:        c.Bands,
		Type:         c.Type,
		CRS:          c.CRS,
		GeoTransform: c.GeoTransform,
	}
	if c.NoData != nil {
		nd := *c.NoData
		out.NoData = &nd
	}
	return out
}

// NewCoverage builds an in-memory coverage from row-major band slices.
func NewCoverage(name string, width, height int, dtype DataType, crs string, gt GeoTransform, bands ...[]float64) (*Coverage, error) {
	for i, b := range bands {
		if len(b) != width*height {
			return nil, errors.Wrapf(ErrIncompatibleRasters, "band %d of %s has %d samples, expected %d", i, name, len(b), width*height)
		}
	}
	return &Coverage{
		Name:         name,
		Width:        width,
		Height:       height,
		Bands:        len(bands),
		Type:         dtype,
		CRS:          crs,
		GeoTransform: gt,
		Data:         bands,
	}, nil
}

// CoverageSource resolves an asset reference into a coverage.
type CoverageSource interface {
	Fetch(ctx context.Context, href string) (*Coverage, error)
}

// CoverageSink serialises a coverage, typically into GeoTIFF bytes.
type CoverageSink interface {
	Encode(ctx context.Context, cov *Coverage) ([]byte, error)
}
