package gdalprocess

import (
	"context"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/11904212/pcc-demo-api/processor"
)

var dataTypes = map[godal.DataType]processor.DataType{
	godal.Byte:    processor.Byte,
	godal.UInt16:  processor.UInt16,
	godal.Int16:   processor.Int16,
	godal.UInt32:  processor.UInt32,
	godal.Int32:   processor.Int32,
	godal.Float32: processor.Float32,
	godal.Float64: processor.Float64,
}

func gdalDataType(t processor.DataType) godal.DataType {
	for g, p := range dataTypes {
		if p == t {
			return g
		}
	}
	return godal.Float64
}

// VSIPath maps an asset reference to a GDAL virtual file system path so
// remote COGs are read with range requests.
func VSIPath(href string) string {
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return "/vsicurl/" + href
	case strings.HasPrefix(href, "s3://"):
		return "/vsis3/" + strings.TrimPrefix(href, "s3://")
	case strings.HasPrefix(href, "gs://"):
		return "/vsigs/" + strings.TrimPrefix(href, "gs://")
	}
	return href
}

// Source opens rasters with GDAL. Metadata is read when the raster is
// fetched; samples are read per window on demand.
type Source struct {
	log    *log.Entry
	config []string
}

// NewSource returns a source passing the KEY=VALUE GDAL configuration
// options in config to every open, DefaultCOGConfig when nil.
func NewSource(logger *log.Entry, config []string) *Source {
	if logger == nil {
		logger = log.WithField("component", "gdalprocess")
	}
	if config == nil {
		config = DefaultCOGConfig
	}
	return &Source{log: logger, config: config}
}

func (s *Source) errLogger() godal.OpenOption {
	return godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			s.log.Debugf("gdal warning %d: %s", code, msg)
			return nil
		}
		return errors.Errorf("gdal error %d: %s", code, msg)
	})
}

func (s *Source) Fetch(ctx context.Context, href string) (*processor.Coverage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []godal.OpenOption{godal.RasterOnly(), s.errLogger()}
	if len(s.config) > 0 {
		opts = append(opts, godal.ConfigOption(s.config...))
	}
	ds, err := godal.Open(VSIPath(href), opts...)
	if err != nil {
		return nil, errors.Wrapf(processor.ErrIO, "opening %s: %v", href, err)
	}

	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, errors.Wrapf(processor.ErrIO, "%s has no geotransform: %v", href, err)
	}
	crs := ds.Projection()
	if crs == "" {
		ds.Close()
		return nil, errors.Wrapf(processor.ErrUnknownCRS, "%s has no coordinate reference system", href)
	}

	cov := &processor.Coverage{
		Name:         href,
		Width:        st.SizeX,
		Height:       st.SizeY,
		Bands:        st.NBands,
		Type:         dataTypes[st.DataType],
		CRS:          crs,
		GeoTransform: processor.GeoTransform(gt),
		Reader:       &datasetReader{ds: ds, bands: st.NBands, href: href},
	}
	if bands := ds.Bands(); len(bands) > 0 {
		if nd, ok := bands[0].NoData(); ok {
			cov.NoData = &nd
		}
	}

	s.log.Debugf("opened %s: %dx%d, %d bands, %s", href, cov.Width, cov.Height, cov.Bands, cov.Type)
	return cov, nil
}

// datasetReader serialises window reads on one GDAL dataset handle.
type datasetReader struct {
	mu     sync.Mutex
	ds     *godal.Dataset
	bands  int
	href   string
	closed bool
}

func (r *datasetReader) ReadWindow(ctx context.Context, x0, y0, width, height int) ([][]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.Wrapf(processor.ErrIO, "%s is closed", r.href)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := width * height
	buf := make([]float64, n*r.bands)
	if err := r.ds.Read(x0, y0, buf, width, height, godal.BandInterleaved()); err != nil {
		return nil, errors.Wrapf(processor.ErrIO, "reading %s window (%d,%d,%d,%d): %v", r.href, x0, y0, width, height, err)
	}

	out := make([][]float64, r.bands)
	for b := range out {
		out[b] = buf[b*n : (b+1)*n : (b+1)*n]
	}
	return out, nil
}

func (r *datasetReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.ds.Close()
}
