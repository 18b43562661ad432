package gdalprocess

import (
	"context"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/pkg/errors"

	"github.com/11904212/pcc-demo-api/processor"
)

var defaultCreationOptions = []string{"COMPRESS=LZW", "TILED=YES"}

// Sink encodes coverages as GeoTIFF through a temporary file.
type Sink struct {
	TempDir         string
	CreationOptions []string
}

func NewSink(tempDir string) *Sink {
	return &Sink{TempDir: tempDir, CreationOptions: defaultCreationOptions}
}

func (s *Sink) Encode(ctx context.Context, cov *processor.Coverage) ([]byte, error) {
	if cov.Width == 0 || cov.Height == 0 || cov.Bands == 0 {
		return nil, errors.Wrapf(processor.ErrIO, "cannot encode empty raster %s", cov.Name)
	}
	cov, err := cov.Load(ctx)
	if err != nil {
		return nil, err
	}

	wkt, err := crsWKT(cov.CRS)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.TempDir, "aoi*.tif")
	if err != nil {
		return nil, errors.Wrapf(processor.ErrIO, "create temp file: %v", err)
	}
	fileName := tmp.Name()
	tmp.Close()
	defer os.Remove(fileName)

	opts := s.CreationOptions
	if len(opts) == 0 {
		opts = defaultCreationOptions
	}
	ds, err := godal.Create(godal.GTiff, fileName, cov.Bands, gdalDataType(cov.Type), cov.Width, cov.Height,
		godal.CreationOption(opts...),
	)
	if err != nil {
		return nil, errors.Wrapf(processor.ErrIO, "create dataset: %v", err)
	}

	if err := writeDataset(ds, cov, wkt); err != nil {
		ds.Close()
		return nil, errors.Wrapf(processor.ErrIO, "encoding %s: %v", cov.Name, err)
	}
	if err := ds.Close(); err != nil {
		return nil, errors.Wrapf(processor.ErrIO, "close dataset: %v", err)
	}

	out, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(processor.ErrIO, "read back %s: %v", fileName, err)
	}
	return out, nil
}

func writeDataset(ds *godal.Dataset, cov *processor.Coverage, wkt string) error {
	if err := ds.SetGeoTransform([6]float64(cov.GeoTransform)); err != nil {
		return err
	}
	if err := ds.SetProjection(wkt); err != nil {
		return err
	}
	if cov.NoData != nil {
		for _, b := range ds.Bands() {
			if err := b.SetNoData(*cov.NoData); err != nil {
				return err
			}
		}
	}

	n := cov.Width * cov.Height
	buf := make([]float64, 0, n*cov.Bands)
	for _, band := range cov.Data {
		buf = append(buf, band...)
	}
	return ds.Write(0, 0, buf, cov.Width, cov.Height, godal.BandInterleaved())
}

func crsWKT(crs string) (string, error) {
	sr, err := ParseCRS(crs)
	if err != nil {
		return "", err
	}
	defer sr.Close()

	wkt, err := sr.WKT()
	if err != nil {
		return "", errors.Wrapf(processor.ErrUnknownCRS, "export %.60q as wkt: %v", crs, err)
	}
	return wkt, nil
}
