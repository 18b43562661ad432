package main

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/11904212/pcc-demo-api/processor"
	"github.com/11904212/pcc-demo-api/utils"
	"github.com/11904212/pcc-demo-api/worker/engineservice"
	"github.com/11904212/pcc-demo-api/worker/gdalprocess"
)

const (
	productNDVI      = "ndvi"
	productTrueColor = "truecolor"
)

// backend runs requests either in process or on a remote engine
// service.
type backend interface {
	BatchStatistics(ctx context.Context, items []processor.Item, aoi processor.AOI, progress func()) ([]processor.NdviStats, error)
	IndexStatistics(ctx context.Context, item processor.Item, aoi processor.AOI, index string) (processor.Stats, error)
	FilterCloudy(ctx context.Context, items []processor.Item, aoi processor.AOI) ([]string, error)
	Image(ctx context.Context, product string, item processor.Item, aoi processor.AOI, format string) ([]byte, error)
	Close() error
}

type localBackend struct {
	engine *processor.Engine
	reproj processor.Reprojector
}

func newLocalBackend(confDir string) (*localBackend, error) {
	configMap, err := utils.LoadAllConfigFiles(confDir)
	if err != nil {
		configMap = map[string]*utils.Config{}
	}
	sc := utils.RootService(configMap)
	registry, err := utils.BuildRegistry(configMap)
	if err != nil {
		return nil, err
	}

	gdalprocess.RegisterGDALDrivers()
	reproj := gdalprocess.NewReprojector(gdalprocess.DefaultReprojectorConfig())
	engine, err := processor.NewEngine(processor.EngineConfig{
		Profiles:    registry,
		Source:      gdalprocess.NewSource(nil, nil),
		Sink:        gdalprocess.NewSink(sc.TempDir),
		Reprojector: reproj,
		Validation:  sc.Validation,
		PoolSize:    sc.PoolSize,
	})
	if err != nil {
		return nil, err
	}
	return &localBackend{engine: engine, reproj: reproj}, nil
}

func (b *localBackend) BatchStatistics(ctx context.Context, items []processor.Item, aoi processor.AOI, progress func()) ([]processor.NdviStats, error) {
	return b.engine.BatchNDVIStatistics(ctx, items, aoi, processor.WithProgress(func(processor.Item, error) {
		if progress != nil {
			progress()
		}
	}))
}

func (b *localBackend) IndexStatistics(ctx context.Context, item processor.Item, aoi processor.AOI, index string) (processor.Stats, error) {
	return b.engine.IndexStatistics(ctx, item, aoi, index)
}

func (b *localBackend) FilterCloudy(ctx context.Context, items []processor.Item, aoi processor.AOI) ([]string, error) {
	clearItems, err := b.engine.FilterCloudy(ctx, items, aoi)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(clearItems))
	for i, item := range clearItems {
		ids[i] = item.ID
	}
	return ids, nil
}

func (b *localBackend) Image(ctx context.Context, product string, item processor.Item, aoi processor.AOI, format string) ([]byte, error) {
	if format != engineservice.FormatPNG {
		switch product {
		case productNDVI:
			return b.engine.NDVIGeoTIFF(ctx, item, aoi)
		case productTrueColor:
			return b.engine.TrueColorGeoTIFF(ctx, item, aoi)
		}
		return nil, errors.Wrapf(processor.ErrValidation, "unknown product %q", product)
	}

	var cov *processor.Coverage
	var err error
	opts := utils.QuicklookOptions{PixelSize: 4}
	switch product {
	case productNDVI:
		cov, err = b.engine.NDVI(ctx, item, aoi)
		opts.Scale, opts.Palette = utils.NDVIScale, utils.NDVIPalette
	case productTrueColor:
		cov, err = b.engine.TrueColor(ctx, item, aoi)
		opts.Scale = utils.ReflectanceScale
	default:
		return nil, errors.Wrapf(processor.ErrValidation, "unknown product %q", product)
	}
	if err != nil {
		return nil, err
	}
	defer cov.Close()

	if outline, err := b.reproj.Reproject(aoi.Geometry, aoi.SourceCRS(), cov.CRS); err == nil {
		opts.Outline = outline
	}
	return utils.EncodeQuicklook(ctx, cov, opts)
}

func (b *localBackend) Close() error { return nil }

type remoteBackend struct {
	conn   *grpc.ClientConn
	client *engineservice.Client
}

func newRemoteBackend(addr string) (*remoteBackend, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}
	return &remoteBackend{conn: conn, client: engineservice.NewClient(conn)}, nil
}

func (b *remoteBackend) BatchStatistics(ctx context.Context, items []processor.Item, aoi processor.AOI, progress func()) ([]processor.NdviStats, error) {
	stats, err := b.client.BatchStatistics(ctx, items, aoi)
	if err == nil && progress != nil {
		for range items {
			progress()
		}
	}
	return stats, err
}

func (b *remoteBackend) IndexStatistics(ctx context.Context, item processor.Item, aoi processor.AOI, index string) (processor.Stats, error) {
	return b.client.IndexStatistics(ctx, item, aoi, index)
}

func (b *remoteBackend) FilterCloudy(ctx context.Context, items []processor.Item, aoi processor.AOI) ([]string, error) {
	return b.client.FilterCloudy(ctx, items, aoi)
}

func (b *remoteBackend) Image(ctx context.Context, product string, item processor.Item, aoi processor.AOI, format string) ([]byte, error) {
	switch product {
	case productNDVI:
		return b.client.NDVI(ctx, item, aoi, format)
	case productTrueColor:
		return b.client.TrueColor(ctx, item, aoi, format)
	}
	return nil, errors.Wrapf(processor.ErrValidation, "unknown product %q", product)
}

func (b *remoteBackend) Close() error { return b.conn.Close() }
