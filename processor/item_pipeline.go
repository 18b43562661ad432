package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Asset is a resolved, already signed, reference to one raster of an
// item.
type Asset struct {
	Href      string `json:"href"`
	MediaType string `json:"type"`
}

// Item is one scene of a collection. Footprint is optional and given in
// EPSG:4326.
type Item struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	Footprint  orb.Geometry     `json:"-"`
	Assets     map[string]Asset `json:"assets"`
}

// Reprojector transforms geometries between coordinate reference
// systems.
type Reprojector interface {
	Reproject(g orb.Geometry, sourceCRS, targetCRS string) (orb.Geometry, error)
}

// StatsCache stores NDVI statistics by request key.
type StatsCache interface {
	Get(key string) (NdviStats, bool)
	Set(key string, st NdviStats)
}

const DefaultPoolSize = 8

type EngineConfig struct {
	Profiles    ProfileLookup
	Source      CoverageSource
	Sink        CoverageSink
	Reprojector Reprojector
	Validation  ValidationConfig
	// Cache is optional.
	Cache    StatsCache
	PoolSize int
	Log      *log.Entry
}

// Engine runs the fetch, reproject, crop and compute pipeline for
// items of registered collections.
type Engine struct {
	profiles   ProfileLookup
	source     CoverageSource
	sink       CoverageSink
	reproj     Reprojector
	validation ValidationConfig
	cache      StatsCache
	poolSize   int
	log        *log.Entry
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Profiles == nil || cfg.Source == nil || cfg.Reprojector == nil {
		return nil, errors.New("engine requires profiles, a coverage source and a reprojector")
	}
	e := &Engine{
		profiles:   cfg.Profiles,
		source:     cfg.Source,
		sink:       cfg.Sink,
		reproj:     cfg.Reprojector,
		validation: cfg.Validation,
		cache:      cfg.Cache,
		poolSize:   cfg.PoolSize,
		log:        cfg.Log,
	}
	if e.poolSize <= 0 {
		e.poolSize = DefaultPoolSize
	}
	if e.log == nil {
		e.log = log.WithField("component", "processor")
	}
	return e, nil
}

// aoiProjector reprojects the AOI of one request at most once per
// target CRS.
type aoiProjector struct {
	aoi    AOI
	reproj Reprojector
	mu     sync.Mutex
	byCRS  map[string]orb.Geometry
}

func (e *Engine) projector(aoi AOI) (*aoiProjector, error) {
	if err := ValidateAOI(aoi, e.validation); err != nil {
		return nil, err
	}
	return &aoiProjector{aoi: aoi, reproj: e.reproj, byCRS: make(map[string]orb.Geometry)}, nil
}

func (p *aoiProjector) in(crs string) (orb.Geometry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.byCRS[crs]; ok {
		return g, nil
	}
	g, err := p.reproj.Reproject(p.aoi.Geometry, p.aoi.SourceCRS(), crs)
	if err != nil {
		return nil, err
	}
	p.byCRS[crs] = g
	return g, nil
}

func (e *Engine) itemLog(item Item) *log.Entry {
	return e.log.WithFields(log.Fields{"item": item.ID, "collection": item.Collection})
}

// prepare resolves the collection profile and checks that the item
// footprint intersects the AOI. It runs before any raster is fetched.
func (e *Engine) prepare(item Item, proj *aoiProjector) (*CollectionProfile, error) {
	profile, err := e.profiles.Lookup(item.Collection)
	if err != nil {
		return nil, errors.Wrapf(err, "item %s", item.ID)
	}

	if item.Footprint != nil {
		aoi, err := proj.in(DefaultAOICRS)
		if err != nil {
			return nil, errors.Wrapf(err, "item %s footprint check", item.ID)
		}
		if !GeometriesIntersect(item.Footprint, aoi) {
			return nil, errors.Wrapf(ErrValidation, "item %s does not intersect the area of interest %v", item.ID, aoi.Bound())
		}
	}
	return profile, nil
}

func (e *Engine) asset(item Item, profile *CollectionProfile, band string) (Asset, error) {
	if band == "" {
		return Asset{}, errors.Wrapf(ErrUnsupportedCollection, "collection %s defines no band for this product", profile.Collection)
	}
	a, ok := item.Assets[band]
	if !ok || a.Href == "" {
		return Asset{}, errors.Wrapf(ErrAsset, "item %s has no asset %s", item.ID, band)
	}
	if profile.AssetMediaType != "" && !strings.EqualFold(strings.ReplaceAll(a.MediaType, " ", ""), strings.ReplaceAll(profile.AssetMediaType, " ", "")) {
		return Asset{}, errors.Wrapf(ErrAsset, "item %s asset %s has media type %q, expected %q", item.ID, band, a.MediaType, profile.AssetMediaType)
	}
	return a, nil
}

// cropAsset fetches one asset and crops it to the AOI.
func (e *Engine) cropAsset(ctx context.Context, item Item, profile *CollectionProfile, band string, proj *aoiProjector) (*Coverage, error) {
	a, err := e.asset(item, profile, band)
	if err != nil {
		return nil, err
	}

	cov, err := e.source.Fetch(ctx, a.Href)
	if err != nil {
		if !errors.Is(err, ErrIO) {
			err = errors.Wrap(ErrIO, err.Error())
		}
		return nil, errors.Wrapf(err, "item %s fetching %s", item.ID, band)
	}
	defer cov.Close()

	g, err := proj.in(cov.CRS)
	if err != nil {
		return nil, errors.Wrapf(err, "item %s reprojecting aoi for %s", item.ID, band)
	}

	cropped, err := Crop(ctx, cov, g)
	if err != nil {
		return nil, errors.Wrapf(err, "item %s cropping %s", item.ID, band)
	}
	cropped.Name = item.ID + "/" + band
	e.itemLog(item).Debugf("cropped %s to %dx%d", band, cropped.Width, cropped.Height)
	return cropped, nil
}

func (e *Engine) TrueColor(ctx context.Context, item Item, aoi AOI) (*Coverage, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return nil, err
	}
	profile, err := e.prepare(item, proj)
	if err != nil {
		return nil, err
	}
	return e.cropAsset(ctx, item, profile, profile.TrueColorBand, proj)
}

func (e *Engine) NDVI(ctx context.Context, item Item, aoi AOI) (*Coverage, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return nil, err
	}
	return e.ndvi(ctx, item, proj)
}

func (e *Engine) ndvi(ctx context.Context, item Item, proj *aoiProjector) (*Coverage, error) {
	profile, err := e.prepare(item, proj)
	if err != nil {
		return nil, err
	}
	return e.ndviOf(ctx, item, profile, proj)
}

func (e *Engine) ndviOf(ctx context.Context, item Item, profile *CollectionProfile, proj *aoiProjector) (*Coverage, error) {
	covs, err := e.cropBands(ctx, item, profile, proj, profile.NIRBand, profile.RedBand)
	if err != nil {
		return nil, err
	}

	ndvi, err := ComputeNDVI(covs[0], covs[1])
	if err != nil {
		return nil, errors.Wrapf(err, "item %s", item.ID)
	}
	ndvi.Name = item.ID + "/ndvi"
	return ndvi, nil
}

// cropBands fetches and crops several assets concurrently. The result
// follows the order of bands.
func (e *Engine) cropBands(ctx context.Context, item Item, profile *CollectionProfile, proj *aoiProjector, bands ...string) ([]*Coverage, error) {
	covs := make([]*Coverage, len(bands))
	g, gctx := errgroup.WithContext(ctx)
	for i, band := range bands {
		i, band := i, band
		g.Go(func() error {
			c, err := e.cropAsset(gctx, item, profile, band, proj)
			covs[i] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return covs, nil
}

func (e *Engine) IsCloudy(ctx context.Context, item Item, aoi AOI) (bool, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return false, err
	}
	return e.isCloudy(ctx, item, proj)
}

func (e *Engine) isCloudy(ctx context.Context, item Item, proj *aoiProjector) (bool, error) {
	profile, err := e.prepare(item, proj)
	if err != nil {
		return false, err
	}
	cov, err := e.cropAsset(ctx, item, profile, profile.ClassificationBand, proj)
	if err != nil {
		return false, err
	}
	cloudy, err := IsCloudy(cov, profile.ClearSet())
	if err != nil {
		return false, errors.Wrapf(err, "item %s", item.ID)
	}
	e.itemLog(item).Debugf("cloudy: %v, clear classes %v", cloudy, profile.ClearSet().Values())
	return cloudy, nil
}

func (e *Engine) NDVIStatistics(ctx context.Context, item Item, aoi AOI) (NdviStats, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return NdviStats{}, err
	}
	return e.ndviStatistics(ctx, item, proj)
}

func (e *Engine) ndviStatistics(ctx context.Context, item Item, proj *aoiProjector) (NdviStats, error) {
	profile, err := e.prepare(item, proj)
	if err != nil {
		return NdviStats{}, err
	}

	var key string
	if e.cache != nil {
		key = StatsKey(item, profile, proj.aoi)
		if st, ok := e.cache.Get(key); ok {
			e.itemLog(item).Debugf("ndvi statistics served from cache")
			return st, nil
		}
	}

	ndvi, err := e.ndviOf(ctx, item, profile, proj)
	if err != nil {
		return NdviStats{}, err
	}
	st, err := Aggregate(ndvi)
	if err != nil {
		return NdviStats{}, errors.Wrapf(err, "item %s", item.ID)
	}

	res := NdviStats{ItemID: item.ID, Min: st.Min, Max: st.Max, Mean: st.Mean, Count: st.Count}
	if e.cache != nil {
		e.cache.Set(key, res)
	}
	return res, nil
}

// IndexStatistics aggregates a named band expression of the item
// collection profile over the AOI.
func (e *Engine) IndexStatistics(ctx context.Context, item Item, aoi AOI, index string) (Stats, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return Stats{}, err
	}
	profile, err := e.prepare(item, proj)
	if err != nil {
		return Stats{}, err
	}

	exprStr, ok := profile.Indices[index]
	if !ok {
		return Stats{}, errors.Wrapf(ErrUnsupportedCollection, "collection %s has no index %s", profile.Collection, index)
	}
	expr, err := ParseBandExpression(exprStr)
	if err != nil {
		return Stats{}, err
	}

	covs, err := e.cropBands(ctx, item, profile, proj, expr.Bands...)
	if err != nil {
		return Stats{}, err
	}
	bands := make(map[string]*Coverage, len(covs))
	for i, name := range expr.Bands {
		bands[name] = covs[i]
	}

	res, err := expr.Evaluate(bands)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "item %s index %s", item.ID, index)
	}
	st, err := Aggregate(res)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "item %s index %s", item.ID, index)
	}
	return st, nil
}

// Encode writes cov through the configured sink.
func (e *Engine) Encode(ctx context.Context, cov *Coverage) ([]byte, error) {
	if e.sink == nil {
		return nil, errors.Wrap(ErrIO, "no coverage sink configured")
	}
	out, err := e.sink.Encode(ctx, cov)
	if err != nil {
		if !errors.Is(err, ErrIO) {
			err = errors.Wrap(ErrIO, err.Error())
		}
		return nil, errors.Wrapf(err, "encoding %s", cov.Name)
	}
	return out, nil
}

func (e *Engine) TrueColorGeoTIFF(ctx context.Context, item Item, aoi AOI) ([]byte, error) {
	cov, err := e.TrueColor(ctx, item, aoi)
	if err != nil {
		return nil, err
	}
	return e.Encode(ctx, cov)
}

func (e *Engine) NDVIGeoTIFF(ctx context.Context, item Item, aoi AOI) ([]byte, error) {
	cov, err := e.NDVI(ctx, item, aoi)
	if err != nil {
		return nil, err
	}
	return e.Encode(ctx, cov)
}

// StatsKey identifies an NDVI statistics result by item, asset
// references, the profile bands feeding NDVI and AOI.
func StatsKey(item Item, profile *CollectionProfile, aoi AOI) string {
	h := sha256.New()
	h.Write([]byte(item.ID))
	h.Write([]byte{0})
	h.Write([]byte(item.Collection))
	if profile != nil {
		h.Write([]byte{0})
		h.Write([]byte(profile.NIRBand + "/" + profile.RedBand))
	}

	names := make([]string, 0, len(item.Assets))
	for name := range item.Assets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name + "=" + item.Assets[name].Href))
	}

	h.Write([]byte{0})
	h.Write([]byte(aoi.SourceCRS()))
	if b, err := wkb.Marshal(aoi.Geometry); err == nil {
		h.Write(b)
	}
	return "ndvi:" + hex.EncodeToString(h.Sum(nil))
}
