package engineservice

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/11904212/pcc-demo-api/metrics"
	"github.com/11904212/pcc-demo-api/processor"
	"github.com/11904212/pcc-demo-api/utils"
)

// Reprojector places the AOI outline on PNG quicklooks. It is optional.
type Reprojector = processor.Reprojector

type ServerConfig struct {
	Engine      *processor.Engine
	Reprojector Reprojector
	MaxInFlight int
	Metrics     metrics.Logger
	Log         *log.Entry
}

// Server implements EngineServer on top of a processor.Engine.
type Server struct {
	engine  *processor.Engine
	reproj  Reprojector
	limiter *processor.ConcLimiter
	metrics metrics.Logger
	log     *log.Entry
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine service requires an engine")
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = utils.DefaultMaxInFlight
	}
	if cfg.Log == nil {
		cfg.Log = log.WithField("component", "engineservice")
	}
	return &Server{
		engine:  cfg.Engine,
		reproj:  cfg.Reprojector,
		limiter: processor.NewConcLimiter(cfg.MaxInFlight),
		metrics: cfg.Metrics,
		log:     cfg.Log,
	}, nil
}

// Wait blocks until every request in flight has returned.
func (s *Server) Wait() {
	s.limiter.Wait()
}

// call is the state of one request.
type call struct {
	s         *Server
	ctx       context.Context
	collector *metrics.MetricsCollector
	started   time.Time
	req       *request
}

func (s *Server) begin(ctx context.Context, method string, in *structpb.Struct, batch bool) (*call, error) {
	c := &call{s: s, ctx: ctx, collector: metrics.NewMetricsCollector(s.metrics)}
	c.collector.Info.Method = "/" + ServiceName + "/" + method
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		c.collector.Info.RemoteAddr = p.Addr.String()
	}

	if err := s.limiter.Increase(ctx); err != nil {
		return c, status.FromContextError(err).Err()
	}

	s.log.Debugf("%s: %d requests in flight", method, s.limiter.InFlight())

	req, err := decodeRequest(in, batch)
	if err != nil {
		s.limiter.Decrease()
		return c, err
	}
	c.req = req
	c.started = time.Now()

	info := c.collector.Info
	info.AOI.Geometry = req.aoi.Geometry
	info.AOI.CRS = req.aoi.SourceCRS()
	info.Engine.NumItems = len(req.items)
	if len(req.items) > 0 {
		info.Engine.Collection = req.items[0].Collection
	}
	return c, nil
}

// end releases the request slot, logs the metrics record and converts
// err to a gRPC status.
func (c *call) end(err error) error {
	if c.req != nil {
		c.s.limiter.Decrease()
		c.collector.Info.Engine.Duration = time.Since(c.started)
	}

	var serr error
	if err != nil {
		if _, isStatus := status.FromError(err); isStatus {
			serr = err
		} else {
			serr = statusError(c.ctx, err)
		}
		c.s.log.WithField("method", c.collector.Info.Method).Warnf("request failed: %v", err)
	}

	info := c.collector.Info
	info.Status = status.Code(serr).String()
	if err != nil {
		info.ErrorKind = processor.ErrorKind(err)
	}
	c.collector.Log()
	return serr
}

func (s *Server) Statistics(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.begin(ctx, "Statistics", in, false)
	if err != nil {
		return nil, c.end(err)
	}
	st, err := s.engine.NDVIStatistics(ctx, c.req.items[0], c.req.aoi)
	if err != nil {
		return nil, c.end(err)
	}
	c.collector.Info.Engine.NumResults = 1
	c.collector.Info.Engine.Pixels = st.Count
	out, err := toStruct(st)
	return out, c.end(err)
}

func (s *Server) BatchStatistics(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.begin(ctx, "BatchStatistics", in, true)
	if err != nil {
		return nil, c.end(err)
	}
	stats, err := s.engine.BatchNDVIStatistics(ctx, c.req.items, c.req.aoi)
	if err != nil {
		return nil, c.end(err)
	}
	if stats == nil {
		stats = []processor.NdviStats{}
	}
	c.collector.Info.Engine.NumResults = len(stats)
	for _, st := range stats {
		c.collector.Info.Engine.Pixels += st.Count
	}
	out, err := toStruct(statsReply{Stats: stats})
	return out, c.end(err)
}

func (s *Server) IndexStatistics(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.begin(ctx, "IndexStatistics", in, false)
	if err != nil {
		return nil, c.end(err)
	}
	if c.req.index == "" {
		return nil, c.end(errors.Wrap(processor.ErrValidation, "request has no index"))
	}
	st, err := s.engine.IndexStatistics(ctx, c.req.items[0], c.req.aoi, c.req.index)
	if err != nil {
		return nil, c.end(err)
	}
	c.collector.Info.Engine.NumResults = 1
	c.collector.Info.Engine.Pixels = st.Count
	out, err := toStruct(st)
	return out, c.end(err)
}

func (s *Server) IsCloudy(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	c, err := s.begin(ctx, "IsCloudy", in, false)
	if err != nil {
		return nil, c.end(err)
	}
	cloudy, err := s.engine.IsCloudy(ctx, c.req.items[0], c.req.aoi)
	if err != nil {
		return nil, c.end(err)
	}
	c.collector.Info.Engine.NumResults = 1
	return wrapperspb.Bool(cloudy), c.end(nil)
}

func (s *Server) FilterCloudy(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.begin(ctx, "FilterCloudy", in, true)
	if err != nil {
		return nil, c.end(err)
	}
	items, err := s.engine.FilterCloudy(ctx, c.req.items, c.req.aoi)
	if err != nil {
		return nil, c.end(err)
	}

	reply := itemsReply{Items: make([]utils.ItemDocument, 0, len(items))}
	for _, item := range items {
		m, err := utils.NewItemDocument(item)
		if err != nil {
			return nil, c.end(err)
		}
		reply.Items = append(reply.Items, m)
	}
	c.collector.Info.Engine.NumResults = len(items)
	out, err := toStruct(reply)
	return out, c.end(err)
}

func (s *Server) NDVI(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	c, err := s.begin(ctx, "NDVI", in, false)
	if err != nil {
		return nil, c.end(err)
	}
	cov, err := s.engine.NDVI(ctx, c.req.items[0], c.req.aoi)
	if err != nil {
		return nil, c.end(err)
	}
	return c.image(cov, utils.NDVIScale, utils.NDVIPalette)
}

func (s *Server) TrueColor(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	c, err := s.begin(ctx, "TrueColor", in, false)
	if err != nil {
		return nil, c.end(err)
	}
	cov, err := s.engine.TrueColor(ctx, c.req.items[0], c.req.aoi)
	if err != nil {
		return nil, c.end(err)
	}
	return c.image(cov, utils.ReflectanceScale, nil)
}

func (c *call) image(cov *processor.Coverage, scale utils.ScaleParams, palette *utils.Palette) (*wrapperspb.BytesValue, error) {
	defer cov.Close()

	var out []byte
	var err error
	switch c.req.format {
	case FormatPNG:
		opts := utils.QuicklookOptions{Scale: scale, Palette: palette, PixelSize: 4}
		if c.s.reproj != nil {
			outline, rerr := c.s.reproj.Reproject(c.req.aoi.Geometry, c.req.aoi.SourceCRS(), cov.CRS)
			if rerr == nil {
				opts.Outline = outline
			} else {
				c.s.log.Debugf("no outline on %s: %v", cov.Name, rerr)
			}
		}
		out, err = utils.EncodeQuicklook(c.ctx, cov, opts)
	default:
		out, err = c.s.engine.Encode(c.ctx, cov)
	}
	if err != nil {
		return nil, c.end(err)
	}

	c.collector.Info.Engine.NumResults = 1
	c.collector.Info.Engine.Pixels = cov.Width * cov.Height
	c.collector.Info.Engine.BytesOut = len(out)
	return wrapperspb.Bytes(out), c.end(nil)
}
