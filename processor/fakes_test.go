package processor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

func constBand(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

type memSource struct {
	mu      sync.Mutex
	covs    map[string]*Coverage
	fetched []string
}

func newMemSource() *memSource {
	return &memSource{covs: make(map[string]*Coverage)}
}

func (s *memSource) add(href string, c *Coverage) {
	s.covs[href] = c
}

func (s *memSource) Fetch(ctx context.Context, href string) (*Coverage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, href)
	c, ok := s.covs[href]
	if !ok {
		return nil, errors.Wrapf(ErrIO, "no such object %s", href)
	}
	return c, nil
}

func (s *memSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

// sameCRSReprojector only knows the identity transform.
type sameCRSReprojector struct {
	calls int32
}

func (r *sameCRSReprojector) Reproject(g orb.Geometry, src, dst string) (orb.Geometry, error) {
	atomic.AddInt32(&r.calls, 1)
	if src != dst {
		return nil, errors.Wrapf(ErrUnknownCRS, "%s -> %s", src, dst)
	}
	return orb.Clone(g), nil
}

type memSink struct{}

func (memSink) Encode(ctx context.Context, c *Coverage) ([]byte, error) {
	return []byte(c.Name), nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]NdviStats
}

func (c *mapCache) Get(key string) (NdviStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[key]
	return st, ok
}

func (c *mapCache) Set(key string, st NdviStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = st
}

type windowCall struct {
	x0, y0, w, h int
}

// recordingReader serves windows of an in-memory band set and records
// every request.
type recordingReader struct {
	full  *Coverage
	calls []windowCall
}

func (r *recordingReader) ReadWindow(ctx context.Context, x0, y0, w, h int) ([][]float64, error) {
	r.calls = append(r.calls, windowCall{x0, y0, w, h})
	win, err := r.full.Window(ctx, x0, y0, w, h)
	if err != nil {
		return nil, err
	}
	return win.Data, nil
}
