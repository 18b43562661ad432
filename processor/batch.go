package processor

import (
	"context"

	"github.com/gammazero/workerpool"
	"github.com/pkg/errors"
)

type itemResult[T any] struct {
	value T
	err   error
}

type batchOptions struct {
	progress func(item Item, err error)
}

type BatchOption func(*batchOptions)

// WithProgress registers a callback invoked once per finished item. It
// may be called from several goroutines at once.
func WithProgress(fn func(item Item, err error)) BatchOption {
	return func(o *batchOptions) {
		o.progress = fn
	}
}

// fanOut runs fn for every item on a bounded worker pool and returns
// one result per item, in item order.
func fanOut[T any](ctx context.Context, poolSize int, items []Item, fn func(context.Context, Item) (T, error), opts ...BatchOption) []itemResult[T] {
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}

	results := make([]itemResult[T], len(items))
	wp := workerpool.New(poolSize)
	for i := range items {
		i := i
		wp.Submit(func() {
			v, err := fn(ctx, items[i])
			results[i] = itemResult[T]{value: v, err: err}
			if o.progress != nil {
				o.progress(items[i], err)
			}
		})
	}
	wp.StopWait()
	return results
}

// BatchNDVIStatistics computes NDVI statistics for every item. Items
// without any finite NDVI sample over the AOI are left out of the
// result. Any other item failure fails the whole batch; the reported
// error is the one of the first failed item in input order.
func (e *Engine) BatchNDVIStatistics(ctx context.Context, items []Item, aoi AOI, opts ...BatchOption) ([]NdviStats, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return nil, err
	}

	results := fanOut(ctx, e.poolSize, items, func(ctx context.Context, item Item) (NdviStats, error) {
		return e.ndviStatistics(ctx, item, proj)
	}, opts...)

	out := make([]NdviStats, 0, len(items))
	for i, r := range results {
		switch {
		case r.err == nil:
			out = append(out, r.value)
		case errors.Is(r.err, ErrEmptyStatistic):
			e.itemLog(items[i]).Infof("dropped from batch: %v", r.err)
		default:
			e.itemLog(items[i]).Errorf("batch failed: %v", r.err)
			return nil, errors.Wrapf(r.err, "batch item %d", i)
		}
	}
	return out, nil
}

// FilterCloudy returns the items that are clear over the AOI, in input
// order. Any item failure fails the whole call.
func (e *Engine) FilterCloudy(ctx context.Context, items []Item, aoi AOI, opts ...BatchOption) ([]Item, error) {
	proj, err := e.projector(aoi)
	if err != nil {
		return nil, err
	}

	results := fanOut(ctx, e.poolSize, items, func(ctx context.Context, item Item) (bool, error) {
		return e.isCloudy(ctx, item, proj)
	}, opts...)

	clearItems := make([]Item, 0, len(items))
	for i, r := range results {
		if r.err != nil {
			e.itemLog(items[i]).Errorf("cloud filter failed: %v", r.err)
			return nil, errors.Wrapf(r.err, "batch item %d", i)
		}
		if !r.value {
			clearItems = append(clearItems, items[i])
		}
	}
	return clearItems, nil
}
