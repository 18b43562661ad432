package processor

import (
	"github.com/pkg/errors"
)

// Error kinds returned by the processing stages. Call sites wrap them
// with context, so test with errors.Is.
var (
	ErrValidation            = errors.New("validation failed")
	ErrUnknownCRS            = errors.New("unknown crs")
	ErrTransformFailure      = errors.New("coordinate transform failed")
	ErrUnsupportedCollection = errors.New("unsupported collection")
	ErrIncompatibleRasters   = errors.New("incompatible rasters")
	ErrIO                    = errors.New("raster io failed")
	ErrEmptyStatistic        = errors.New("no finite samples")

	// ErrAsset is an ErrIO raised before any byte is read: the asset is
	// missing from the item or has the wrong media type.
	ErrAsset = errors.Wrap(ErrIO, "asset unavailable")
)

var errorKinds = []struct {
	err  error
	name string
}{
	{ErrValidation, "validation"},
	{ErrUnknownCRS, "unknown_crs"},
	{ErrTransformFailure, "transform_failure"},
	{ErrUnsupportedCollection, "unsupported_collection"},
	{ErrIncompatibleRasters, "incompatible_rasters"},
	{ErrIO, "io"},
	{ErrEmptyStatistic, "empty_statistic"},
}

// ErrorKind names the error kind carried by err, "ok" for nil and
// "internal" for anything outside the taxonomy.
func ErrorKind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
