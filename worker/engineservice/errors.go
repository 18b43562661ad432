package engineservice

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/11904212/pcc-demo-api/processor"
)

// errorKindKey is the trailer that carries the processor error kind.
const errorKindKey = "aoiraster-error-kind"

var kindCodes = map[string]codes.Code{
	"validation":             codes.InvalidArgument,
	"unknown_crs":            codes.InvalidArgument,
	"transform_failure":      codes.InvalidArgument,
	"unsupported_collection": codes.NotFound,
	"empty_statistic":        codes.NotFound,
	"io":                     codes.Unavailable,
	"incompatible_rasters":   codes.Internal,
}

var kindErrors = map[string]error{
	"validation":             processor.ErrValidation,
	"unknown_crs":            processor.ErrUnknownCRS,
	"transform_failure":      processor.ErrTransformFailure,
	"unsupported_collection": processor.ErrUnsupportedCollection,
	"empty_statistic":        processor.ErrEmptyStatistic,
	"io":                     processor.ErrIO,
	"incompatible_rasters":   processor.ErrIncompatibleRasters,
}

// statusError converts an engine error to a gRPC status and records
// its kind in the trailer.
func statusError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(errors.Cause(err)).Err()
	}
	kind := processor.ErrorKind(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}
	grpc.SetTrailer(ctx, metadata.Pairs(errorKindKey, kind))
	return status.Error(code, err.Error())
}

// clientError turns a failed call back into the processor error kind
// when the server reported one.
func clientError(err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	if kinds := trailer.Get(errorKindKey); len(kinds) > 0 {
		if sentinel, ok := kindErrors[kinds[0]]; ok {
			return errors.Wrap(sentinel, status.Convert(err).Message())
		}
	}
	return err
}
