package pipeline

import (
	"context"
	"fmt"

	"github.com/tphakala/mfcc-go/internal/errors"
)

const componentPipeline = "pipeline"

// Error kinds. Every error reported by an extraction wraps exactly one of
// these, so callers can test with errors.Is.
var (
	ErrConfig            = errors.NewStd("invalid extraction config")
	ErrModuleLoad        = errors.NewStd("feature module unavailable")
	ErrChannelOutOfRange = errors.NewStd("channel out of range")
	ErrReadFailure       = errors.NewStd("audio read failed")
	ErrInfer             = errors.NewStd("feature inference failed")
	ErrCancelled         = errors.NewStd("extraction cancelled")
)

// Kind names the error kind of err for logs, metrics and API responses.
// It returns an empty string for nil and "unknown" for foreign errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrModuleLoad):
		return "module_load"
	case errors.Is(err, ErrChannelOutOfRange):
		return "channel_out_of_range"
	case errors.Is(err, ErrReadFailure):
		return "read_failure"
	case errors.Is(err, ErrInfer):
		return "infer"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "unknown"
	}
}

// wrapError starts an enhanced error that wraps sentinel and an optional cause.
func wrapError(sentinel, cause error, format string, args ...any) *errors.ErrorBuilder {
	msg := fmt.Sprintf(format, args...)
	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %s: %w", sentinel, msg, cause)
	} else {
		err = fmt.Errorf("%w: %s", sentinel, msg)
	}
	return errors.New(err).Component(componentPipeline)
}

func configError(format string, args ...any) *errors.EnhancedError {
	return wrapError(ErrConfig, nil, format, args...).
		Category(errors.CategoryConfiguration).
		Build()
}

// cancelledError reports that ctx ended while stage was working on window index.
func cancelledError(ctx context.Context, stage string, index int) *errors.EnhancedError {
	return wrapError(ErrCancelled, context.Cause(ctx), "%s stopped before window %d", stage, index).
		Category(errors.CategoryCancellation).
		Context("stage", stage).
		Context("window_index", index).
		Build()
}
