// Package features provides the feature modules that turn a window of audio
// samples into a flat vector of feature values.
//
// A Module is loaded once through a Loader and invoked once per window.
// Samples arrive channel-major: all frames of channel 0, then channel 1 and
// so on.
package features

import (
	"context"
	"fmt"

	"github.com/tphakala/mfcc-go/internal/errors"
)

// Module computes features for one window of audio.
type Module interface {
	// Infer returns a flat feature vector for frameCount frames of
	// channelCount channel-major samples.
	Infer(ctx context.Context, samples []float32, frameCount, channelCount, sampleRate int) ([]float32, error)
	// Close releases resources held by the module.
	Close() error
}

// Loader creates a Module. Load may be expensive; callers cache the result.
type Loader interface {
	Load() (Module, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func() (Module, error)

// Load calls f.
func (f LoaderFunc) Load() (Module, error) {
	return f()
}

// ValidateInput checks the shape of an Infer request.
func ValidateInput(samples []float32, frameCount, channelCount, sampleRate int) error {
	if frameCount <= 0 || channelCount <= 0 || sampleRate <= 0 {
		return errors.Newf("invalid window shape: %d frames, %d channels, %d Hz", frameCount, channelCount, sampleRate).
			Component("features").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(samples) != frameCount*channelCount {
		return errors.New(fmt.Errorf("sample count %d does not match %d frames x %d channels",
			len(samples), frameCount, channelCount)).
			Component("features").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
