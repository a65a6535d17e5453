package features

import (
	"slices"
	"sync"

	"github.com/tphakala/mfcc-go/internal/errors"
)

// Builtin is the model type of the MFCC module in this package.
const Builtin = "builtin"

// ModelOptions carries the settings a Factory may need.
type ModelOptions struct {
	Path         string  // model file, if the type uses one
	Threads      int     // interpreter threads, 0 = auto
	FFTSize      int     // analysis window in frames
	HopSize      int     // stride between analysis windows
	MelBands     int     // mel filterbank size
	Coefficients int     // values per feature row
	TopDB        float64 // log-mel dynamic range
}

// Factory creates a Loader for one model type.
type Factory func(opts ModelOptions) (Loader, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		Builtin: func(opts ModelOptions) (Loader, error) {
			return NewMFCCLoader(MFCCConfig{
				FFTSize:      opts.FFTSize,
				HopSize:      opts.HopSize,
				MelBands:     opts.MelBands,
				Coefficients: opts.Coefficients,
				TopDB:        opts.TopDB,
			}), nil
		},
	}
)

// Register makes a model type available to NewLoader. It is meant to be
// called from the init function of the package implementing the type.
func Register(modelType string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if factory == nil {
		panic("features: Register factory is nil")
	}
	factories[modelType] = factory
}

// NewLoader returns a Loader for modelType.
func NewLoader(modelType string, opts ModelOptions) (Loader, error) {
	factoriesMu.RLock()
	factory, ok := factories[modelType]
	factoriesMu.RUnlock()

	if !ok {
		return nil, errors.Newf("unknown model type %q (registered: %v)", modelType, ModelTypes()).
			Component("features").
			Category(errors.CategoryConfiguration).
			Context("model_type", modelType).
			Build()
	}
	return factory(opts)
}

// ModelTypes returns the registered model types in sorted order.
func ModelTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
