package analysis

import (
	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/cpuspec"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// NewFeatureLoader returns the loader for the configured model type.
func NewFeatureLoader(settings *conf.Settings) (features.Loader, error) {
	threads := cpuspec.ResolveThreads(settings.Model.Threads)
	GetLogger().Debug("creating feature loader",
		logger.String("model_type", settings.Model.Type),
		logger.Int("threads", threads))

	return features.NewLoader(settings.Model.Type, features.ModelOptions{
		Path:         settings.Model.Path,
		Threads:      threads,
		FFTSize:      settings.Extraction.WindowSize,
		HopSize:      settings.Extraction.HopSize,
		MelBands:     settings.Model.MelBands,
		Coefficients: settings.Extraction.FeatureWidth,
		TopDB:        settings.Model.TopDB,
	})
}

// NewExtractor returns an Extractor for the configured model. m may be nil.
func NewExtractor(settings *conf.Settings, m *metrics.PipelineMetrics) (*pipeline.Extractor, error) {
	loader, err := NewFeatureLoader(settings)
	if err != nil {
		return nil, err
	}
	return pipeline.New(loader, pipeline.WithMetrics(m)), nil
}
