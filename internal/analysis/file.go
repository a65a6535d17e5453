package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/mqtt"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
	"github.com/tphakala/mfcc-go/internal/output"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// Options holds the optional collaborators of a file or directory analysis.
type Options struct {
	Metrics   *metrics.PipelineMetrics
	Publisher *mqtt.Publisher // nil disables MQTT messages
	Progress  io.Writer       // nil disables the progress line
}

// FileAnalysis extracts features from one audio file and writes them as
// configured in settings.Output.
func FileAnalysis(ctx context.Context, settings *conf.Settings, inputPath string, opts Options) error {
	extractor, err := NewExtractor(settings, opts.Metrics)
	if err != nil {
		return err
	}
	defer closeExtractor(extractor)

	outputPath := output.ResolvePath(settings.Output.Path, inputPath, settings.Output.Format)
	return analyzeFile(ctx, extractor, settings, inputPath, outputPath, opts)
}

// analyzeFile runs one extraction with extractor and writes the rows to
// outputPath, or to stdout when outputPath is empty.
func analyzeFile(ctx context.Context, extractor *pipeline.Extractor, settings *conf.Settings, inputPath, outputPath string, opts Options) error {
	info, err := validateAudioFile(inputPath)
	if err != nil {
		return err
	}

	cfg := pipeline.ConfigFromSettings(&settings.Extraction)
	if err := cfg.Validate(); err != nil {
		return err
	}
	channels := info.NumChannels
	if cfg.Channel != nil {
		channels = 1
	}
	if plan, err := pipeline.Plan(info.TotalFrames, cfg.WindowSize, cfg.HopSize, cfg.MacroWindowSize); err == nil {
		checkMemory(EstimatePeakMemory(&plan, info.NumChannels, channels, cfg.QueueDepth))
	}

	jobID := uuid.NewString()
	duration := time.Duration(float64(info.TotalFrames) / float64(info.SampleRate) * float64(time.Second))
	log := GetLogger().With(
		logger.String("job_id", jobID),
		logger.String("path", inputPath))

	var line *progressLine
	if opts.Progress != nil {
		line = newProgressLine(opts.Progress, inputPath, duration)
	}
	var publish pipeline.ProgressFunc
	if opts.Publisher != nil {
		publish = opts.Publisher.ProgressFunc(ctx, jobID, inputPath)
	}
	onProgress := func(fraction float64) {
		if line != nil {
			line.update(fraction)
		}
		if publish != nil {
			publish(fraction)
		}
	}

	log.Info("extracting features",
		logger.Duration("audio_duration", duration),
		logger.String("model_type", settings.Model.Type))

	start := time.Now()
	rows, err := extractor.Extract(ctx, inputPath, cfg, onProgress)
	elapsed := time.Since(start)

	if opts.Publisher != nil {
		if perr := opts.Publisher.PublishResult(ctx, jobID, inputPath, len(rows), err, elapsed); perr != nil {
			log.Warn("failed to publish result", logger.Error(perr))
		}
	}

	if err != nil {
		if line != nil {
			line.fail(err)
		}
		return err
	}
	if line != nil {
		line.done(len(rows))
	}

	err = output.WriteFileTo(outputPath, settings.Output.Format, &output.Document{
		Source:       inputPath,
		SampleRate:   info.SampleRate,
		Channels:     channels,
		TotalFrames:  info.TotalFrames,
		WindowSize:   cfg.WindowSize,
		HopSize:      cfg.HopSize,
		FeatureWidth: cfg.FeatureWidth,
		Rows:         rows,
	})
	if err != nil {
		return err
	}

	log.Info("features written",
		logger.Int("rows", len(rows)),
		logger.String("output", outputPath),
		logger.Duration("elapsed", elapsed))
	return nil
}

// validateAudioFile checks that filePath is a non-empty, readable audio file
// and returns its metadata.
func validateAudioFile(filePath string) (myaudio.AudioInfo, error) {
	name := filepath.Base(filePath)
	fail := func(category errors.ErrorCategory, err error) (myaudio.AudioInfo, error) {
		return myaudio.AudioInfo{}, errors.New(err).
			Component("analysis").
			Category(category).
			Context("file_path", filePath).
			Build()
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return fail(errors.CategoryFileIO, fmt.Errorf("error accessing file %s: %w", name, err))
	}
	if fileInfo.IsDir() {
		return fail(errors.CategoryValidation, fmt.Errorf("the path %s is a directory, not a file", name))
	}
	if fileInfo.Size() == 0 {
		return fail(errors.CategoryValidation, fmt.Errorf("file %s is empty (0 bytes)", name))
	}

	audioInfo, err := myaudio.GetAudioInfo(filePath)
	if err != nil {
		return fail(errors.CategoryAudio, fmt.Errorf("invalid audio file %s: %w", name, err))
	}
	if audioInfo.TotalFrames == 0 {
		return fail(errors.CategoryValidation, fmt.Errorf("file %s contains no samples or is still being written", name))
	}
	return audioInfo, nil
}

func closeExtractor(extractor *pipeline.Extractor) {
	if err := extractor.Close(); err != nil {
		GetLogger().Warn("failed to release feature module", logger.Error(err))
	}
}
