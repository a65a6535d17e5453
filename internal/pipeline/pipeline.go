// Package pipeline extracts ordered feature rows from long recordings.
//
// A recording is split into overlapping macro-chunks (see Plan). One producer
// goroutine reads the chunks in order and hands them to one consumer
// goroutine through a FIFO queue. The consumer runs the feature module on
// each chunk, reshapes the output into fixed-width rows and accumulates them.
// Any failure aborts the whole extraction: the completion callback fires
// exactly once, either with every row in plan order or with an error and no
// rows.
package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
)

// ProgressFunc receives the completed fraction in [0, 1] after each window.
type ProgressFunc func(fraction float64)

// CompletionFunc receives the outcome of an extraction. rows is empty
// whenever err is non-nil.
type CompletionFunc func(err error, rows []FeatureRow)

// SourceOpener opens a sample source by path.
type SourceOpener func(path string) (myaudio.Source, error)

// Result is the outcome delivered by ExtractAsync.
type Result struct {
	Rows []FeatureRow
	Err  error
}

// Extractor runs extractions with one feature module. The module is loaded
// on first use and shared by all extractions of the Extractor.
type Extractor struct {
	loader  features.Loader
	open    SourceOpener
	metrics *metrics.PipelineMetrics

	mu      sync.Mutex
	module  features.Module
	closed  bool
	running sync.WaitGroup
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithSourceOpener replaces myaudio.Open for path based extractions.
func WithSourceOpener(open SourceOpener) Option {
	return func(e *Extractor) {
		e.open = open
	}
}

// New creates an Extractor that loads its module from loader.
func New(loader features.Loader, opts ...Option) *Extractor {
	e := &Extractor{
		loader: loader,
		open:   myaudio.Open,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFeatures starts extracting features from the audio file at path and
// returns immediately. onProgress (optional) is called from the consumer
// goroutine. onComplete is called exactly once, from the goroutine that runs
// the extraction, after producer and consumer have stopped.
func (e *Extractor) ExtractFeatures(ctx context.Context, path string, cfg Config, onProgress ProgressFunc, onComplete CompletionFunc) {
	e.start(onComplete, func() ([]FeatureRow, error) {
		return e.runPath(ctx, path, cfg, onProgress)
	})
}

// ExtractSource is ExtractFeatures for an already open source. The caller
// keeps ownership of src and must not use it until onComplete is called.
func (e *Extractor) ExtractSource(ctx context.Context, src myaudio.Source, cfg Config, onProgress ProgressFunc, onComplete CompletionFunc) {
	e.start(onComplete, func() ([]FeatureRow, error) {
		return e.run(ctx, src, cfg, onProgress)
	})
}

// ExtractAsync starts an extraction and delivers its single result on the
// returned channel.
func (e *Extractor) ExtractAsync(ctx context.Context, path string, cfg Config, onProgress ProgressFunc) <-chan Result {
	results := make(chan Result, 1)
	e.ExtractFeatures(ctx, path, cfg, onProgress, deliver(results))
	return results
}

// Extract runs an extraction to completion.
func (e *Extractor) Extract(ctx context.Context, path string, cfg Config, onProgress ProgressFunc) ([]FeatureRow, error) {
	r := <-e.ExtractAsync(ctx, path, cfg, onProgress)
	return r.Rows, r.Err
}

// ExtractFrom runs an extraction over an open source to completion.
func (e *Extractor) ExtractFrom(ctx context.Context, src myaudio.Source, cfg Config, onProgress ProgressFunc) ([]FeatureRow, error) {
	results := make(chan Result, 1)
	e.ExtractSource(ctx, src, cfg, onProgress, deliver(results))
	r := <-results
	return r.Rows, r.Err
}

func deliver(results chan<- Result) CompletionFunc {
	return func(err error, rows []FeatureRow) {
		results <- Result{Rows: rows, Err: err}
		close(results)
	}
}

// Close waits for running extractions and releases the module. Extractions
// started after Close fail with ErrModuleLoad.
func (e *Extractor) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.running.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.module == nil {
		return nil
	}
	err := e.module.Close()
	e.module = nil
	return err
}

// start runs work on a new goroutine and reports its outcome to onComplete.
func (e *Extractor) start(onComplete CompletionFunc, work func() ([]FeatureRow, error)) {
	if onComplete == nil {
		onComplete = func(error, []FeatureRow) {}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		go onComplete(errClosed(), nil)
		return
	}
	e.running.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.running.Done()
		rows, err := work()
		if err != nil {
			rows = nil
		}
		onComplete(err, rows)
	}()
}

func errClosed() error {
	return wrapError(ErrModuleLoad, nil, "extractor is closed").
		Category(errors.CategoryState).
		Build()
}

// loadModule returns the shared feature module, loading it on first use. Failed
// loads are not cached.
func (e *Extractor) loadModule() (features.Module, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.module != nil {
		return e.module, nil
	}
	if e.loader == nil {
		return nil, wrapError(ErrModuleLoad, nil, "no feature module loader").
			Category(errors.CategoryModelLoad).
			Build()
	}

	start := time.Now()
	module, err := e.loader.Load()
	if err == nil && module == nil {
		err = errors.NewStd("loader returned no module")
	}
	e.metrics.RecordModuleLoad(err)
	if err != nil {
		return nil, wrapError(ErrModuleLoad, err, "loading feature module").
			Category(errors.CategoryModelLoad).
			Priority(errors.PriorityHigh).
			Timing("module_load", time.Since(start)).
			Build()
	}

	GetLogger().Info("feature module loaded", logger.Duration("load_time", time.Since(start)))
	e.module = module
	return module, nil
}

func (e *Extractor) runPath(ctx context.Context, path string, cfg Config, onProgress ProgressFunc) ([]FeatureRow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.loadModule(); err != nil {
		return nil, err
	}

	src, err := e.open(path)
	if err != nil {
		return nil, wrapError(ErrReadFailure, err, "opening %s", path).
			Category(errors.CategoryFileIO).
			Context("file_path", path).
			Build()
	}
	defer func() {
		if err := src.Close(); err != nil {
			GetLogger().Warn("failed to close audio source",
				logger.String("path", path),
				logger.Error(err))
		}
	}()

	return e.run(ctx, src, cfg, onProgress)
}

// run performs one extraction over src.
func (e *Extractor) run(ctx context.Context, src myaudio.Source, cfg Config, onProgress ProgressFunc) (rows []FeatureRow, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	module, err := e.loadModule()
	if err != nil {
		return nil, err
	}

	info := src.Info()
	if info.NumChannels <= 0 || info.SampleRate <= 0 || info.TotalFrames < 0 {
		return nil, wrapError(ErrReadFailure, nil, "invalid source format: %d channels, %d Hz, %d frames",
			info.NumChannels, info.SampleRate, info.TotalFrames).
			Category(errors.CategoryAudio).
			Build()
	}
	if cfg.Channel != nil && *cfg.Channel >= info.NumChannels {
		return nil, wrapError(ErrChannelOutOfRange, nil, "channel %d requested, source has %d",
			*cfg.Channel, info.NumChannels).
			Category(errors.CategoryValidation).
			Context("channel", *cfg.Channel).
			Context("channel_count", info.NumChannels).
			Build()
	}

	plan, err := Plan(info.TotalFrames, cfg.WindowSize, cfg.HopSize, cfg.MacroWindowSize)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordDropped(plan.Dropped)

	log := GetLogger().With(
		logger.String("format", info.Format),
		logger.Int("total_frames", info.TotalFrames),
		logger.Int("windows", plan.Len()))
	log.Info("starting extraction",
		logger.Int("window_size", cfg.WindowSize),
		logger.Int("hop_size", cfg.HopSize),
		logger.Int("macro_window_size", cfg.MacroWindowSize),
		logger.Int("channels", info.NumChannels))

	if plan.Len() == 0 {
		if onProgress != nil {
			onProgress(1)
		}
		log.Info("nothing to extract")
		return []FeatureRow{}, nil
	}

	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = plan.Len()
	}
	queue := newHandoffQueue(depth)

	e.metrics.RunStarted()
	started := time.Now()
	defer func() {
		status := metrics.StatusSuccess
		switch {
		case errors.Is(err, ErrCancelled):
			status = metrics.StatusCancelled
		case err != nil:
			status = metrics.StatusError
		}
		e.metrics.RunFinished(Kind(err), status, queue.size(), time.Since(started))
	}()

	prod := &producer{
		source:     src,
		info:       info,
		plan:       &plan,
		channel:    cfg.Channel,
		maxRetries: cfg.MaxRetries,
		queue:      queue,
		metrics:    e.metrics,
		log:        log,
	}
	cons := &consumer{
		module:       module,
		queue:        queue,
		total:        plan.Len(),
		featureWidth: cfg.FeatureWidth,
		maxRetries:   cfg.MaxRetries,
		inferTimeout: cfg.InferTimeout,
		onProgress:   onProgress,
		metrics:      e.metrics,
		log:          log,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return prod.run(gctx) })
	g.Go(func() error { return cons.run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("extraction failed",
			logger.String("kind", Kind(err)),
			logger.Error(err),
			logger.Duration("elapsed", time.Since(started)))
		return nil, err
	}

	log.Info("extraction completed",
		logger.Int("rows", len(cons.rows)),
		logger.Duration("elapsed", time.Since(started)))
	return cons.rows, nil
}
