package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
)

// consumer drains the queue in order, runs the feature module on each window
// and is the only writer of rows.
type consumer struct {
	module       features.Module
	queue        *handoffQueue
	total        int
	featureWidth int
	maxRetries   int
	inferTimeout time.Duration
	onProgress   ProgressFunc
	metrics      *metrics.PipelineMetrics
	log          logger.Logger

	rows []FeatureRow
}

// run consumes exactly c.total windows.
func (c *consumer) run(ctx context.Context) error {
	for i := range c.total {
		w, err := c.queue.pop(ctx)
		if err != nil {
			if errors.Is(err, errQueueClosed) {
				return wrapError(ErrReadFailure, nil, "producer stopped after %d of %d windows", i, c.total).
					Category(errors.CategoryWorker).
					Build()
			}
			return cancelledError(ctx, "consumer", i)
		}
		c.metrics.RecordDequeued()

		if ctx.Err() != nil {
			return cancelledError(ctx, "consumer", i)
		}

		start := time.Now()
		flat, err := c.infer(ctx, &w)
		if err != nil {
			return err
		}
		rows := Reshape(flat, c.featureWidth)
		c.rows = append(c.rows, rows...)
		c.metrics.RecordWindowConsumed(len(rows), time.Since(start))

		c.log.Debug("window processed",
			logger.Int("window_index", w.Index),
			logger.Int("rows", len(rows)),
			logger.Duration("infer_time", time.Since(start)))

		c.reportProgress(i)
	}
	return nil
}

// reportProgress reports index/(total-1). A single-window plan reports 1.
func (c *consumer) reportProgress(index int) {
	if c.onProgress == nil {
		return
	}
	if c.total <= 1 {
		c.onProgress(1)
		return
	}
	c.onProgress(float64(index) / float64(c.total-1))
}

// infer runs the module on w, retrying up to maxRetries times. Malformed
// output is not retried.
func (c *consumer) infer(ctx context.Context, w *AudioWindow) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(metrics.StageInfer)
			c.log.Warn("retrying window inference",
				logger.Int("window_index", w.Index),
				logger.Int("attempt", attempt),
				logger.Error(lastErr))
		}
		if ctx.Err() != nil {
			return nil, cancelledError(ctx, "consumer", w.Index)
		}

		flat, err := c.inferOnce(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelledError(ctx, "consumer", w.Index)
			}
			lastErr = err
			continue
		}

		if len(flat) == 0 || len(flat)%c.featureWidth != 0 {
			return nil, wrapError(ErrInfer, nil, "window %d: output length %d is not a positive multiple of feature width %d",
				w.Index, len(flat), c.featureWidth).
				Category(errors.CategoryAudioAnalysis).
				Context("window_index", w.Index).
				Build()
		}
		return flat, nil
	}

	category := errors.CategoryAudioAnalysis
	switch {
	case errors.Is(lastErr, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case c.maxRetries > 0:
		category = errors.CategoryRetry
	}
	return nil, wrapError(ErrInfer, lastErr, "window %d frames [%d, %d)",
		w.Index, w.FrameOffset, w.FrameOffset+w.FrameCount).
		Category(category).
		Context("window_index", w.Index).
		Context("attempts", c.maxRetries+1).
		Build()
}

// inferOnce makes one module call under the optional timeout. A panicking
// module is reported as an error.
func (c *consumer) inferOnce(ctx context.Context, w *AudioWindow) (flat []float32, err error) {
	if c.inferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.inferTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			flat, err = nil, fmt.Errorf("feature module panic: %v", r)
		}
	}()

	return c.module.Infer(ctx, w.Samples, w.FrameCount, w.ChannelCount, w.SampleRate)
}
