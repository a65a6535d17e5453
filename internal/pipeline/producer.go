package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
)

// producer reads planned ranges from the source in order and pushes them
// onto the queue.
type producer struct {
	source     myaudio.Source
	info       myaudio.AudioInfo
	plan       *WindowPlan
	channel    *int
	maxRetries int
	queue      *handoffQueue
	metrics    *metrics.PipelineMetrics
	log        logger.Logger
}

// run produces every planned window. The queue is closed only when all
// windows were pushed; on failure the returned error cancels the consumer.
func (p *producer) run(ctx context.Context) error {
	for i, r := range p.plan.Ranges {
		if ctx.Err() != nil {
			return cancelledError(ctx, "producer", i)
		}

		start := time.Now()
		raw, err := p.read(ctx, i, r)
		if err != nil {
			return err
		}

		samples, channels, err := ExtractChannels(raw, p.info.NumChannels, p.channel)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		window := AudioWindow{
			Index:        i,
			FrameOffset:  r.From,
			FrameCount:   r.Len(),
			Samples:      samples,
			ChannelCount: channels,
			SampleRate:   p.info.SampleRate,
		}
		if err := p.queue.push(ctx, window); err != nil {
			return cancelledError(ctx, "producer", i)
		}
		p.metrics.RecordWindowProduced(elapsed)

		p.log.Trace("window queued",
			logger.Int("window_index", i),
			logger.Int("from", r.From),
			logger.Int("to", r.To),
			logger.Duration("read_time", elapsed))
	}

	p.queue.close()
	return nil
}

// read returns exactly r.Len() frames of interleaved samples, retrying up to
// maxRetries times.
func (p *producer) read(ctx context.Context, index int, r FrameRange) ([]float32, error) {
	want := r.Len() * p.info.NumChannels

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return nil, cancelledError(ctx, "producer", index)
			}
			p.metrics.RecordRetry(metrics.StageRead)
			p.log.Warn("retrying window read",
				logger.Int("window_index", index),
				logger.Int("attempt", attempt),
				logger.Error(lastErr))
		}

		raw, err := p.source.ReadFrames(r.From, r.Len())
		switch {
		case err != nil:
			lastErr = err
		case len(raw) != want:
			lastErr = fmt.Errorf("short read: got %d samples, want %d", len(raw), want)
		default:
			return raw, nil
		}
	}

	category := errors.CategoryFileIO
	if p.maxRetries > 0 {
		category = errors.CategoryRetry
	}
	return nil, wrapError(ErrReadFailure, lastErr, "window %d frames [%d, %d)", index, r.From, r.To).
		Category(category).
		Context("window_index", index).
		Context("attempts", p.maxRetries+1).
		Build()
}
