package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// Topic suffixes appended to the configured prefix.
const (
	progressSuffix = "progress"
	resultSuffix   = "result"
)

// Publisher turns extraction callbacks into MQTT messages.
type Publisher struct {
	client       Client
	topic        string
	retain       bool
	progressRate rate.Limit
	metrics      *metrics.MQTTMetrics
	now          func() time.Time
}

// NewPublisher returns a Publisher that sends at most progressRate progress
// messages per second and job. A non-positive rate disables throttling.
func NewPublisher(client Client, topic string, retain bool, progressRate float64, m *metrics.MQTTMetrics) *Publisher {
	limit := rate.Inf
	if progressRate > 0 {
		limit = rate.Limit(progressRate)
	}
	return &Publisher{
		client:       client,
		topic:        strings.TrimSuffix(topic, "/"),
		retain:       retain,
		progressRate: limit,
		metrics:      m,
		now:          time.Now,
	}
}

// NewFromSettings connects to the configured broker and returns a Publisher
// together with its client. It returns nils when MQTT is disabled.
func NewFromSettings(ctx context.Context, settings *conf.MQTTSettings, m *metrics.MQTTMetrics) (*Publisher, Client, error) {
	if !settings.Enabled {
		return nil, nil, nil
	}
	client := NewClient(settings, m)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	GetLogger().Info("publishing extraction events",
		logger.String("broker", settings.Broker),
		logger.String("topic", settings.Topic))
	return NewPublisher(client, settings.Topic, settings.Retain, settings.ProgressRate, m), client, nil
}

// ProgressTopic returns the topic progress messages are published to.
func (p *Publisher) ProgressTopic() string {
	return p.topic + "/" + progressSuffix
}

// ResultTopic returns the topic result messages are published to.
func (p *Publisher) ResultTopic() string {
	return p.topic + "/" + resultSuffix
}

// ProgressFunc returns a pipeline progress callback for one job. Updates
// above the rate limit are dropped, the final update is always sent.
func (p *Publisher) ProgressFunc(ctx context.Context, jobID, source string) pipeline.ProgressFunc {
	limiter := rate.NewLimiter(p.progressRate, 1)
	return func(fraction float64) {
		if fraction < 1 && !limiter.Allow() {
			p.metrics.IncrementThrottled()
			return
		}
		msg := ProgressMessage{
			JobID:     jobID,
			Source:    source,
			Progress:  fraction,
			Timestamp: p.now(),
		}
		if err := p.publishJSON(ctx, p.ProgressTopic(), msg, false); err != nil {
			GetLogger().Debug("progress not published",
				logger.String("job_id", jobID),
				logger.Error(err))
		}
	}
}

// PublishResult publishes the outcome of a job. err is the extraction error,
// nil on success.
func (p *Publisher) PublishResult(ctx context.Context, jobID, source string, rows int, err error, elapsed time.Duration) error {
	msg := ResultMessage{
		JobID:     jobID,
		Source:    source,
		Status:    StatusCompleted,
		Rows:      rows,
		Duration:  elapsed.Seconds(),
		Timestamp: p.now(),
	}
	if err != nil {
		msg.Status = StatusFailed
		msg.Rows = 0
		msg.Kind = pipeline.Kind(err)
		msg.Error = err.Error()
	}
	return p.publishJSON(ctx, p.ResultTopic(), msg, p.retain)
}

func (p *Publisher) publishJSON(ctx context.Context, topic string, v any, retain bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return p.client.Publish(ctx, topic, string(payload), retain)
}

// messageKind labels a topic for metrics.
func messageKind(topic string) string {
	switch {
	case strings.HasSuffix(topic, "/"+progressSuffix):
		return progressSuffix
	case strings.HasSuffix(topic, "/"+resultSuffix):
		return resultSuffix
	default:
		return "other"
	}
}
