package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/observability/metrics"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

type publishedMessage struct {
	topic   string
	payload string
	retain  bool
}

// fakeClient records published messages in memory.
type fakeClient struct {
	mu        sync.Mutex
	messages  []publishedMessage
	publishFn func(topic string) error
}

func (f *fakeClient) Connect(context.Context) error { return nil }
func (f *fakeClient) IsConnected() bool             { return true }
func (f *fakeClient) Disconnect()                   {}

func (f *fakeClient) Publish(_ context.Context, topic, payload string, retain bool) error {
	if f.publishFn != nil {
		if err := f.publishFn(topic); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload, retain: retain})
	return nil
}

func (f *fakeClient) published() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMessage(nil), f.messages...)
}

func newTestMetrics(t *testing.T) *metrics.MQTTMetrics {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestPublisherTopics(t *testing.T) {
	t.Parallel()

	p := NewPublisher(&fakeClient{}, "lab/mfcc/", false, 1, nil)
	assert.Equal(t, "lab/mfcc/progress", p.ProgressTopic())
	assert.Equal(t, "lab/mfcc/result", p.ResultTopic())
}

func TestProgressFuncThrottles(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	m := newTestMetrics(t)
	p := NewPublisher(client, "mfcc", false, 0.001, m)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	progress := p.ProgressFunc(context.Background(), "job-1", "a.wav")
	for _, f := range []float64{0, 0.25, 0.5, 0.75, 1} {
		progress(f)
	}

	msgs := client.published()
	require.Len(t, msgs, 2, "first update passes the burst, final update always passes")
	assert.InDelta(t, 3, testutil.ToFloat64(m.MessagesThrottled), 0)

	var last ProgressMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[1].payload), &last))
	assert.Equal(t, "mfcc/progress", msgs[1].topic)
	assert.False(t, msgs[1].retain)
	assert.Equal(t, ProgressMessage{JobID: "job-1", Source: "a.wav", Progress: 1, Timestamp: fixed}, last)
}

func TestProgressFuncUnlimited(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	p := NewPublisher(client, "mfcc", false, 0, nil)
	progress := p.ProgressFunc(context.Background(), "job-1", "a.wav")
	for i := range 10 {
		progress(float64(i) / 9)
	}
	assert.Len(t, client.published(), 10)
}

func TestProgressFuncIgnoresPublishErrors(t *testing.T) {
	t.Parallel()

	client := &fakeClient{publishFn: func(string) error { return errors.NewStd("broker down") }}
	p := NewPublisher(client, "mfcc", false, 0, nil)
	assert.NotPanics(t, func() {
		p.ProgressFunc(context.Background(), "job-1", "a.wav")(1)
	})
}

func TestPublishResult(t *testing.T) {
	t.Parallel()

	failure := errors.New(errors.NewStd("disk gone")).Build()
	wrapped := errors.Join(pipeline.ErrReadFailure, failure)

	tests := []struct {
		name   string
		rows   int
		err    error
		status string
		kind   string
		rowsIn int
	}{
		{name: "completed", rows: 42, status: StatusCompleted, rowsIn: 42},
		{name: "failed", rows: 7, err: wrapped, status: StatusFailed, kind: "read_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeClient{}
			p := NewPublisher(client, "mfcc", true, 1, nil)
			require.NoError(t, p.PublishResult(context.Background(), "job-9", "b.flac", tt.rows, tt.err, 1500*time.Millisecond))

			msgs := client.published()
			require.Len(t, msgs, 1)
			assert.Equal(t, "mfcc/result", msgs[0].topic)
			assert.True(t, msgs[0].retain)

			var got ResultMessage
			require.NoError(t, json.Unmarshal([]byte(msgs[0].payload), &got))
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.rowsIn, got.Rows)
			assert.InDelta(t, 1.5, got.Duration, 1e-9)
			if tt.err != nil {
				assert.NotEmpty(t, got.Error)
			}
		})
	}
}

func TestPublishResultPropagatesClientError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{publishFn: func(string) error { return errors.NewStd("broker down") }}
	p := NewPublisher(client, "mfcc", false, 1, nil)
	assert.Error(t, p.PublishResult(context.Background(), "job", "x.wav", 1, nil, time.Second))
}

func TestMessageKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "progress", messageKind("mfcc/progress"))
	assert.Equal(t, "result", messageKind("a/b/result"))
	assert.Equal(t, "other", messageKind("mfcc/status"))
}

func TestNewClientFromSettings(t *testing.T) {
	t.Parallel()

	c := NewClient(&conf.MQTTSettings{
		Broker:   "tcp://localhost:1883",
		Username: "user",
		Retain:   true,
	}, nil)

	impl, ok := c.(*client)
	require.True(t, ok)
	assert.Equal(t, "mfcc-go", impl.config.ClientID)
	assert.Equal(t, "mfcc", impl.config.Topic)
	assert.Equal(t, "user", impl.config.Username)
	assert.True(t, impl.config.Retain)
	assert.False(t, c.IsConnected())
}

func TestPublishWithoutConnection(t *testing.T) {
	t.Parallel()

	c := newClient(DefaultConfig(), nil)
	err := c.Publish(context.Background(), "mfcc/result", "{}", false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
}

func TestConnectRejectsBadBroker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		broker string
	}{
		{"unparsable", "tcp://[::1"},
		{"no host", "tcp://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			config := DefaultConfig()
			config.Broker = tt.broker
			config.ReconnectCooldown = 0
			err := newClient(config, nil).Connect(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestConnectCooldown(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	config.Broker = "tcp://"
	c := newClient(config, nil)
	require.Error(t, c.Connect(context.Background()))

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestNewFromSettingsDisabled(t *testing.T) {
	t.Parallel()

	p, c, err := NewFromSettings(context.Background(), &conf.MQTTSettings{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, c)
}
