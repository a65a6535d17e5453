package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/myaudio"
)

// inferCall records one Infer invocation.
type inferCall struct {
	first      float32
	frameCount int
	channels   int
	sampleRate int
}

// fakeModule returns {first sample, frame count} per window unless fn is set.
type fakeModule struct {
	mu     sync.Mutex
	calls  []inferCall
	fn     func(ctx context.Context, call int, samples []float32, frameCount, channels int) ([]float32, error)
	closed atomic.Int32
}

func (m *fakeModule) Infer(ctx context.Context, samples []float32, frameCount, channels, sampleRate int) ([]float32, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, inferCall{
		first:      samples[0],
		frameCount: frameCount,
		channels:   channels,
		sampleRate: sampleRate,
	})
	fn := m.fn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, call, samples, frameCount, channels)
	}
	return []float32{samples[0], float32(frameCount)}, nil
}

func (m *fakeModule) Close() error {
	m.closed.Add(1)
	return nil
}

func (m *fakeModule) recorded() []inferCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]inferCall(nil), m.calls...)
}

// countingLoader hands out module and counts Load calls. The first
// failures calls return an error.
type countingLoader struct {
	module   features.Module
	failures int32
	loads    atomic.Int32
}

func (l *countingLoader) Load() (features.Module, error) {
	n := l.loads.Add(1)
	if n <= l.failures {
		return nil, fmt.Errorf("model file missing (attempt %d)", n)
	}
	return l.module, nil
}

// scriptedSource wraps a source, counts reads and fails reads starting at
// failFrom up to failTimes times (negative means always).
type scriptedSource struct {
	myaudio.Source
	failFrom  int
	failTimes int
	reads     atomic.Int32
	failed    atomic.Int32
	onRead    func(start int)
}

func (s *scriptedSource) ReadFrames(start, count int) ([]float32, error) {
	s.reads.Add(1)
	if s.onRead != nil {
		s.onRead(start)
	}
	if s.failFrom >= 0 && start == s.failFrom && (s.failTimes < 0 || int(s.failed.Load()) < s.failTimes) {
		s.failed.Add(1)
		return nil, fmt.Errorf("disk read error at frame %d", start)
	}
	return s.Source.ReadFrames(start, count)
}

// rampSource returns a memory source whose channel c holds frame*(c+1)
// with alternating sign per channel.
func rampSource(t *testing.T, frames, channels, sampleRate int) *myaudio.MemorySource {
	t.Helper()
	samples := make([]float32, frames*channels)
	for f := range frames {
		for c := range channels {
			v := float32(f * (c + 1))
			if c%2 == 1 {
				v = -v
			}
			samples[f*channels+c] = v
		}
	}
	src, err := myaudio.NewMemorySource(samples, channels, sampleRate)
	require.NoError(t, err)
	return src
}

// smallConfig plans 10 ranges over 160 frames: window 8, hop 4, macro 16.
func smallConfig() Config {
	return Config{
		WindowSize:      8,
		HopSize:         4,
		MacroWindowSize: 16,
		FeatureWidth:    2,
	}
}

func intPtr(v int) *int {
	return &v
}
