package myaudio

import (
	"sync"

	"github.com/tphakala/mfcc-go/internal/errors"
)

// MemorySource serves frames from an interleaved in-memory buffer.
type MemorySource struct {
	mu      sync.Mutex
	samples []float32
	info    AudioInfo
	closed  bool
}

// NewMemorySource wraps interleaved samples. A trailing partial frame is ignored.
func NewMemorySource(samples []float32, numChannels, sampleRate int) (*MemorySource, error) {
	if numChannels < 1 || sampleRate <= 0 {
		return nil, errors.Newf("invalid memory source: %d channels at %d Hz", numChannels, sampleRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("operation", "new_memory_source").
			Build()
	}

	return &MemorySource{
		samples: samples,
		info: AudioInfo{
			SampleRate:  sampleRate,
			TotalFrames: len(samples) / numChannels,
			NumChannels: numChannels,
			BitDepth:    32,
			Format:      FormatMemory,
		},
	}, nil
}

// Info returns the source metadata.
func (m *MemorySource) Info() AudioInfo {
	return m.info
}

// ReadFrames returns a copy of the samples for frames [start, start+count).
func (m *MemorySource) ReadFrames(start, count int) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSourceClosed
	}
	if err := checkFrameRange(m.info, start, count); err != nil {
		return nil, err
	}

	ch := m.info.NumChannels
	out := make([]float32, count*ch)
	copy(out, m.samples[start*ch:(start+count)*ch])
	return out, nil
}

// Close releases the buffer.
func (m *MemorySource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.samples = nil
	return nil
}
