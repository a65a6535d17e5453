package features

import (
	"context"
	"fmt"
	"sync"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"gonum.org/v1/gonum/dsp/fourier"
)

// MFCCConfig configures the builtin MFCC module.
type MFCCConfig struct {
	FFTSize      int     // samples per STFT frame
	HopSize      int     // samples between STFT frames
	MelBands     int     // mel filterbank size
	Coefficients int     // cepstral coefficients kept per frame
	TopDB        float64 // log-mel dynamic range, 0 disables clamping
}

// MFCCModule computes MFCCs with a non-centred STFT. Multi-channel windows
// are averaged to mono first. The result is frame-major: Coefficients
// values for frame 0, then frame 1 and so on.
type MFCCModule struct {
	mu      sync.Mutex
	cfg     MFCCConfig
	fft     *fourier.FFT
	window  []float64
	dct     [][]float64
	filters map[int][]melFilter // by sample rate

	frame  []float64
	coeffs []complex128
	power  []float64
}

// NewMFCCModule validates cfg and prepares the FFT, window and DCT basis.
func NewMFCCModule(cfg MFCCConfig) (*MFCCModule, error) {
	if cfg.FFTSize <= 0 || cfg.HopSize <= 0 || cfg.MelBands <= 0 || cfg.Coefficients <= 0 {
		return nil, errors.Newf("invalid MFCC configuration: fft=%d hop=%d mels=%d coefficients=%d",
			cfg.FFTSize, cfg.HopSize, cfg.MelBands, cfg.Coefficients).
			Component("features").
			Category(errors.CategoryModelInit).
			Build()
	}
	if cfg.Coefficients > cfg.MelBands {
		return nil, errors.Newf("cannot keep %d coefficients from %d mel bands", cfg.Coefficients, cfg.MelBands).
			Component("features").
			Category(errors.CategoryModelInit).
			Build()
	}

	return &MFCCModule{
		cfg:     cfg,
		fft:     fourier.NewFFT(cfg.FFTSize),
		window:  periodicHann(cfg.FFTSize),
		dct:     dctMatrix(cfg.Coefficients, cfg.MelBands),
		filters: make(map[int][]melFilter),
		frame:   make([]float64, cfg.FFTSize),
		coeffs:  make([]complex128, cfg.FFTSize/2+1),
		power:   make([]float64, cfg.FFTSize/2+1),
	}, nil
}

// NewMFCCLoader returns a Loader for the builtin module.
func NewMFCCLoader(cfg MFCCConfig) Loader {
	return LoaderFunc(func() (Module, error) {
		m, err := NewMFCCModule(cfg)
		if err != nil {
			return nil, err
		}
		GetLogger().Info("builtin MFCC module loaded",
			logger.Int("fft_size", cfg.FFTSize),
			logger.Int("hop_size", cfg.HopSize),
			logger.Int("mel_bands", cfg.MelBands),
			logger.Int("coefficients", cfg.Coefficients))
		return m, nil
	})
}

// Frames returns the number of STFT frames produced for frameCount samples.
// Inputs shorter than one FFT frame are zero-padded to a single frame.
func (m *MFCCModule) Frames(frameCount int) int {
	if frameCount <= m.cfg.FFTSize {
		return 1
	}
	return 1 + (frameCount-m.cfg.FFTSize)/m.cfg.HopSize
}

// Infer implements Module.
func (m *MFCCModule) Infer(ctx context.Context, samples []float32, frameCount, channelCount, sampleRate int) ([]float32, error) {
	if err := ValidateInput(samples, frameCount, channelCount, sampleRate); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mono := downmix(samples, frameCount, channelCount)
	filters := m.filterbank(sampleRate)
	numFrames := m.Frames(frameCount)
	bands := m.cfg.MelBands

	melSpec := make([]float64, numFrames*bands)
	for f := range numFrames {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(fmt.Errorf("MFCC computation interrupted: %w", err)).
				Component("features").
				Category(errors.CategoryCancellation).
				Context("frame", f).
				Build()
		}

		start := f * m.cfg.HopSize
		for i := range m.frame {
			var v float64
			if start+i < len(mono) {
				v = mono[start+i]
			}
			m.frame[i] = v * m.window[i]
		}

		m.coeffs = m.fft.Coefficients(m.coeffs, m.frame)
		for i, c := range m.coeffs {
			m.power[i] = real(c)*real(c) + imag(c)*imag(c)
		}

		row := melSpec[f*bands : (f+1)*bands]
		for b, filter := range filters {
			row[b] = filter.apply(m.power)
		}
	}

	powerToDB(melSpec, m.cfg.TopDB)

	k := m.cfg.Coefficients
	out := make([]float32, numFrames*k)
	for f := range numFrames {
		row := melSpec[f*bands : (f+1)*bands]
		for c, basis := range m.dct {
			var sum float64
			for b, w := range basis {
				sum += w * row[b]
			}
			out[f*k+c] = float32(sum)
		}
	}

	return out, nil
}

// Close implements Module.
func (m *MFCCModule) Close() error {
	return nil
}

func (m *MFCCModule) filterbank(sampleRate int) []melFilter {
	if fb, ok := m.filters[sampleRate]; ok {
		return fb
	}
	fb := melFilterbank(m.cfg.MelBands, m.cfg.FFTSize, sampleRate)
	m.filters[sampleRate] = fb
	return fb
}

// downmix averages channel-major samples into one mono signal.
func downmix(samples []float32, frameCount, channelCount int) []float64 {
	mono := make([]float64, frameCount)
	for c := range channelCount {
		channel := samples[c*frameCount : (c+1)*frameCount]
		for i, s := range channel {
			mono[i] += float64(s)
		}
	}
	if channelCount > 1 {
		inv := 1 / float64(channelCount)
		for i := range mono {
			mono[i] *= inv
		}
	}
	return mono
}
