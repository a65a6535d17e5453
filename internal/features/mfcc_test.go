package features

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, freq, sampleRate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func testModule(t *testing.T, coefficients int) *MFCCModule {
	t.Helper()
	m, err := NewMFCCModule(MFCCConfig{
		FFTSize:      512,
		HopSize:      128,
		MelBands:     23,
		Coefficients: coefficients,
		TopDB:        80,
	})
	require.NoError(t, err)
	return m
}

func TestMFCCModule_OutputShape(t *testing.T) {
	t.Parallel()

	m := testModule(t, 2)

	tests := []struct {
		name       string
		frameCount int
		wantFrames int
	}{
		{"exact multiple of hop", 1024, 5},
		{"one fft frame", 512, 1},
		{"shorter than fft is padded", 300, 1},
		{"remainder dropped", 1100, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Infer(context.Background(), sine(tt.frameCount, 1000, 16000), tt.frameCount, 1, 16000)
			require.NoError(t, err)
			assert.Len(t, out, tt.wantFrames*2)
			assert.Equal(t, tt.wantFrames, m.Frames(tt.frameCount))
		})
	}
}

func TestMFCCModule_SilenceHasFlatSpectrum(t *testing.T) {
	t.Parallel()

	m := testModule(t, 2)
	out, err := m.Infer(context.Background(), make([]float32, 1024), 1024, 1, 16000)
	require.NoError(t, err)

	// All log-mel values sit at the -100 dB floor, so only c0 is non-zero
	wantC0 := -100 * math.Sqrt(23)
	for f := range len(out) / 2 {
		assert.InDelta(t, wantC0, out[f*2], 1e-3)
		assert.InDelta(t, 0, out[f*2+1], 1e-3)
	}
}

func TestMFCCModule_StationaryToneGivesIdenticalFrames(t *testing.T) {
	t.Parallel()

	m := testModule(t, 13)
	// 1 kHz at 16 kHz has a 16 sample period; hop 128 keeps frames in phase
	out, err := m.Infer(context.Background(), sine(2048, 1000, 16000), 2048, 1, 16000)
	require.NoError(t, err)

	frames := len(out) / 13
	require.Greater(t, frames, 1)
	for f := 1; f < frames; f++ {
		assert.InDeltaSlice(t, out[:13], out[f*13:(f+1)*13], 1e-3)
	}

	silence, err := m.Infer(context.Background(), make([]float32, 2048), 2048, 1, 16000)
	require.NoError(t, err)
	assert.NotEqual(t, silence[0], out[0], "a tone must differ from silence")
}

func TestMFCCModule_ChannelsAreAveraged(t *testing.T) {
	t.Parallel()

	m := testModule(t, 4)
	tone := sine(1024, 440, 16000)

	mono, err := m.Infer(context.Background(), tone, 1024, 1, 16000)
	require.NoError(t, err)

	// channel-major: identical channels average to the mono signal
	stereo := append(append([]float32{}, tone...), tone...)
	got, err := m.Infer(context.Background(), stereo, 1024, 2, 16000)
	require.NoError(t, err)

	assert.InDeltaSlice(t, mono, got, 1e-4)
}

func TestMFCCModule_InvalidInput(t *testing.T) {
	t.Parallel()

	m := testModule(t, 2)

	_, err := m.Infer(context.Background(), make([]float32, 10), 5, 1, 16000)
	require.Error(t, err, "sample count mismatch")

	_, err = m.Infer(context.Background(), nil, 0, 1, 16000)
	require.Error(t, err, "empty window")

	_, err = m.Infer(context.Background(), make([]float32, 10), 10, 1, 0)
	require.Error(t, err, "zero sample rate")
}

func TestMFCCModule_CancelledContext(t *testing.T) {
	t.Parallel()

	m := testModule(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Infer(ctx, make([]float32, 1024), 1024, 1, 16000)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewMFCCModule_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewMFCCModule(MFCCConfig{FFTSize: 512, HopSize: 128, MelBands: 4, Coefficients: 8})
	require.Error(t, err)

	_, err = NewMFCCModule(MFCCConfig{FFTSize: 0, HopSize: 128, MelBands: 23, Coefficients: 2})
	require.Error(t, err)
}

func TestNewMFCCLoader(t *testing.T) {
	t.Parallel()

	loader := NewMFCCLoader(MFCCConfig{FFTSize: 256, HopSize: 64, MelBands: 23, Coefficients: 2})
	m, err := loader.Load()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NoError(t, m.Close())
}

func TestMelFilterbank(t *testing.T) {
	t.Parallel()

	filters := melFilterbank(23, 512, 16000)
	require.Len(t, filters, 23)

	prevStart := -1
	for i, f := range filters {
		assert.NotEmpty(t, f.weights, "filter %d is empty", i)
		assert.GreaterOrEqual(t, f.start, prevStart, "filters must be ordered by frequency")
		prevStart = f.start
		for _, w := range f.weights {
			assert.Greater(t, w, 0.0)
			assert.LessOrEqual(t, w, 1.0)
		}
	}
}

func TestPowerToDB(t *testing.T) {
	t.Parallel()

	values := []float64{1, 1e-3, 0, 1e-12}
	powerToDB(values, 50)
	assert.InDelta(t, 0, values[0], 1e-9)
	assert.InDelta(t, -30, values[1], 1e-9)
	assert.InDelta(t, -50, values[2], 1e-9, "clamped to top_db below max")
	assert.InDelta(t, -50, values[3], 1e-9)

	unclamped := []float64{1, 0}
	powerToDB(unclamped, 0)
	assert.InDelta(t, -100, unclamped[1], 1e-9, "floored at amin")
}

func TestDCTMatrix_Orthonormal(t *testing.T) {
	t.Parallel()

	basis := dctMatrix(23, 23)
	for i := range basis {
		for j := range basis {
			var dot float64
			for k := range basis[i] {
				dot += basis[i][k] * basis[j][k]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
}
