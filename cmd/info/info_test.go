package info

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/myaudio"
)

func testSettings() *conf.Settings {
	return &conf.Settings{
		Extraction: conf.ExtractionSettings{
			WindowSize:      8,
			HopSize:         4,
			MacroWindowSize: 16,
			FeatureWidth:    2,
			Channel:         -1,
		},
	}
}

func TestBuildReport_HostOnly(t *testing.T) {
	t.Parallel()

	r, err := buildReport(testSettings(), nil)
	require.NoError(t, err)
	assert.Nil(t, r.Source)
	assert.Nil(t, r.Plan)
	assert.Contains(t, r.Models, conf.ModelTypeBuiltin)
	assert.Positive(t, r.Host.Threads)
}

func TestBuildReport_WithFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]float32, 160*2)
	require.NoError(t, myaudio.SaveWAV(path, samples, 2, 8000, 16))

	r, err := buildReport(testSettings(), []string{path})
	require.NoError(t, err)
	require.NotNil(t, r.Source)
	require.NotNil(t, r.Plan)

	assert.Equal(t, 2, r.Source.Channels)
	assert.Equal(t, 160, r.Source.TotalFrames)
	assert.Equal(t, 10, r.Plan.Windows)
	assert.Equal(t, 4, r.Plan.Overlap)
	assert.Positive(t, r.Plan.PeakMemoryBytes)
}

func TestBuildReport_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := buildReport(testSettings(), []string{filepath.Join(t.TempDir(), "missing.wav")})
	require.Error(t, err)
}
