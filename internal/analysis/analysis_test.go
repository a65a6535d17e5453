package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/mqtt"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/output"
)

const (
	testSampleRate = 8000
	testFrames     = 3000
	// 1 + (3000-256)/64 MFCC frames
	testRows = 43
)

func testSettings(outputDir string) *conf.Settings {
	return &conf.Settings{
		Extraction: conf.ExtractionSettings{
			WindowSize:      256,
			HopSize:         64,
			MacroWindowSize: 1024,
			FeatureWidth:    2,
			Channel:         -1,
		},
		Model: conf.ModelSettings{
			Type:     conf.ModelTypeBuiltin,
			MelBands: 23,
			TopDB:    80,
		},
		Output: conf.OutputSettings{
			Path:   outputDir,
			Format: conf.OutputFormatJSON,
		},
	}
}

func writeTone(t *testing.T, path string) {
	t.Helper()
	samples := make([]float32, testFrames*2)
	for f := range testFrames {
		v := float32(0.5 * math.Sin(float64(f)*0.07))
		samples[2*f] = v
		samples[2*f+1] = 0.25 * v
	}
	require.NoError(t, myaudio.SaveWAV(path, samples, 2, testSampleRate, 16))
}

func readDocument(t *testing.T, path string) output.Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc output.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

// recordingClient is an in-memory mqtt.Client.
type recordingClient struct {
	mu     sync.Mutex
	topics []string
}

func (c *recordingClient) Connect(context.Context) error { return nil }
func (c *recordingClient) IsConnected() bool             { return true }
func (c *recordingClient) Disconnect()                   {}

func (c *recordingClient) Publish(_ context.Context, topic, _ string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return nil
}

func TestFileAnalysis(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "tone.wav")
	writeTone(t, input)
	outDir := filepath.Join(dir, "out") + string(os.PathSeparator)

	client := &recordingClient{}
	var progress bytes.Buffer
	err := FileAnalysis(t.Context(), testSettings(outDir), input, Options{
		Publisher: mqtt.NewPublisher(client, "mfcc", false, 0, nil),
		Progress:  &progress,
	})
	require.NoError(t, err)

	doc := readDocument(t, filepath.Join(outDir, "tone.json"))
	assert.Equal(t, input, doc.Source)
	assert.Equal(t, testSampleRate, doc.SampleRate)
	assert.Equal(t, 2, doc.Channels)
	assert.Equal(t, testFrames, doc.TotalFrames)
	require.Len(t, doc.Rows, testRows)
	for _, row := range doc.Rows {
		assert.Len(t, row, 2)
	}

	assert.Contains(t, progress.String(), "43 rows extracted")
	require.NotEmpty(t, client.topics)
	assert.Equal(t, "mfcc/result", client.topics[len(client.topics)-1])
	assert.Contains(t, client.topics, "mfcc/progress")
}

func TestFileAnalysisSelectedChannel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "tone.wav")
	writeTone(t, input)

	settings := testSettings(filepath.Join(dir, "features.yaml"))
	settings.Output.Format = conf.OutputFormatYAML
	settings.Extraction.Channel = 1
	require.NoError(t, FileAnalysis(t.Context(), settings, input, Options{}))

	data, err := os.ReadFile(filepath.Join(dir, "features.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "channels: 1")
}

func TestFileAnalysisInvalidInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.wav")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not RIFF data"), 0o600))

	tests := []struct {
		name     string
		path     string
		category errors.ErrorCategory
	}{
		{"missing", filepath.Join(dir, "missing.wav"), errors.CategoryFileIO},
		{"directory", dir, errors.CategoryValidation},
		{"empty", empty, errors.CategoryValidation},
		{"not audio", garbage, errors.CategoryAudio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := FileAnalysis(t.Context(), testSettings(t.TempDir()), tt.path, Options{})
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestFileAnalysisUnknownModelType(t *testing.T) {
	t.Parallel()

	settings := testSettings(t.TempDir())
	settings.Model.Type = "onnx"
	err := FileAnalysis(t.Context(), settings, "unused.wav", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestDirectoryAnalysis(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeTone(t, filepath.Join(in, "a.wav"))
	require.NoError(t, os.MkdirAll(filepath.Join(in, "nested"), 0o755))
	writeTone(t, filepath.Join(in, "nested", "b.wav"))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.wav"), []byte("nope"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("ignored"), 0o600))

	out := filepath.Join(t.TempDir(), "features")
	err := DirectoryAnalysis(t.Context(), testSettings(out), in, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.wav")
	assert.NotErrorIs(t, err, ErrAnalysisCanceled)

	for _, name := range []string{"a.wav.json", filepath.Join("nested", "b.wav.json")} {
		doc := readDocument(t, filepath.Join(out, name))
		assert.Len(t, doc.Rows, testRows, name)
	}
	_, statErr := os.Stat(filepath.Join(out, "broken.wav.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDirectoryAnalysisSameNameInSubdirectories(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	for _, day := range []string{"day1", "day2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(in, day), 0o755))
		writeTone(t, filepath.Join(in, day, "take.wav"))
	}

	out := filepath.Join(t.TempDir(), "features")
	require.NoError(t, DirectoryAnalysis(t.Context(), testSettings(out), in, Options{}))

	for _, day := range []string{"day1", "day2"} {
		doc := readDocument(t, filepath.Join(out, day, "take.wav.json"))
		assert.Equal(t, filepath.Join(in, day, "take.wav"), doc.Source)
		assert.Len(t, doc.Rows, testRows)
	}
	_, statErr := os.Stat(filepath.Join(out, "take.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDirectoryAnalysisCanceled(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	writeTone(t, filepath.Join(in, "a.wav"))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := DirectoryAnalysis(ctx, testSettings(t.TempDir()), in, Options{})
	assert.ErrorIs(t, err, ErrAnalysisCanceled)
}

func TestDirectoryAnalysisEmpty(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DirectoryAnalysis(t.Context(), testSettings(""), t.TempDir(), Options{}))
}

func TestFindAudioFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"c.FLAC", "a.wav", "b.mp3", "d.Wav"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	files, err := findAudioFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"a.wav", "c.FLAC", "d.Wav"}, names)

	_, err = findAudioFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestNewFeatureLoaderBuiltin(t *testing.T) {
	t.Parallel()

	loader, err := NewFeatureLoader(testSettings(""))
	require.NoError(t, err)
	module, err := loader.Load()
	require.NoError(t, err)
	assert.NoError(t, module.Close())
}

func TestTruncateFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short.wav", truncateFilename("/data/short.wav"))
	long := strings.Repeat("x", 40) + ".wav"
	got := truncateFilename("/data/" + long)
	assert.Len(t, got, 30)
	assert.True(t, strings.HasSuffix(got, "..."))
}
