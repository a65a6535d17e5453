package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/observability"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// stubModule emits one two-value row per window. When block is set, Infer
// waits for cancellation.
type stubModule struct {
	block bool
}

func (m *stubModule) Infer(ctx context.Context, samples []float32, frameCount, _, _ int) ([]float32, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []float32{samples[0], float32(frameCount)}, nil
}

func (m *stubModule) Close() error { return nil }

func testSettings(maxJobs int) *conf.Settings {
	return &conf.Settings{
		Extraction: conf.ExtractionSettings{
			WindowSize:      8,
			HopSize:         4,
			MacroWindowSize: 16,
			FeatureWidth:    2,
			Channel:         -1,
		},
		Server: conf.ServerSettings{
			Listen:  "127.0.0.1:0",
			JobTTL:  time.Minute,
			MaxJobs: maxJobs,
		},
	}
}

// newTestServer returns a server whose sources are 160 frame mono ramps,
// whatever the requested path.
func newTestServer(t *testing.T, module *stubModule, maxJobs int, opts ...ServerOption) *Server {
	t.Helper()

	extractor := pipeline.New(
		features.LoaderFunc(func() (features.Module, error) { return module, nil }),
		pipeline.WithSourceOpener(func(string) (myaudio.Source, error) {
			samples := make([]float32, 160)
			for i := range samples {
				samples[i] = float32(i)
			}
			return myaudio.NewMemorySource(samples, 1, 8000)
		}),
	)

	s, err := New(testSettings(maxJobs), extractor, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Jobs().Shutdown()
		assert.NoError(t, extractor.Close())
	})
	return s
}

func audioPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, os.WriteFile(path, []byte("placeholder"), 0o600))
	return path
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func waitForStatus(t *testing.T, s *Server, id string, want JobStatus) JobView {
	t.Helper()
	var view JobView
	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, "/api/v1/jobs/"+id, "")
		if rec.Code != http.StatusOK {
			return false
		}
		view = decode[JobView](t, rec)
		return view.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return view
}

func TestCreateJobCompletes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubModule{}, 2)
	path := audioPath(t)

	rec := do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+path+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	created := decode[JobView](t, rec)
	assert.Equal(t, "/api/v1/jobs/"+created.ID, rec.Header().Get("Location"))
	assert.Equal(t, path, created.Source)

	view := waitForStatus(t, s, created.ID, JobCompleted)
	assert.InDelta(t, 1.0, view.Progress, 1e-9)
	assert.Equal(t, 10, view.RowCount)
	assert.Empty(t, view.Rows, "rows are only included on request")
	assert.NotNil(t, view.FinishedAt)

	rec = do(t, s, http.MethodGet, "/api/v1/jobs/"+created.ID+"?rows=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	withRows := decode[JobView](t, rec)
	require.Len(t, withRows.Rows, 10)
	// rows arrive in plan order: window i starts at frame 16*i
	for i, row := range withRows.Rows {
		assert.InDelta(t, float32(16*i), row[0], 0, "row %d", i)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/jobs/"+created.ID+"/rows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[struct {
		ID   string                `json:"id"`
		Rows []pipeline.FeatureRow `json:"rows"`
	}](t, rec)
	assert.Equal(t, created.ID, rows.ID)
	assert.Len(t, rows.Rows, 10)

	rec = do(t, s, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Jobs []JobView `json:"jobs"`
	}](t, rec)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, created.ID, list.Jobs[0].ID)
}

func TestCreateJobChannelOutOfRange(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubModule{}, 2)
	rec := do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+audioPath(t)+`","channel":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	view := waitForStatus(t, s, decode[JobView](t, rec).ID, JobFailed)
	assert.Equal(t, "channel_out_of_range", view.Kind)
	assert.NotEmpty(t, view.Error)
	assert.Zero(t, view.RowCount)
}

func TestCreateJobValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubModule{}, 2)
	dir := t.TempDir()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"path":`},
		{"missing path", `{}`},
		{"missing file", `{"path":"` + filepath.Join(dir, "nope.wav") + `"}`},
		{"directory", `{"path":"` + dir + `"}`},
		{"negative queue depth", `{"path":"` + audioPath(t) + `","queue_depth":-1,"max_retries":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/jobs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Len(t, resp.CorrelationID, 8)
		})
	}
	assert.Empty(t, s.Jobs().List())
}

func TestJobLimitAndCancel(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubModule{block: true}, 1)
	path := audioPath(t)

	rec := do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+path+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[JobView](t, rec).ID

	rec = do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+path+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/jobs/"+id+"/rows", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/jobs/"+id, "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	view := waitForStatus(t, s, id, JobCancelled)
	assert.Equal(t, "cancelled", view.Kind)
	require.Eventually(t, func() bool { return s.Jobs().Running() == 0 }, 5*time.Second, 10*time.Millisecond)

	rec = do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+path+`"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code, "slot is free again")
}

func TestUnknownJob(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubModule{}, 1)
	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/api/v1/jobs/missing"},
		{http.MethodGet, "/api/v1/jobs/missing/rows"},
		{http.MethodDelete, "/api/v1/jobs/missing"},
	} {
		rec := do(t, s, tc.method, tc.target, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.method+" "+tc.target)
	}

	_, err := s.Jobs().Get("missing", false)
	require.ErrorIs(t, err, ErrJobNotFound)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
	_, err = s.Jobs().Cancel("missing")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestRunListenFailure(t *testing.T) {
	t.Parallel()

	extractor := pipeline.New(nil)
	settings := testSettings(1)
	settings.Server.Listen = "127.0.0.1:-1"
	s, err := New(settings, extractor)
	require.NoError(t, err)

	err = s.Run(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP), "got %v", err)
}

func TestShutdownRejectsJobs(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &stubModule{block: true}, 2)
	path := audioPath(t)
	rec := do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+path+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[JobView](t, rec).ID

	s.Jobs().Shutdown()
	view, err := s.Jobs().Get(id, false)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, view.Status)

	rec = do(t, s, http.MethodPost, "/api/v1/jobs", `{"path":"`+path+`"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, &stubModule{}, 1, WithMetrics(m))

	rec := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])

	rec = do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen address", func(c *Config) { c.Listen = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"zero ttl", func(c *Config) { c.JobTTL = 0 }},
		{"zero max jobs", func(c *Config) { c.MaxJobs = 0 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		assert.Error(t, cfg.Validate(), tt.name)
	}
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(testSettings(5))
	assert.Equal(t, "127.0.0.1:0", cfg.Listen)
	assert.Equal(t, time.Minute, cfg.JobTTL)
	assert.Equal(t, 5, cfg.MaxJobs)

	cfg = ConfigFromSettings(&conf.Settings{})
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
	assert.Equal(t, DefaultMaxJobs, cfg.MaxJobs)
}
