package analysis

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/mfcc-go/internal/errors"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 second(s)"},
		{42 * time.Second, "42 second(s)"},
		{3*time.Minute + 5*time.Second, "3 minute(s) 5 second(s)"},
		{2*time.Hour + 7*time.Minute + 9*time.Second, "2 hour(s) 7 minute(s)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestEstimateTimeRemaining(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)

	assert.Equal(t, "(Estimating time...)", estimateTimeRemaining(start, now, 0))
	assert.Equal(t, "(Estimated time remaining: 1 minute(s) 30 second(s))", estimateTimeRemaining(start, now, 0.25))
	assert.Empty(t, estimateTimeRemaining(start, now, 1))
}

func TestProgressLineThrottles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	line := newProgressLine(&buf, "/tmp/rec.wav", 90*time.Second)
	clock := line.start
	line.now = func() time.Time { return clock }

	line.update(0)
	line.update(0.1) // same instant, dropped
	clock = clock.Add(progressInterval)
	line.update(0.5)
	line.update(1) // final update always drawn

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "Extracting"))
	assert.NotContains(t, out, " 10%")
	assert.Contains(t, out, " 50%")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "rec.wav [1m30s]")
}

func TestProgressLineDoneAndFail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	line := newProgressLine(&buf, "rec.wav", time.Second)
	line.done(12)
	assert.Contains(t, buf.String(), "12 rows extracted")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	buf.Reset()
	line.fail(errors.NewStd("read failed"))
	assert.Contains(t, buf.String(), "read failed")
}
