package analysis

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// progressInterval limits how often the progress line is redrawn.
const progressInterval = 100 * time.Millisecond

// progressLine redraws a single terminal line with extraction progress.
type progressLine struct {
	w        io.Writer
	filename string
	duration time.Duration
	start    time.Time
	now      func() time.Time

	mu       sync.Mutex
	lastDraw time.Time
}

func newProgressLine(w io.Writer, path string, duration time.Duration) *progressLine {
	return &progressLine{
		w:        w,
		filename: truncateFilename(path),
		duration: duration,
		start:    time.Now(),
		now:      time.Now,
	}
}

// update draws fraction unless the last draw was too recent. The final
// update is always drawn.
func (p *progressLine) update(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if fraction < 1 && now.Sub(p.lastDraw) < progressInterval {
		return
	}
	p.lastDraw = now

	_, _ = fmt.Fprintf(p.w, "\r\033[K\033[37m📄 %s [%s]\033[0m | \033[33m🔍 Extracting %3.0f%%\033[0m %s",
		p.filename,
		p.duration.Round(time.Second),
		fraction*100,
		estimateTimeRemaining(p.start, now, fraction))
}

// done replaces the progress line with a completion summary.
func (p *progressLine) done(rows int) {
	_, _ = fmt.Fprintf(p.w, "\r\033[K\033[37m📄 %s [%s]\033[0m | \033[32m✅ %d rows extracted in %s\033[0m\n",
		p.filename,
		p.duration.Round(time.Second),
		rows,
		FormatDuration(p.now().Sub(p.start)))
}

// fail terminates the progress line after an error.
func (p *progressLine) fail(err error) {
	_, _ = fmt.Fprintf(p.w, "\r\033[K\033[37m📄 %s\033[0m | \033[31m❌ %v\033[0m\n", p.filename, err)
}

// FormatDuration formats d for humans.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours >= 1:
		return fmt.Sprintf("%d hour(s) %d minute(s)", hours, minutes)
	case minutes >= 1:
		return fmt.Sprintf("%d minute(s) %d second(s)", minutes, seconds)
	default:
		return fmt.Sprintf("%d second(s)", seconds)
	}
}

// estimateTimeRemaining extrapolates the time left from the completed fraction.
func estimateTimeRemaining(start, now time.Time, fraction float64) string {
	if fraction <= 0 {
		return "(Estimating time...)"
	}
	if fraction >= 1 {
		return ""
	}
	elapsed := now.Sub(start)
	remaining := time.Duration(float64(elapsed)/fraction) - elapsed
	return fmt.Sprintf("(Estimated time remaining: %s)", FormatDuration(remaining))
}

// truncateFilename truncates the filename to 30 characters if it's longer.
func truncateFilename(path string) string {
	filename := filepath.Base(path)
	if len(filename) > 30 {
		return filename[:27] + "..."
	}
	return filename
}
