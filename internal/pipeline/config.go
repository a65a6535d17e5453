package pipeline

import (
	"time"

	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/errors"
)

// Config controls one extraction.
type Config struct {
	WindowSize      int  // frames per analysis window
	HopSize         int  // stride between analysis windows
	MacroWindowSize int  // frames per macro-chunk before the overlap tail
	FeatureWidth    int  // values per feature row
	Channel         *int // nil extracts all channels channel-major

	// QueueDepth bounds how many windows the producer may read ahead.
	// Zero sizes the hand-off queue to the whole plan so reads never wait.
	QueueDepth int
	// MaxRetries is the number of extra attempts per window for reads and
	// inference. Zero fails on the first error.
	MaxRetries int
	// InferTimeout limits a single inference call. Zero means no limit.
	InferTimeout time.Duration
}

// DefaultConfig returns the configuration of the reference MFCC model:
// 2^16 frame windows with a quarter-window hop and two coefficients.
func DefaultConfig() Config {
	return Config{
		WindowSize:      conf.DefaultWindowSize,
		HopSize:         conf.DefaultHopSize,
		MacroWindowSize: conf.DefaultMacroWindowSize,
		FeatureWidth:    conf.DefaultFeatureWidth,
	}
}

// ConfigFromSettings converts extraction settings to a pipeline Config.
func ConfigFromSettings(s *conf.ExtractionSettings) Config {
	return Config{
		WindowSize:      s.WindowSize,
		HopSize:         s.HopSize,
		MacroWindowSize: s.MacroWindowSize,
		FeatureWidth:    s.FeatureWidth,
		Channel:         s.SelectedChannel(),
		QueueDepth:      s.QueueDepth,
		MaxRetries:      s.MaxRetries,
		InferTimeout:    s.InferTimeout,
	}
}

// Overlap returns the number of frames shared by consecutive windows.
func (c *Config) Overlap() int {
	return c.WindowSize - c.HopSize
}

// Validate checks the configuration before any audio is read.
func (c *Config) Validate() error {
	settings := conf.ExtractionSettings{
		WindowSize:      c.WindowSize,
		HopSize:         c.HopSize,
		MacroWindowSize: c.MacroWindowSize,
		FeatureWidth:    c.FeatureWidth,
		Channel:         -1,
		QueueDepth:      c.QueueDepth,
		MaxRetries:      c.MaxRetries,
		InferTimeout:    c.InferTimeout,
	}
	if c.Channel != nil {
		if *c.Channel < 0 {
			return wrapError(ErrChannelOutOfRange, nil, "channel %d is negative", *c.Channel).
				Category(errors.CategoryValidation).
				Context("channel", *c.Channel).
				Build()
		}
		settings.Channel = *c.Channel
	}
	if err := conf.ValidateExtractionSettings(&settings); err != nil {
		return wrapError(ErrConfig, err, "window %d, hop %d, macro %d, width %d",
			c.WindowSize, c.HopSize, c.MacroWindowSize, c.FeatureWidth).
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}
