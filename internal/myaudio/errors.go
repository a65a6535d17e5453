package myaudio

import (
	"github.com/tphakala/mfcc-go/internal/errors"
)

// Error sentinel values for common myaudio errors. They are plain errors so
// that errors.Is matches them exactly; call sites wrap them with context.
var (
	// ErrSourceClosed is returned when reading from a closed source
	ErrSourceClosed = errors.NewStd("audio source is closed")

	// ErrBackwardRead is returned when a forward-only source is asked for
	// frames it has already discarded
	ErrBackwardRead = errors.NewStd("forward-only audio source cannot read backwards")

	// ErrUnknownLength is returned for streams that do not declare their length
	ErrUnknownLength = errors.NewStd("audio stream does not declare its total length")

	// ErrShortRead is returned when the source ends before the requested frames
	ErrShortRead = errors.NewStd("audio source ended before requested frames")
)
