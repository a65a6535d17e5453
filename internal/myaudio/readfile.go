package myaudio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
)

// Supported container formats
const (
	FormatWAV    = "wav"
	FormatFLAC   = "flac"
	FormatMemory = "memory"
)

// AudioInfo describes a sample source.
type AudioInfo struct {
	SampleRate  int
	TotalFrames int
	NumChannels int
	BitDepth    int
	Format      string
}

// Source yields interleaved float32 samples by frame range.
//
// ReadFrames returns exactly count*NumChannels samples for frames
// [start, start+count) or an error. Sources are used by one goroutine at a time.
type Source interface {
	Info() AudioInfo
	ReadFrames(start, count int) ([]float32, error)
	Close() error
}

// Open opens an audio file and returns a Source for its format.
func Open(path string) (Source, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case FormatWAV, FormatFLAC:
	default:
		return nil, errors.Newf("unsupported audio format: %q", filepath.Ext(path)).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("operation", "open_audio_file").
			Context("file_path", path).
			Build()
	}

	file, err := os.Open(path) //nolint:gosec // path is supplied by the user on purpose
	if err != nil {
		return nil, errors.New(fmt.Errorf("error opening audio file: %w", err)).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "open_audio_file").
			Context("file_path", path).
			Build()
	}

	var src Source
	switch ext {
	case FormatWAV:
		src, err = newWAVSource(file)
	case FormatFLAC:
		src, err = newFLACSource(file)
	}
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	info := src.Info()
	GetLogger().Debug("audio source opened",
		logger.String("path", path),
		logger.String("format", info.Format),
		logger.Int("sample_rate", info.SampleRate),
		logger.Int("channels", info.NumChannels),
		logger.Int("bit_depth", info.BitDepth),
		logger.Int("total_frames", info.TotalFrames))

	return src, nil
}

// GetAudioInfo returns the metadata of an audio file without keeping it open.
func GetAudioInfo(path string) (AudioInfo, error) {
	src, err := Open(path)
	if err != nil {
		return AudioInfo{}, err
	}
	defer func() { _ = src.Close() }()
	return src.Info(), nil
}

// checkFrameRange validates a ReadFrames request against the source length.
func checkFrameRange(info AudioInfo, start, count int) error {
	if start < 0 || count <= 0 || start+count > info.TotalFrames {
		return errors.Newf("frame range [%d, %d) outside source of %d frames", start, start+count, info.TotalFrames).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "read_frames").
			Context("format", info.Format).
			Build()
	}
	return nil
}
