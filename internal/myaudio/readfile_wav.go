package myaudio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-audio/wav"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
)

// wavSource reads frames from the PCM data chunk with ReadAt, so any
// frame range can be read in any order.
type wavSource struct {
	mu         sync.Mutex
	file       *os.File
	info       AudioInfo
	dataOffset int64
	blockAlign int
	isFloat    bool
	divisor    float32
	closed     bool
}

func newWAVSource(file *os.File) (*wavSource, error) {
	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, wavError(file, "invalid WAV file format", nil)
	}

	bitDepth := int(decoder.BitDepth)
	numChannels := int(decoder.NumChans)
	isFloat, err := checkWAVFormat(file)
	if err != nil {
		return nil, err
	}

	var divisor float32 = 1
	if isFloat {
		if bitDepth != 32 {
			return nil, wavError(file, fmt.Sprintf("unsupported float bit depth: %d", bitDepth), nil)
		}
	} else if divisor, err = getAudioDivisor(bitDepth); err != nil {
		return nil, err
	}

	if err := decoder.FwdToPCM(); err != nil {
		return nil, wavError(file, "WAV file has no PCM data chunk", err)
	}

	dataOffset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, wavError(file, "error locating PCM data", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, wavError(file, "error reading file size", err)
	}

	pcmLen := decoder.PCMLen()
	available := fileInfo.Size() - dataOffset
	if pcmLen <= 0 || pcmLen > available {
		// Recorders that crash mid-write leave the data size unset or too large
		GetLogger().Warn("WAV data chunk size does not match file size, using file size",
			logger.String("path", file.Name()),
			logger.Int64("declared_bytes", pcmLen),
			logger.Int64("available_bytes", available))
		pcmLen = available
	}

	blockAlign := bitDepth / 8 * numChannels

	return &wavSource{
		file: file,
		info: AudioInfo{
			SampleRate:  int(decoder.SampleRate),
			TotalFrames: int(pcmLen / int64(blockAlign)),
			NumChannels: numChannels,
			BitDepth:    bitDepth,
			Format:      FormatWAV,
		},
		dataOffset: dataOffset,
		blockAlign: blockAlign,
		isFloat:    isFloat,
		divisor:    divisor,
	}, nil
}

func (s *wavSource) Info() AudioInfo {
	return s.info
}

// ReadFrames returns interleaved samples for frames [start, start+count).
func (s *wavSource) ReadFrames(start, count int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if err := checkFrameRange(s.info, start, count); err != nil {
		return nil, err
	}

	buf := make([]byte, count*s.blockAlign)
	n, err := s.file.ReadAt(buf, s.dataOffset+int64(start)*int64(s.blockAlign))
	if n < len(buf) {
		if err == nil || err == io.EOF {
			err = ErrShortRead
		}
		return nil, errors.New(fmt.Errorf("error reading WAV frames: %w", err)).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "read_frames").
			Context("start_frame", start).
			Context("frame_count", count).
			Context("bytes_read", n).
			Build()
	}

	samples := make([]float32, count*s.info.NumChannels)
	decodePCM(samples, buf, s.info.BitDepth, s.isFloat, s.divisor)
	return samples, nil
}

func (s *wavSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func wavError(file *os.File, msg string, cause error) error {
	err := errors.NewStd(msg)
	if cause != nil {
		err = fmt.Errorf("%s: %w", msg, cause)
	}
	var size int64
	if fi, statErr := file.Stat(); statErr == nil {
		size = fi.Size()
	}
	return errors.New(err).
		Component("myaudio").
		Category(errors.CategoryAudio).
		FileContext(file.Name(), size).
		Context("operation", "read_wav_header").
		Build()
}

func wavValidationError(file *os.File, msg string) error {
	return errors.New(errors.NewStd(msg)).
		Component("myaudio").
		Category(errors.CategoryValidation).
		Context("file_path", file.Name()).
		Context("operation", "read_wav_header").
		Build()
}
