package myaudio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tphakala/flac"
	"github.com/tphakala/mfcc-go/internal/errors"
)

// flacSource decodes FLAC frames sequentially. Frames before the most recent
// read start are discarded, so reads must not move backwards; overlapping
// windows are served from the carry buffer.
type flacSource struct {
	mu       sync.Mutex
	file     *os.File
	decoder  *flac.Decoder
	info     AudioInfo
	divisor  float32
	bufStart int       // frame index of buf[0]
	buf      []float32 // interleaved decoded samples not yet discarded
	closed   bool
}

func newFLACSource(file *os.File) (*flacSource, error) {
	decoder, err := flac.NewDecoder(file)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid FLAC file: %w", err)).
			Component("myaudio").
			Category(errors.CategoryAudio).
			Context("operation", "read_flac_header").
			Context("file_path", file.Name()).
			Build()
	}

	divisor, err := getAudioDivisor(decoder.BitsPerSample)
	if err != nil {
		return nil, err
	}

	if decoder.TotalSamples == 0 {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnknownLength, file.Name())).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("operation", "read_flac_header").
			Build()
	}

	return &flacSource{
		file:    file,
		decoder: decoder,
		info: AudioInfo{
			SampleRate:  decoder.SampleRate,
			TotalFrames: int(decoder.TotalSamples),
			NumChannels: decoder.NChannels,
			BitDepth:    decoder.BitsPerSample,
			Format:      FormatFLAC,
		},
		divisor: divisor,
	}, nil
}

func (s *flacSource) Info() AudioInfo {
	return s.info
}

// ReadFrames returns interleaved samples for frames [start, start+count).
// start must not be smaller than the start of the previous read.
func (s *flacSource) ReadFrames(start, count int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if err := checkFrameRange(s.info, start, count); err != nil {
		return nil, err
	}
	if start < s.bufStart {
		return nil, errors.New(fmt.Errorf("%w: frame %d already discarded, buffer starts at %d",
			ErrBackwardRead, start, s.bufStart)).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "read_frames").
			Build()
	}

	ch := s.info.NumChannels
	s.discardBefore(start)

	for s.bufStart+len(s.buf)/ch < start+count {
		if err := s.decodeNext(); err != nil {
			return nil, errors.New(fmt.Errorf("error decoding FLAC frames: %w", err)).
				Component("myaudio").
				Category(errors.CategoryFileIO).
				Context("operation", "read_frames").
				Context("start_frame", start).
				Context("frame_count", count).
				Build()
		}
		s.discardBefore(start)
	}

	offset := (start - s.bufStart) * ch
	out := make([]float32, count*ch)
	copy(out, s.buf[offset:offset+count*ch])
	return out, nil
}

// discardBefore drops buffered frames that precede frame.
func (s *flacSource) discardBefore(frame int) {
	ch := s.info.NumChannels
	drop := min(frame-s.bufStart, len(s.buf)/ch)
	if drop <= 0 {
		return
	}
	n := copy(s.buf, s.buf[drop*ch:])
	s.buf = s.buf[:n]
	s.bufStart += drop
}

// decodeNext appends the next FLAC frame to the carry buffer.
func (s *flacSource) decodeNext() error {
	frame, err := s.decoder.Next()
	if err == io.EOF {
		return ErrShortRead
	} else if err != nil {
		return err
	}

	bytesPerSample := s.info.BitDepth / 8
	n := len(frame) / bytesPerSample
	n -= n % s.info.NumChannels

	old := len(s.buf)
	s.buf = append(s.buf, make([]float32, n)...)
	decodePCM(s.buf[old:], frame[:n*bytesPerSample], s.info.BitDepth, false, s.divisor)
	return nil
}

func (s *flacSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.buf = nil
	return s.file.Close()
}
