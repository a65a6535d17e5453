package myaudio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WAVE format tags
const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatExtensible = 0xFFFE
)

// Offset of the SubFormat GUID inside a WAVE_FORMAT_EXTENSIBLE fmt chunk.
// Its first two bytes hold the effective format tag.
const wavSubFormatOffset = 24

// readWAVFormatTag returns the effective format tag of a WAV file, resolving
// WAVE_FORMAT_EXTENSIBLE to its SubFormat tag.
func readWAVFormatTag(r io.ReaderAt) (uint16, error) {
	var header [12]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return 0, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	offset := int64(len(header))
	var chunk [8]byte
	for {
		if _, err := r.ReadAt(chunk[:], offset); err != nil {
			return 0, fmt.Errorf("fmt chunk not found: %w", err)
		}
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		if string(chunk[0:4]) != "fmt " {
			// chunks are word aligned
			offset += 8 + size + size%2
			continue
		}

		if size < 16 {
			return 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
		}
		body := make([]byte, size)
		if _, err := r.ReadAt(body, offset+8); err != nil {
			return 0, fmt.Errorf("reading fmt chunk: %w", err)
		}
		tag := binary.LittleEndian.Uint16(body[0:2])
		if tag != wavFormatExtensible {
			return tag, nil
		}
		if size < wavSubFormatOffset+16 {
			return 0, fmt.Errorf("extensible fmt chunk too short: %d bytes", size)
		}
		return binary.LittleEndian.Uint16(body[wavSubFormatOffset : wavSubFormatOffset+2]), nil
	}
}

// checkWAVFormat resolves the sample encoding of file. Only integer PCM and
// IEEE float are supported.
func checkWAVFormat(file *os.File) (isFloat bool, err error) {
	tag, err := readWAVFormatTag(file)
	if err != nil {
		return false, wavError(file, "invalid WAV fmt chunk", err)
	}
	switch tag {
	case wavFormatPCM:
		return false, nil
	case wavFormatIEEEFloat:
		return true, nil
	default:
		return false, wavValidationError(file, fmt.Sprintf("unsupported WAV format tag 0x%04X", tag))
	}
}
