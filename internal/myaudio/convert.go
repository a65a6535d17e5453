package myaudio

import (
	"encoding/binary"
	"math"

	"github.com/tphakala/mfcc-go/internal/errors"
)

// getAudioDivisor returns the divisor that maps signed integer PCM of the
// given bit depth onto [-1, 1).
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio bit depth: %d", bitDepth).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("bit_depth", bitDepth).
			Build()
	}
}

// decodePCM converts little-endian PCM bytes into dst. It decodes
// len(data)/bytesPerSample samples; dst must have room for them.
// divisor comes from getAudioDivisor and is ignored for float data.
func decodePCM(dst []float32, data []byte, bitDepth int, isFloat bool, divisor float32) {
	switch {
	case isFloat && bitDepth == 32:
		for i := range len(data) / 4 {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case bitDepth == 16:
		for i := range len(data) / 2 {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / divisor
		}
	case bitDepth == 24:
		for i := range len(data) / 3 {
			b := data[i*3:]
			// shift into the top of an int32 to sign-extend
			sample := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			dst[i] = float32(sample) / divisor
		}
	case bitDepth == 32:
		for i := range len(data) / 4 {
			dst[i] = float32(int32(binary.LittleEndian.Uint32(data[i*4:]))) / divisor
		}
	}
}
