package myaudio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SaveWAV writes interleaved float samples in [-1, 1] as integer PCM WAV.
func SaveWAV(filePath string, samples []float32, numChannels, sampleRate, bitDepth int) error {
	divisor, err := getAudioDivisor(bitDepth)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	outFile, err := os.Create(filePath) //nolint:gosec // caller chooses the output path
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = outFile.Close() }()

	enc := wav.NewEncoder(outFile, sampleRate, bitDepth, numChannels, 1)

	maxValue := float64(divisor) - 1
	intSamples := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * float64(divisor))
		intSamples[i] = int(max(-float64(divisor), min(maxValue, v)))
	}

	buf := &audio.IntBuffer{
		Data:           intSamples,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: numChannels},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}

	// Close finalizes the RIFF header sizes
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}
