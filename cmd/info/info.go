// Package info provides the info command.
package info

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/mfcc-go/internal/analysis"
	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/cpuspec"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/myaudio"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

type report struct {
	Source *sourceReport `yaml:"source,omitempty"`
	Plan   *planReport   `yaml:"plan,omitempty"`
	Host   hostReport    `yaml:"host"`
	Models []string      `yaml:"models"`
}

type sourceReport struct {
	Path        string `yaml:"path"`
	Format      string `yaml:"format"`
	SampleRate  int    `yaml:"sample_rate"`
	Channels    int    `yaml:"channels"`
	BitDepth    int    `yaml:"bit_depth"`
	TotalFrames int    `yaml:"total_frames"`
	Duration    string `yaml:"duration"`
}

type planReport struct {
	WindowSize      int    `yaml:"window_size"`
	HopSize         int    `yaml:"hop_size"`
	MacroWindowSize int    `yaml:"macro_window_size"`
	Overlap         int    `yaml:"overlap"`
	Windows         int    `yaml:"windows"`
	Dropped         int    `yaml:"dropped"`
	PeakMemoryBytes uint64 `yaml:"peak_memory_bytes"`
}

type hostReport struct {
	CPU                  string `yaml:"cpu"`
	PhysicalCores        int    `yaml:"physical_cores"`
	LogicalCores         int    `yaml:"logical_cores"`
	AVX2                 bool   `yaml:"avx2"`
	Threads              int    `yaml:"threads"`
	TotalMemoryBytes     uint64 `yaml:"total_memory_bytes,omitempty"`
	AvailableMemoryBytes uint64 `yaml:"available_memory_bytes,omitempty"`
}

// Command creates a command that prints the host capabilities and, given a
// file, its format and the window plan the current settings produce.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "info [file]",
		Short: "Show host capabilities and the window plan for a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := buildReport(settings, args)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("error encoding report: %w", err)
			}
			return enc.Close()
		},
	}
}

func buildReport(settings *conf.Settings, args []string) (*report, error) {
	cpu := cpuspec.GetCPUSpec()
	r := &report{
		Host: hostReport{
			CPU:           cpu.BrandName,
			PhysicalCores: cpu.PhysicalCores,
			LogicalCores:  cpu.LogicalCores,
			AVX2:          cpu.AVX2,
			Threads:       cpuspec.ResolveThreads(settings.Model.Threads),
		},
		Models: features.ModelTypes(),
	}
	if mem, err := analysis.CaptureMemoryInfo(); err == nil {
		r.Host.TotalMemoryBytes = mem.TotalBytes
		r.Host.AvailableMemoryBytes = mem.AvailableBytes
	}

	if len(args) == 0 {
		return r, nil
	}

	path := args[0]
	audioInfo, err := myaudio.GetAudioInfo(path)
	if err != nil {
		return nil, err
	}
	r.Source = &sourceReport{
		Path:        path,
		Format:      audioInfo.Format,
		SampleRate:  audioInfo.SampleRate,
		Channels:    audioInfo.NumChannels,
		BitDepth:    audioInfo.BitDepth,
		TotalFrames: audioInfo.TotalFrames,
		Duration:    analysis.FormatDuration(frameDuration(audioInfo)),
	}

	ext := &settings.Extraction
	plan, err := pipeline.Plan(audioInfo.TotalFrames, ext.WindowSize, ext.HopSize, ext.MacroWindowSize)
	if err != nil {
		return nil, err
	}
	channels := audioInfo.NumChannels
	if ext.SelectedChannel() != nil {
		channels = 1
	}
	r.Plan = &planReport{
		WindowSize:      plan.WindowSize,
		HopSize:         plan.HopSize,
		MacroWindowSize: plan.MacroWindowSize,
		Overlap:         plan.Overlap,
		Windows:         plan.Len(),
		Dropped:         plan.Dropped,
		PeakMemoryBytes: analysis.EstimatePeakMemory(&plan, audioInfo.NumChannels, channels, ext.QueueDepth),
	}
	return r, nil
}

func frameDuration(info myaudio.AudioInfo) time.Duration {
	if info.SampleRate <= 0 {
		return 0
	}
	return time.Duration(info.TotalFrames) * time.Second / time.Duration(info.SampleRate)
}
