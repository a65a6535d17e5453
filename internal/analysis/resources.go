package analysis

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

const bytesPerSample = 4

// virtualMemory is replaced in tests.
var virtualMemory = mem.VirtualMemory

// MemoryInfo is a snapshot of system memory.
type MemoryInfo struct {
	TotalBytes     uint64
	AvailableBytes uint64
	UsedPercent    float64
}

// CaptureMemoryInfo reads the current system memory statistics.
func CaptureMemoryInfo() (MemoryInfo, error) {
	vm, err := virtualMemory()
	if err != nil {
		return MemoryInfo{}, errors.New(fmt.Errorf("failed to get virtual memory stats: %w", err)).
			Component("analysis").
			Category(errors.CategorySystem).
			Build()
	}
	return MemoryInfo{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedPercent:    vm.UsedPercent,
	}, nil
}

// EstimatePeakMemory returns the sample bytes an extraction of plan may hold
// at once: every queued window plus the window being read and the window
// being processed, each with windowChannels channels, and the interleaved
// read buffer holding all sourceChannels.
func EstimatePeakMemory(plan *pipeline.WindowPlan, sourceChannels, windowChannels, queueDepth int) uint64 {
	if plan.Len() == 0 || sourceChannels <= 0 || windowChannels <= 0 {
		return 0
	}
	longest := 0
	for _, r := range plan.Ranges {
		longest = max(longest, r.Len())
	}
	depth := queueDepth
	if depth <= 0 || depth > plan.Len() {
		depth = plan.Len()
	}
	inFlight := min(depth+2, plan.Len()+1)
	perWindow := uint64(longest) * uint64(windowChannels) * bytesPerSample
	readBuffer := uint64(longest) * uint64(sourceChannels) * bytesPerSample
	return uint64(inFlight)*perWindow + readBuffer
}

// checkMemory warns when the estimated peak exceeds available memory.
// It reports whether the estimate fits.
func checkMemory(required uint64) bool {
	info, err := CaptureMemoryInfo()
	if err != nil {
		GetLogger().Debug("memory check skipped", logger.Error(err))
		return true
	}
	if required <= info.AvailableBytes {
		return true
	}
	GetLogger().Warn("extraction may exceed available memory, consider a smaller extraction.queuedepth",
		logger.Any("required_bytes", required),
		logger.Any("available_bytes", info.AvailableBytes))
	return false
}
