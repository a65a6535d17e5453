package analysis

import (
	"testing"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

func TestEstimatePeakMemory(t *testing.T) {
	t.Parallel()

	// 10 ranges, the longest 20 frames
	plan, err := pipeline.Plan(160, 8, 4, 16)
	require.NoError(t, err)
	const frameBytes = 20 * 4

	tests := []struct {
		name           string
		sourceChannels int
		windowChannels int
		depth          int
		want           uint64
	}{
		{"unbounded queue", 2, 2, 0, 11*2*frameBytes + 2*frameBytes},
		{"depth one", 2, 2, 1, 3*2*frameBytes + 2*frameBytes},
		{"depth beyond plan", 2, 2, 50, 11*2*frameBytes + 2*frameBytes},
		// the read buffer still holds every source channel
		{"one of six channels", 6, 1, 1, 3*frameBytes + 6*frameBytes},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimatePeakMemory(&plan, tt.sourceChannels, tt.windowChannels, tt.depth), tt.name)
	}

	empty, err := pipeline.Plan(0, 8, 4, 16)
	require.NoError(t, err)
	assert.Zero(t, EstimatePeakMemory(&empty, 2, 2, 0))
}

//nolint:paralleltest // replaces the package level memory probe
func TestCheckMemory(t *testing.T) {
	orig := virtualMemory
	t.Cleanup(func() { virtualMemory = orig })

	virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 8 << 30, Available: 1 << 30, UsedPercent: 87.5}, nil
	}
	info, err := CaptureMemoryInfo()
	require.NoError(t, err)
	assert.Equal(t, MemoryInfo{TotalBytes: 8 << 30, AvailableBytes: 1 << 30, UsedPercent: 87.5}, info)
	assert.True(t, checkMemory(1<<20))
	assert.False(t, checkMemory(2<<30))

	virtualMemory = func() (*mem.VirtualMemoryStat, error) {
		return nil, errors.NewStd("no /proc")
	}
	_, err = CaptureMemoryInfo()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySystem))
	assert.True(t, checkMemory(1<<40))
}
