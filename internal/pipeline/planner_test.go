package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/mfcc-go/internal/errors"
)

func TestPlan_LongRecording(t *testing.T) {
	t.Parallel()

	plan, err := Plan(1_000_000, 65536, 16384, 262144)
	require.NoError(t, err)

	assert.Equal(t, 49152, plan.Overlap)
	assert.Equal(t, 0, plan.Dropped)
	assert.Equal(t, []FrameRange{
		{From: 0, To: 311296},
		{From: 262144, To: 573440},
		{From: 524288, To: 835584},
		{From: 786432, To: 1_000_000},
	}, plan.Ranges)

	for i := 1; i < len(plan.Ranges); i++ {
		assert.Equal(t, 49152, plan.Ranges[i-1].To-plan.Ranges[i].From, "overlap before range %d", i)
	}
}

func TestPlan_SingleMacroChunk(t *testing.T) {
	t.Parallel()

	plan, err := Plan(1_000_000, 65536, 16384, 1<<22)
	require.NoError(t, err)
	assert.Equal(t, []FrameRange{{From: 0, To: 1_000_000}}, plan.Ranges)
}

func TestPlan_CoversWholeSource(t *testing.T) {
	t.Parallel()

	geometries := []struct{ window, hop, macro int }{
		{8, 4, 16},
		{8, 2, 8},
		{8, 6, 24},
		{4, 3, 6},
		{12, 3, 36},
		{16, 15, 30},
	}

	for _, g := range geometries {
		for total := 0; total <= 200; total++ {
			plan, err := Plan(total, g.window, g.hop, g.macro)
			require.NoError(t, err)

			if total <= g.hop {
				assert.Empty(t, plan.Ranges, "total=%d %+v", total, g)
				continue
			}

			require.NotEmpty(t, plan.Ranges, "total=%d %+v", total, g)
			assert.Equal(t, 0, plan.Ranges[0].From)
			assert.Equal(t, total, plan.Ranges[len(plan.Ranges)-1].To, "total=%d %+v", total, g)

			for i, r := range plan.Ranges {
				assert.Equal(t, i*g.macro, r.From, "range %d start, total=%d %+v", i, total, g)
				assert.LessOrEqual(t, r.To, total)
				assert.Greater(t, r.Len(), g.hop, "range %d too short, total=%d %+v", i, total, g)
				if i > 0 {
					prev := plan.Ranges[i-1]
					assert.Equal(t, g.window-g.hop, prev.To-r.From, "overlap before range %d, total=%d %+v", i, total, g)
				}
			}
		}
	}
}

func TestPlan_ShortTail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		total   int
		want    []FrameRange
		dropped int
	}{
		{"tail equal to hop is merged", 6 + 3, []FrameRange{{0, 9}}, 1},
		{"tail shorter than hop is merged", 6 + 2, []FrameRange{{0, 8}}, 1},
		{"tail longer than hop is emitted", 6 + 4, []FrameRange{{0, 7}, {6, 10}}, 0},
		{"whole source shorter than hop", 3, nil, 1},
		{"whole source one frame longer than hop", 4, []FrameRange{{0, 4}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			plan, err := Plan(tt.total, 4, 3, 6)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, plan.Ranges)
			} else {
				assert.Equal(t, tt.want, plan.Ranges)
			}
			assert.Equal(t, tt.dropped, plan.Dropped)
		})
	}
}

func TestPlan_EmptySource(t *testing.T) {
	t.Parallel()

	plan, err := Plan(0, 8, 4, 16)
	require.NoError(t, err)
	assert.Empty(t, plan.Ranges)
	assert.Equal(t, 0, plan.Len())
}

func TestPlan_InvalidGeometry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                      string
		total, window, hop, macro int
	}{
		{"hop equals window", 100, 8, 8, 16},
		{"hop exceeds window", 100, 8, 9, 18},
		{"zero hop", 100, 8, 0, 16},
		{"zero window", 100, 0, 0, 16},
		{"macro smaller than window", 100, 8, 4, 4},
		{"macro not on hop grid", 100, 8, 4, 18},
		{"negative total", -1, 8, 4, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Plan(tt.total, tt.window, tt.hop, tt.macro)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}
