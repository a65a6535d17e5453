package pipeline

import "github.com/tphakala/mfcc-go/internal/logger"

// FrameRange is a half-open frame interval [From, To).
type FrameRange struct {
	From int
	To   int
}

// Len returns the number of frames in the range.
func (r FrameRange) Len() int {
	return r.To - r.From
}

// WindowPlan is the ordered list of macro-chunk ranges read from a source.
//
// Consecutive ranges share Overlap frames so that analysis windows at a
// chunk boundary see continuous audio. The last range ends at TotalFrames.
type WindowPlan struct {
	TotalFrames     int
	WindowSize      int
	HopSize         int
	MacroWindowSize int
	Overlap         int
	Ranges          []FrameRange
	// Dropped counts trailing chunks of at most HopSize frames that were
	// not emitted as ranges of their own.
	Dropped int
}

// Len returns the number of planned ranges.
func (p *WindowPlan) Len() int {
	return len(p.Ranges)
}

// Plan partitions totalFrames into overlapping macro-chunks.
//
// Chunk i starts at i*macroWindowSize and reads windowSize-hopSize extra
// frames past its nominal end, clamped to totalFrames. A chunk that reaches
// totalFrames is the last one. A final chunk no longer than hopSize is not
// emitted: it is merged into the preceding range, or dropped when there is
// none.
func Plan(totalFrames, windowSize, hopSize, macroWindowSize int) (WindowPlan, error) {
	switch {
	case totalFrames < 0:
		return WindowPlan{}, configError("total frames %d is negative", totalFrames)
	case windowSize <= 0:
		return WindowPlan{}, configError("window size %d must be positive", windowSize)
	case hopSize <= 0 || hopSize >= windowSize:
		return WindowPlan{}, configError("hop size %d must be in (0, %d)", hopSize, windowSize)
	case macroWindowSize < windowSize:
		return WindowPlan{}, configError("macro window size %d is smaller than window size %d",
			macroWindowSize, windowSize)
	case macroWindowSize%hopSize != 0:
		return WindowPlan{}, configError("macro window size %d is not a multiple of hop size %d",
			macroWindowSize, hopSize)
	}

	plan := WindowPlan{
		TotalFrames:     totalFrames,
		WindowSize:      windowSize,
		HopSize:         hopSize,
		MacroWindowSize: macroWindowSize,
		Overlap:         windowSize - hopSize,
	}
	if totalFrames == 0 {
		return plan, nil
	}

	plan.Ranges = make([]FrameRange, 0, (totalFrames+macroWindowSize-1)/macroWindowSize)
	for from := 0; from < totalFrames; from += macroWindowSize {
		to := min(from+macroWindowSize+plan.Overlap, totalFrames)

		if to-from > hopSize {
			plan.Ranges = append(plan.Ranges, FrameRange{From: from, To: to})
		} else {
			plan.Dropped++
			merged := len(plan.Ranges) > 0
			if merged {
				plan.Ranges[len(plan.Ranges)-1].To = to
			}
			GetLogger().Debug("short trailing chunk not emitted",
				logger.Int("from", from),
				logger.Int("to", to),
				logger.Int("hop_size", hopSize),
				logger.Bool("merged", merged))
		}

		if to == totalFrames {
			break
		}
	}

	return plan, nil
}
