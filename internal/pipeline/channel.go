package pipeline

import "github.com/tphakala/mfcc-go/internal/errors"

// ExtractChannels converts an interleaved buffer into the sample layout the
// feature module expects.
//
// With selected set, only that channel is returned and the effective channel
// count is 1. Otherwise all channels are returned channel-major (every frame
// of channel 0, then channel 1 and so on) with the effective count equal to
// channelCount. The returned slice never aliases raw.
func ExtractChannels(raw []float32, channelCount int, selected *int) ([]float32, int, error) {
	if channelCount <= 0 {
		return nil, 0, wrapError(ErrReadFailure, nil, "invalid channel count %d", channelCount).
			Category(errors.CategoryAudio).
			Build()
	}
	if len(raw)%channelCount != 0 {
		return nil, 0, wrapError(ErrReadFailure, nil, "%d samples do not form whole %d-channel frames",
			len(raw), channelCount).
			Category(errors.CategoryAudio).
			Build()
	}
	frames := len(raw) / channelCount

	if selected != nil {
		ch := *selected
		if ch < 0 || ch >= channelCount {
			return nil, 0, wrapError(ErrChannelOutOfRange, nil, "channel %d requested, source has %d",
				ch, channelCount).
				Category(errors.CategoryValidation).
				Context("channel", ch).
				Context("channel_count", channelCount).
				Build()
		}
		out := make([]float32, frames)
		for i := range frames {
			out[i] = raw[i*channelCount+ch]
		}
		return out, 1, nil
	}

	out := make([]float32, len(raw))
	if channelCount == 1 {
		copy(out, raw)
		return out, 1, nil
	}
	for i := range frames {
		base := i * channelCount
		for c := range channelCount {
			out[c*frames+i] = raw[base+c]
		}
	}
	return out, channelCount, nil
}
