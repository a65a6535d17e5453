package pipeline

import (
	"context"

	"github.com/tphakala/mfcc-go/internal/errors"
)

// AudioWindow is one macro-chunk of samples ready for inference. Ownership
// passes to the consumer when the window is pushed.
type AudioWindow struct {
	Index        int       // position in the plan
	FrameOffset  int       // first frame in the source
	FrameCount   int       // frames in the window
	Samples      []float32 // channel-major, FrameCount*ChannelCount values
	ChannelCount int
	SampleRate   int
}

// errQueueClosed is returned by pop after the producer finished and the
// queue is drained.
var errQueueClosed = errors.NewStd("hand-off queue closed")

// handoffQueue is the FIFO between one producer and one consumer.
type handoffQueue struct {
	items chan AudioWindow
}

func newHandoffQueue(capacity int) *handoffQueue {
	return &handoffQueue{items: make(chan AudioWindow, max(capacity, 0))}
}

// push enqueues w, blocking while the queue is full.
func (q *handoffQueue) push(ctx context.Context, w AudioWindow) error {
	select {
	case q.items <- w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pop dequeues the next window, blocking while the queue is empty.
func (q *handoffQueue) pop(ctx context.Context) (AudioWindow, error) {
	select {
	case w, ok := <-q.items:
		if !ok {
			return AudioWindow{}, errQueueClosed
		}
		return w, nil
	case <-ctx.Done():
		return AudioWindow{}, ctx.Err()
	}
}

// close marks the end of production. Only the producer calls it.
func (q *handoffQueue) close() {
	close(q.items)
}

// size returns the number of queued windows.
func (q *handoffQueue) size() int {
	return len(q.items)
}
