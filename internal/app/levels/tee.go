package levels

import (
	"errors"
	"sync"

	"github.com/dentavoice/voiceclient/internal/core"
)

var errSuspended = errors.New("level source suspended: no user gesture")

// Tee is a gesture-gated PCM buffer between a media read loop and a
// Monitor. Frames pushed while suspended are dropped silently, which is
// exactly what a suspended browser audio context does.
type Tee struct {
	mu      sync.Mutex
	resumed bool
	closed  bool
	frames  chan []int16
}

func NewTee(buffer int) *Tee {
	if buffer <= 0 {
		buffer = 32
	}
	return &Tee{frames: make(chan []int16, buffer)}
}

// Push hands a frame to the analysis side. Never blocks: drops when the
// tee is suspended, closed or full.
func (t *Tee) Push(frame []int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.resumed {
		return
	}
	select {
	case t.frames <- frame:
	default:
	}
}

func (t *Tee) Resume(g core.Gesture) error {
	if !g.Granted() {
		return errSuspended
	}
	t.mu.Lock()
	t.resumed = true
	t.mu.Unlock()
	return nil
}

func (t *Tee) ReadFrame() ([]int16, error) {
	frame, ok := <-t.frames
	if !ok {
		return nil, errors.New("level source closed")
	}
	return frame, nil
}

func (t *Tee) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.frames)
	return nil
}
