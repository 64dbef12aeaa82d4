package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"weapondetection/internal/model"
)

// ErrSourceClosed is returned by a FrameSource that will not produce more frames.
var ErrSourceClosed = errors.New("frame source closed")

// FrameSource supplies frames to the feed. Next blocks until a frame is available.
type FrameSource interface {
	Next(ctx context.Context) (model.Frame, error)
}

// PushSource is a FrameSource fed by external producers (browser or network cameras).
// It holds only the newest frame: a frame pushed before the previous one was taken
// replaces it.
type PushSource struct {
	mu     sync.Mutex
	latest *model.Frame
	closed bool
	notify chan struct{}
}

// NewPushSource creates an empty PushSource.
func NewPushSource() *PushSource {
	return &PushSource{notify: make(chan struct{}, 1)}
}

// Push stores frame as the newest frame. Pushing to a closed source is a no-op.
func (s *PushSource) Push(frame model.Frame) {
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = time.Now()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.latest = &frame
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the newest frame, waiting for one if none is pending.
func (s *PushSource) Next(ctx context.Context) (model.Frame, error) {
	for {
		s.mu.Lock()
		if s.latest != nil {
			frame := *s.latest
			s.latest = nil
			s.mu.Unlock()
			return frame, nil
		}
		if s.closed {
			s.mu.Unlock()
			return model.Frame{}, ErrSourceClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.Frame{}, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close wakes pending readers; subsequent Next calls return ErrSourceClosed.
func (s *PushSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.latest = nil
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}
