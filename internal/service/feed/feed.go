package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"weapondetection/internal/logger"
	"weapondetection/internal/model"
)

// Predictor runs detection on a frame. Predict never fails; Ready reports whether
// the underlying model is available.
type Predictor interface {
	Predict(ctx context.Context, frame model.Frame) []model.Detection
	Ready() bool
}

// DetectionHandler receives the detections of every processed frame.
type DetectionHandler func(frame model.Frame, detections []model.Detection)

// Recorder observes processed frames.
type Recorder interface {
	ObserveFrame()
}

// Feed repeatedly samples a FrameSource and runs the predictor on each frame,
// one prediction at a time.
type Feed struct {
	source    FrameSource
	predictor Predictor
	handler   DetectionHandler
	logger    *logger.Logger
	interval  time.Duration

	onFrame  func(model.Frame)
	recorder Recorder

	enabled atomic.Bool
	wake    chan struct{}
}

// New creates a Feed. The feed starts enabled; interval is the pause between samples.
func New(source FrameSource, predictor Predictor, handler DetectionHandler, logger *logger.Logger, interval time.Duration) *Feed {
	f := &Feed{
		source:    source,
		predictor: predictor,
		handler:   handler,
		logger:    logger,
		interval:  interval,
		wake:      make(chan struct{}, 1),
	}
	f.enabled.Store(true)
	return f
}

// OnFrame installs a callback invoked with every sampled frame before prediction.
func (f *Feed) OnFrame(fn func(model.Frame)) {
	f.onFrame = fn
}

// SetRecorder installs a frame observer.
func (f *Feed) SetRecorder(r Recorder) {
	f.recorder = r
}

// SetEnabled pauses or resumes sampling.
func (f *Feed) SetEnabled(enabled bool) {
	if f.enabled.Swap(enabled) == enabled {
		return
	}
	if enabled {
		select {
		case f.wake <- struct{}{}:
		default:
		}
	}
}

// Enabled reports whether the feed is sampling.
func (f *Feed) Enabled() bool {
	return f.enabled.Load()
}

// Run samples frames until ctx is cancelled or the source closes.
// A prediction that resolves after the feed was disabled is dropped.
func (f *Feed) Run(ctx context.Context) error {
	f.logger.Info("Frame feed started (interval %s)", f.interval)
	defer f.logger.Info("Frame feed stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !f.Enabled() {
			select {
			case <-ctx.Done():
				return nil
			case <-f.wake:
			}
			continue
		}

		if !f.predictor.Ready() {
			if !f.sleepFor(ctx, f.retryDelay()) {
				return nil
			}
			continue
		}

		frame, err := f.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrSourceClosed) {
				return err
			}
			f.logger.Warning("Failed to read frame: %v", err)
			if !f.sleepFor(ctx, f.retryDelay()) {
				return nil
			}
			continue
		}

		if !f.Enabled() {
			continue
		}
		if f.onFrame != nil {
			f.onFrame(frame)
		}

		detections := f.predictor.Predict(ctx, frame)
		if f.recorder != nil {
			f.recorder.ObserveFrame()
		}
		if f.Enabled() && ctx.Err() == nil {
			f.handler(frame, detections)
		}

		if !f.sleep(ctx) {
			return nil
		}
	}
}

// minRetryDelay bounds polling while the model loads or the source fails.
const minRetryDelay = 50 * time.Millisecond

func (f *Feed) retryDelay() time.Duration {
	if f.interval < minRetryDelay {
		return minRetryDelay
	}
	return f.interval
}

// sleep waits for the sampling interval; it returns false when ctx ends first.
func (f *Feed) sleep(ctx context.Context) bool {
	return f.sleepFor(ctx, f.interval)
}

func (f *Feed) sleepFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
