package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"weapondetection/internal/logger"
	"weapondetection/internal/model"
)

// ErrModelNotLoaded is returned by Wait when the model never finished loading.
var ErrModelNotLoaded = errors.New("detection model not loaded")

// Model is a loaded detection network.
type Model interface {
	Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error)
	Close() error
}

// Loader builds a Model. A Predictor calls it at most once.
type Loader func(ctx context.Context) (Model, error)

// Recorder observes prediction outcomes.
type Recorder interface {
	ObservePrediction(elapsed time.Duration, err error)
}

// Predictor owns the detection model handle: it loads it once in the background
// and exposes a prediction call that never fails.
type Predictor struct {
	loader   Loader
	logger   *logger.Logger
	recorder Recorder

	once    sync.Once
	done    chan struct{}
	mu      sync.RWMutex
	model   Model
	loadErr error
}

// NewPredictor creates a Predictor. The model is not loaded until Load is called.
func NewPredictor(loader Loader, logger *logger.Logger) *Predictor {
	return &Predictor{
		loader: loader,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// SetRecorder installs a prediction observer. Must be called before predictions start.
func (p *Predictor) SetRecorder(r Recorder) {
	p.recorder = r
}

// Load starts loading the model in the background. Only the first call has an effect.
func (p *Predictor) Load(ctx context.Context) {
	p.once.Do(func() {
		go p.load(ctx)
	})
}

func (p *Predictor) load(ctx context.Context) {
	defer close(p.done)

	start := time.Now()
	m, err := p.safeLoad(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.loadErr = err
		p.logger.Error("Failed to load detection model: %v", err)
		return
	}
	p.model = m
	p.logger.Info("Detection model loaded in %s", time.Since(start).Round(time.Millisecond))
}

func (p *Predictor) safeLoad(ctx context.Context) (m Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("model loader panic: %v", r)
		}
	}()
	if p.loader == nil {
		return nil, errors.New("no model loader configured")
	}
	m, err = p.loader(ctx)
	if err == nil && m == nil {
		err = errors.New("model loader returned no model")
	}
	return m, err
}

// Wait blocks until the load resolves and returns the load error.
func (p *Predictor) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		if err := p.Err(); err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrModelNotLoaded, ctx.Err())
	}
}

// Loading reports whether the model load has not resolved yet.
func (p *Predictor) Loading() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Err returns the load error. A failed load is final.
func (p *Predictor) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadErr
}

// Ready reports whether predictions can be attempted.
func (p *Predictor) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// Predict runs the model on frame. It never fails: before the model is loaded,
// or when inference fails, it returns an empty list.
func (p *Predictor) Predict(ctx context.Context, frame model.Frame) []model.Detection {
	return p.predict(ctx, frame, p.recorder)
}

// PredictUnrecorded is Predict without reporting to the recorder, for one-off
// requests outside the feed.
func (p *Predictor) PredictUnrecorded(ctx context.Context, frame model.Frame) []model.Detection {
	return p.predict(ctx, frame, nil)
}

func (p *Predictor) predict(ctx context.Context, frame model.Frame, recorder Recorder) []model.Detection {
	p.mu.RLock()
	m := p.model
	p.mu.RUnlock()
	if m == nil {
		return []model.Detection{}
	}

	start := time.Now()
	detections, err := p.detect(ctx, m, frame)
	if recorder != nil {
		recorder.ObservePrediction(time.Since(start), err)
	}
	if err != nil {
		p.logger.Error("Detection error: %v", err)
		return []model.Detection{}
	}

	out := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		out = append(out, d.Normalized())
	}
	return out
}

func (p *Predictor) detect(ctx context.Context, m Model, frame model.Frame) (detections []model.Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			detections, err = nil, fmt.Errorf("detect panic: %v", r)
		}
	}()
	return m.Detect(ctx, frame)
}

// Close releases the model if it was loaded.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}
