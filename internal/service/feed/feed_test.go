package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"weapondetection/internal/logger"
	"weapondetection/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPredictor struct {
	ready   atomic.Bool
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
}

func newStubPredictor() *stubPredictor {
	p := &stubPredictor{}
	p.ready.Store(true)
	return p
}

func (p *stubPredictor) Ready() bool { return p.ready.Load() }

func (p *stubPredictor) Predict(ctx context.Context, frame model.Frame) []model.Detection {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.block != nil {
		<-p.block
	}
	return []model.Detection{{Class: frame.Source, Score: 0.9}}
}

type collector struct {
	mu      sync.Mutex
	batches [][]model.Detection
	got     chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 100)}
}

func (c *collector) handle(frame model.Frame, detections []model.Detection) {
	c.mu.Lock()
	c.batches = append(c.batches, detections)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for detections")
	}
}

func startFeed(t *testing.T, f *Feed) (cancel func(), done chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	t.Cleanup(cancelFn)
	return cancelFn, done
}

func TestFeed_ForwardsDetections(t *testing.T) {
	src := NewPushSource()
	pred := newStubPredictor()
	c := newCollector()
	f := New(src, pred, c.handle, logger.NewNop(), 0)

	var frames atomic.Int32
	f.OnFrame(func(model.Frame) { frames.Add(1) })
	startFeed(t, f)

	for _, name := range []string{"a", "b", "c"} {
		src.Push(model.Frame{Source: name})
		c.wait(t)
	}

	require.Equal(t, 3, c.count())
	assert.Equal(t, "c", c.batches[2][0].Class)
	assert.Equal(t, int32(3), frames.Load())
}

func TestFeed_DisabledHaltsForwarding(t *testing.T) {
	src := NewPushSource()
	pred := newStubPredictor()
	c := newCollector()
	f := New(src, pred, c.handle, logger.NewNop(), 0)
	startFeed(t, f)

	src.Push(model.Frame{Source: "first"})
	c.wait(t)

	f.SetEnabled(false)
	assert.False(t, f.Enabled())
	time.Sleep(20 * time.Millisecond)
	src.Push(model.Frame{Source: "paused"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.count(), "no detections are forwarded while disabled")

	f.SetEnabled(true)
	src.Push(model.Frame{Source: "resumed"})
	c.wait(t)
	assert.Equal(t, 2, c.count())
	assert.Equal(t, "resumed", c.batches[1][0].Class)
}

func TestFeed_DropsInFlightPredictionWhenDisabled(t *testing.T) {
	src := NewPushSource()
	pred := newStubPredictor()
	pred.block = make(chan struct{})
	pred.started = make(chan struct{}, 1)
	c := newCollector()
	f := New(src, pred, c.handle, logger.NewNop(), 0)
	startFeed(t, f)

	src.Push(model.Frame{Source: "slow"})
	<-pred.started
	f.SetEnabled(false)
	close(pred.block)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, c.count())
}

func TestFeed_WaitsForModel(t *testing.T) {
	src := NewPushSource()
	pred := newStubPredictor()
	pred.ready.Store(false)
	c := newCollector()
	f := New(src, pred, c.handle, logger.NewNop(), 0)
	startFeed(t, f)

	src.Push(model.Frame{Source: "early"})
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), pred.calls.Load())

	pred.ready.Store(true)
	c.wait(t)
	assert.Equal(t, "early", c.batches[0][0].Class)
}

func TestFeed_StopsOnClosedSource(t *testing.T) {
	src := NewPushSource()
	f := New(src, newStubPredictor(), newCollector().handle, logger.NewNop(), 0)
	_, done := startFeed(t, f)

	require.NoError(t, src.Close())
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrSourceClosed))
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after the source closed")
	}
}

func TestFeed_StopsOnCancel(t *testing.T) {
	f := New(NewPushSource(), newStubPredictor(), newCollector().handle, logger.NewNop(), 10*time.Millisecond)
	cancel, done := startFeed(t, f)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

type failingSource struct {
	calls atomic.Int32
}

func (s *failingSource) Next(ctx context.Context) (model.Frame, error) {
	if s.calls.Add(1) == 1 {
		return model.Frame{}, errors.New("camera hiccup")
	}
	return model.Frame{Source: "recovered"}, nil
}

func TestFeed_RetriesAfterSourceError(t *testing.T) {
	src := &failingSource{}
	c := newCollector()
	f := New(src, newStubPredictor(), c.handle, logger.NewNop(), 0)
	startFeed(t, f)

	c.wait(t)
	assert.Equal(t, "recovered", c.batches[0][0].Class)
}
