package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"weapondetection/internal/dto"
	"weapondetection/internal/logger"
	"weapondetection/internal/model"
	"weapondetection/internal/service/dashboard"
	"weapondetection/internal/service/feed"
)

// Predictor is the part of ai.Predictor the manager needs.
type Predictor interface {
	Predict(ctx context.Context, frame model.Frame) []model.Detection
	PredictUnrecorded(ctx context.Context, frame model.Frame) []model.Detection
	Loading() bool
	Err() error
}

// FeedControl pauses and resumes frame sampling.
type FeedControl interface {
	SetEnabled(enabled bool)
}

// Broadcaster delivers messages to every dashboard viewer.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// ViewerCounter is implemented by broadcasters that know how many viewers are connected.
type ViewerCounter interface {
	GetClientCount() int
}

// CaptureBuffer stores annotated frames.
type CaptureBuffer interface {
	AddCapture(imageData []byte, source string, detections []model.Detection) bool
}

// Annotator draws detections onto an encoded frame.
type Annotator interface {
	Annotate(img []byte, detections []model.Detection) ([]byte, error)
}

// Recorder receives dashboard level metrics.
type Recorder interface {
	ObserveDetections(batch []model.Detection, historyAdded int)
	SetRunning(running bool)
}

// Components are the services a Manager coordinates. Only Predictor and
// Dashboard are required.
type Components struct {
	Predictor Predictor
	Dashboard *dashboard.Dashboard
	Frames    *feed.PushSource
	Hub       Broadcaster
	Buffer    CaptureBuffer
	Annotator Annotator
	Metrics   Recorder
}

// Manager connects the feed, the dashboard and everything that reacts to them.
type Manager struct {
	predictor Predictor
	dashboard *dashboard.Dashboard
	feed      FeedControl
	frames    *feed.PushSource
	hub       Broadcaster
	buffer    CaptureBuffer
	annotator Annotator
	metrics   Recorder
	logger    *logger.Logger
}

func NewManager(c Components, logger *logger.Logger) *Manager {
	m := &Manager{
		predictor: c.Predictor,
		dashboard: c.Dashboard,
		frames:    c.Frames,
		hub:       c.Hub,
		buffer:    c.Buffer,
		annotator: c.Annotator,
		metrics:   c.Metrics,
		logger:    logger,
	}
	if m.metrics != nil {
		m.metrics.SetRunning(m.dashboard.Running())
	}
	return m
}

// AttachFeed connects the feed whose sampling follows the dashboard toggle.
func (m *Manager) AttachFeed(f FeedControl) {
	m.feed = f
	f.SetEnabled(m.dashboard.Running())
}

// Toggle flips detection between running and stopped.
func (m *Manager) Toggle() dto.DashboardState {
	return m.applyRunning(m.dashboard.Toggle())
}

// SetRunning starts or stops detection.
func (m *Manager) SetRunning(running bool) dto.DashboardState {
	return m.applyRunning(m.dashboard.SetRunning(running))
}

func (m *Manager) applyRunning(running bool) dto.DashboardState {
	if m.feed != nil {
		m.feed.SetEnabled(running)
	}
	if m.metrics != nil {
		m.metrics.SetRunning(running)
	}
	if running {
		m.logger.Info("Detection started")
	} else {
		m.logger.Info("Detection stopped")
	}

	state := m.State()
	m.broadcastState(state)
	return state
}

// HandleDetections is the feed's detection handler.
func (m *Manager) HandleDetections(frame model.Frame, detections []model.Detection) {
	added, accepted := m.dashboard.HandleDetections(detections)
	if !accepted {
		return
	}

	if m.metrics != nil {
		m.metrics.ObserveDetections(detections, len(added))
	}
	for _, entry := range added {
		m.logger.Info("Detected %s (%.2f) on %s", entry.Class, entry.Score, frame.Source)
	}

	m.broadcastState(m.State())

	if len(added) > 0 {
		m.capture(frame, detections)
	}
}

// capture buffers the frame annotated with its qualifying detections.
func (m *Manager) capture(frame model.Frame, detections []model.Detection) {
	if m.buffer == nil {
		return
	}

	qualifying := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if m.dashboard.Qualifies(d) {
			qualifying = append(qualifying, d)
		}
	}

	img := frame.Image
	if m.annotator != nil {
		annotated, err := m.annotator.Annotate(frame.Image, qualifying)
		if err != nil {
			m.logger.Error("Failed to draw detections: %v", err)
		} else {
			img = annotated
		}
	}

	m.buffer.AddCapture(img, frame.Source, qualifying)
}

// HandleCameraFrame accepts a JPEG pushed by a network camera or browser and makes it
// the feed's current frame.
func (m *Manager) HandleCameraFrame(image []byte, source string) {
	frame := model.Frame{Image: image, Source: source, CapturedAt: time.Now()}

	m.BroadcastFrame(frame)

	if m.frames != nil {
		m.frames.Push(frame)
	}
}

// BroadcastFrame sends the frame to viewers as a base64 JPEG.
func (m *Manager) BroadcastFrame(frame model.Frame) {
	m.send(dto.ViewerMessage{
		Type:   dto.MessageFrame,
		Source: frame.Source,
		Image:  base64.StdEncoding.EncodeToString(frame.Image),
	})
}

func (m *Manager) broadcastState(state dto.DashboardState) {
	m.send(dto.ViewerMessage{Type: dto.MessageState, State: &state})
}

func (m *Manager) send(message dto.ViewerMessage) {
	if m.hub == nil {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Error("Error encoding viewer message: %v", err)
		return
	}
	if !m.hub.Broadcast(data) {
		m.logger.Warning("Viewer queue full, dropping %s message", message.Type)
	}
}

// State returns the dashboard snapshot together with the model status.
func (m *Manager) State() dto.DashboardState {
	snap := m.dashboard.Snapshot()
	state := dto.DashboardState{
		Running:          snap.Running,
		Loading:          m.predictor.Loading(),
		Threshold:        m.dashboard.Threshold(),
		ActiveDetections: len(snap.Detections),
		Detections:       snap.Detections,
		History:          snap.History,
	}
	if err := m.predictor.Err(); err != nil {
		state.ModelError = err.Error()
	}
	if counter, ok := m.hub.(ViewerCounter); ok {
		state.Viewers = counter.GetClientCount()
	}
	return state
}

// ClearHistory empties the detection history and broadcasts the new state.
func (m *Manager) ClearHistory() dto.DashboardState {
	m.dashboard.ClearHistory()
	m.logger.Info("Detection history cleared")

	state := m.State()
	m.broadcastState(state)
	return state
}

// History returns the recent qualifying detections, newest first.
func (m *Manager) History() []model.HistoryEntry {
	return m.dashboard.History()
}

// Predict runs a one-off prediction without touching the dashboard or the
// feed's prediction metrics.
func (m *Manager) Predict(ctx context.Context, image []byte, source string) []model.Detection {
	return m.predictor.PredictUnrecorded(ctx, model.Frame{Image: image, Source: source, CapturedAt: time.Now()})
}
