package dashboard

import (
	"sync"
	"time"

	"weapondetection/internal/model"
)

// Dashboard holds the view state: the running toggle, the latest detection set and
// a capped, newest-first history of confident detections.
type Dashboard struct {
	mu        sync.RWMutex
	running   bool
	current   []model.Detection
	history   []model.HistoryEntry
	threshold float64
	capacity  int
	now       func() time.Time
}

// New creates a running Dashboard. A detection enters the history when its score
// is strictly greater than threshold; at most capacity entries are kept.
func New(threshold float64, capacity int) *Dashboard {
	if capacity < 0 {
		capacity = 0
	}
	return &Dashboard{
		running:   true,
		current:   []model.Detection{},
		history:   make([]model.HistoryEntry, 0, capacity),
		threshold: threshold,
		capacity:  capacity,
		now:       time.Now,
	}
}

// Running reports whether detections are being accepted.
func (d *Dashboard) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// SetRunning switches between Running and Stopped and returns the new state.
func (d *Dashboard) SetRunning(running bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = running
	return d.running
}

// Toggle flips the running state and returns the new state.
func (d *Dashboard) Toggle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = !d.running
	return d.running
}

// HandleDetections applies one detection batch. While stopped the batch is ignored
// and accepted is false. Otherwise the batch replaces the current detections and
// every detection above the threshold is prepended to the history, in batch order.
// The entries added by this batch are returned newest first.
func (d *Dashboard) HandleDetections(batch []model.Detection) (added []model.HistoryEntry, accepted bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil, false
	}

	d.current = append(make([]model.Detection, 0, len(batch)), batch...)

	now := d.now()
	for _, detection := range batch {
		if !AboveThreshold(detection, d.threshold) {
			continue
		}
		entry := model.HistoryEntry{Timestamp: now, Class: detection.Class, Score: detection.Score}
		d.history = prepend(d.history, entry, d.capacity)
		added = append([]model.HistoryEntry{entry}, added...)
	}
	return added, true
}

// prepend inserts entry at the head and drops entries beyond capacity.
func prepend(history []model.HistoryEntry, entry model.HistoryEntry, capacity int) []model.HistoryEntry {
	if capacity == 0 {
		return history
	}
	if len(history) < capacity {
		history = append(history, model.HistoryEntry{})
	}
	copy(history[1:], history[:len(history)-1])
	history[0] = entry
	return history
}

// Current returns a copy of the latest detection set.
func (d *Dashboard) Current() []model.Detection {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(make([]model.Detection, 0, len(d.current)), d.current...)
}

// History returns a copy of the history, newest first.
func (d *Dashboard) History() []model.HistoryEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(make([]model.HistoryEntry, 0, len(d.history)), d.history...)
}

// ClearHistory empties the history.
func (d *Dashboard) ClearHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = d.history[:0]
}

// Threshold returns the history score threshold.
func (d *Dashboard) Threshold() float64 {
	return d.threshold
}

// Qualifies reports whether a detection would enter the history.
func (d *Dashboard) Qualifies(detection model.Detection) bool {
	return AboveThreshold(detection, d.threshold)
}

// AboveThreshold reports whether the detection's score is strictly greater than
// threshold. NaN scores never qualify.
func AboveThreshold(detection model.Detection, threshold float64) bool {
	return detection.Score > threshold
}

// Snapshot is a consistent copy of the dashboard state.
type Snapshot struct {
	Running    bool
	Detections []model.Detection
	History    []model.HistoryEntry
}

// Snapshot returns the running flag, current detections and history taken under one lock.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Running:    d.running,
		Detections: append(make([]model.Detection, 0, len(d.current)), d.current...),
		History:    append(make([]model.HistoryEntry, 0, len(d.history)), d.history...),
	}
}
