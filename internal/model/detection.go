package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// BBox is an axis-aligned bounding box in pixels: top-left corner plus size.
type BBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// MarshalJSON encodes the box as [x, y, width, height].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.Width, b.Height})
}

// UnmarshalJSON decodes a box from [x, y, width, height].
func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode bbox: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %d", len(raw))
	}
	b.X, b.Y, b.Width, b.Height = raw[0], raw[1], raw[2], raw[3]
	return nil
}

// Detection is a single model output for one frame.
type Detection struct {
	Class string  `json:"class"`
	Score float64 `json:"score"`
	BBox  BBox    `json:"bbox"`
}

// Normalized returns a copy of the detection with the score clamped to [0,1].
// A NaN score becomes 0.
func (d Detection) Normalized() Detection {
	switch {
	case math.IsNaN(d.Score), d.Score < 0:
		d.Score = 0
	case d.Score > 1:
		d.Score = 1
	}
	return d
}

// HistoryEntry records a detection that passed the confidence threshold.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Class     string    `json:"class"`
	Score     float64   `json:"score"`
}
