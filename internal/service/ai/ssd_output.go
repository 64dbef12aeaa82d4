package ai

import (
	"math"
	"sort"

	"weapondetection/internal/model"
)

// SSD output tuning, matching the usual COCO-SSD defaults.
const (
	DefaultMinScore      = 0.5
	DefaultMaxDetections = 20
)

// SSDOutput reads one row of an SSD detection tensor:
// [batch_id, class_id, confidence, x1, y1, x2, y2] with normalized corners.
type SSDOutput func(row, col int) float32

// DecodeSSD converts the raw SSD rows into pixel-space detections for an image of
// width x height. Rows below minScore or without a score are dropped; the result is sorted by score
// and capped at maxDetections.
func DecodeSSD(rows int, at SSDOutput, width, height int, minScore float64, maxDetections int) []model.Detection {
	detections := make([]model.Detection, 0)
	w, h := float64(width), float64(height)

	for i := 0; i < rows; i++ {
		confidence := float64(at(i, 2))
		if math.IsNaN(confidence) || confidence < minScore {
			continue
		}
		classID := int(at(i, 1))
		x1 := clampUnit(float64(at(i, 3))) * w
		y1 := clampUnit(float64(at(i, 4))) * h
		x2 := clampUnit(float64(at(i, 5))) * w
		y2 := clampUnit(float64(at(i, 6))) * h
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		detections = append(detections, model.Detection{
			Class: CocoLabel(classID),
			Score: confidence,
			BBox:  model.BBox{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1},
		}.Normalized())
	}

	sort.SliceStable(detections, func(a, b int) bool {
		return detections[a].Score > detections[b].Score
	})
	if maxDetections > 0 && len(detections) > maxDetections {
		detections = detections[:maxDetections]
	}
	return detections
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
