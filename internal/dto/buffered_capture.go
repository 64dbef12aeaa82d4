package dto

import (
	"time"

	"weapondetection/internal/model"
)

// BufferedCapture holds an annotated frame and its detections before flushing to disk.
type BufferedCapture struct {
	Timestamp  time.Time
	Source     string
	Detections []model.Detection
	Data       []byte
}
