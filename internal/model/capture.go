package model

import "time"

// Capture is a stored annotated frame that contained a qualifying detection.
type Capture struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// CaptureDetection is a detection row attached to a stored capture.
type CaptureDetection struct {
	ID        int64   `json:"id"`
	CaptureID int64   `json:"capture_id"`
	Class     string  `json:"class"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Score     float64 `json:"score"`
}

// CaptureStats contains statistics about stored captures.
type CaptureStats struct {
	TotalCaptures  int            `json:"total_captures"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerSource      map[string]int `json:"per_source"`
	ClassCounts    map[string]int `json:"class_counts"`
}
