package model

import "time"

// Frame is one encoded image taken from a video source.
type Frame struct {
	Image      []byte
	Source     string
	CapturedAt time.Time
}
