// CaptureFilters describe user-provided filters to narrow the capture list.
package dto

import "time"

type CaptureFilters struct {
	Source     string
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
	TimeAfter  time.Time
	TimeBefore time.Time
	Limit      int
	Offset     int
}
