package dto

import "weapondetection/internal/model"

// DashboardState is the view of the dashboard sent to clients.
type DashboardState struct {
	Running          bool                 `json:"running"`
	Loading          bool                 `json:"loading"`
	ModelError       string               `json:"modelError,omitempty"`
	Threshold        float64              `json:"threshold"`
	Viewers          int                  `json:"viewers"`
	ActiveDetections int                  `json:"activeDetections"`
	Detections       []model.Detection    `json:"detections"`
	History          []model.HistoryEntry `json:"history"`
}
