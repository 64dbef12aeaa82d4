package dto

// Viewer message types.
const (
	MessageFrame = "frame"
	MessageState = "state"
)

// ViewerMessage is the envelope written to dashboard viewers over WebSocket.
type ViewerMessage struct {
	Type   string          `json:"type"`
	Source string          `json:"source,omitempty"`
	Image  string          `json:"image,omitempty"`
	State  *DashboardState `json:"state,omitempty"`
}
