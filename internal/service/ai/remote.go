package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weapondetection/internal/model"

	"github.com/go-resty/resty/v2"
)

// RemoteModel sends frames to an HTTP inference server.
//
// The server accepts POST /detect with a JPEG body and answers
// {"detections":[{"class":"knife","score":0.9,"bbox":[x,y,w,h]}]}.
// GET /health must answer 2xx once the server can take requests.
type RemoteModel struct {
	client *resty.Client
}

type remoteResponse struct {
	Detections []model.Detection `json:"detections"`
}

type remoteError struct {
	Error string `json:"error"`
}

// RemoteLoader returns a Loader that checks the server health before handing out the model.
func RemoteLoader(baseURL string, timeout time.Duration) Loader {
	return func(ctx context.Context) (Model, error) {
		m := NewRemoteModel(baseURL, timeout)
		if err := m.Health(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// NewRemoteModel creates a client for the inference server at baseURL.
func NewRemoteModel(baseURL string, timeout time.Duration) *RemoteModel {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
	return &RemoteModel{client: client}
}

// Health checks that the inference server is reachable.
func (m *RemoteModel) Health(ctx context.Context) error {
	resp, err := m.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("inference server unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("inference server unhealthy: %s", resp.Status())
	}
	return nil
}

// Detect posts the frame and decodes the returned detections.
func (m *RemoteModel) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	var result remoteResponse
	var failure remoteError
	resp, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "image/jpeg").
		SetBody(frame.Image).
		SetResult(&result).
		SetError(&failure).
		Post("/detect")
	if err != nil {
		return nil, fmt.Errorf("detect request failed: %w", err)
	}
	if resp.IsError() {
		if failure.Error != "" {
			return nil, fmt.Errorf("inference server returned %s: %s", resp.Status(), failure.Error)
		}
		return nil, fmt.Errorf("inference server returned %s", resp.Status())
	}
	return result.Detections, nil
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (m *RemoteModel) Close() error {
	return nil
}
