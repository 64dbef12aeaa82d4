package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"weapondetection/internal/model"
	"weapondetection/internal/service/ai"

	"gocv.io/x/gocv"
)

// SSDModel runs an SSD MobileNet COCO graph through the OpenCV DNN module.
type SSDModel struct {
	mu            sync.Mutex
	net           gocv.Net
	minScore      float64
	maxDetections int
}

// LoadSSD reads the frozen graph at modelPath with its text config at configPath.
func LoadSSD(modelPath, configPath string) (*SSDModel, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("model config file not found: %w", err)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, errors.New("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if err := errors.Join(errBackend, errTarget); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target: %w", err)
	}

	return &SSDModel{
		net:           net,
		minScore:      ai.DefaultMinScore,
		maxDetections: ai.DefaultMaxDetections,
	}, nil
}

// SSDLoader returns an ai.Loader for the OpenCV backend.
func SSDLoader(modelPath, configPath string) ai.Loader {
	return func(ctx context.Context) (ai.Model, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadSSD(modelPath, configPath)
	}
}

// Detect decodes the JPEG frame and runs one forward pass.
func (m *SSDModel) Detect(ctx context.Context, frame model.Frame) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(frame.Image, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("decoded image is empty")
	}

	// SSD MobileNet expects 300x300 input scaled to [-1, 1]
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	return ai.DecodeSSD(rows.Rows(), rows.GetFloatAt, mat.Cols(), mat.Rows(), m.minScore, m.maxDetections), nil
}

// Close releases the network.
func (m *SSDModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
