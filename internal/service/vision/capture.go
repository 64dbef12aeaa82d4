package vision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"weapondetection/internal/model"
	"weapondetection/internal/service/feed"

	"gocv.io/x/gocv"
)

// CaptureSource reads frames from a local camera device or a stream URL.
type CaptureSource struct {
	mu     sync.Mutex
	name   string
	device *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// OpenCapture opens device, which is either a numeric device index or a URL/path.
func OpenCapture(device string) (*CaptureSource, error) {
	var target interface{} = device
	if id, err := strconv.Atoi(device); err == nil {
		target = id
	}

	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture device %q is not available", device)
	}

	return &CaptureSource{
		name:   "camera:" + device,
		device: capture,
		mat:    gocv.NewMat(),
	}, nil
}

// Next grabs the current frame and returns it JPEG encoded.
func (c *CaptureSource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.device.IsOpened() {
		return model.Frame{}, feed.ErrSourceClosed
	}
	if ok := c.device.Read(&c.mat); !ok {
		return model.Frame{}, errors.New("failed to read frame from capture device")
	}
	if c.mat.Empty() {
		return model.Frame{}, errors.New("captured frame is empty")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.mat)
	if err != nil {
		return model.Frame{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	img := make([]byte, buf.Len())
	copy(img, buf.GetBytes())

	return model.Frame{Image: img, Source: c.name, CapturedAt: time.Now()}, nil
}

// Close releases the device.
func (c *CaptureSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.device.Close()
}
