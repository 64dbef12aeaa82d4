package handler

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"weapondetection/internal/config"
	"weapondetection/internal/logger"
	"weapondetection/internal/service"

	gorilla "github.com/gorilla/websocket"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// MaxFrameSize caps a reassembled camera frame.
const MaxFrameSize = 4 << 20

// CameraWebsocketHandler receives JPEG frames as binary messages from a browser or
// camera identified by the "id" query parameter.
func CameraWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("id")
		if name == "" {
			http.Error(w, "Camera id required", http.StatusBadRequest)
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(MaxFrameSize)

		logger.Info("Camera %s connected", name)

		for {
			kind, data, err := connection.ReadMessage()
			if err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Camera %s disconnected", name)
				} else {
					logger.Error("Error reading camera message from %s: %v", name, err)
				}
				return
			}
			if kind != gorilla.BinaryMessage || !isJPEG(data) {
				logger.Warning("Ignoring non-JPEG message from camera %s", name)
				continue
			}
			manager.HandleCameraFrame(data, name)
		}
	}
}

func isJPEG(data []byte) bool {
	return bytes.HasPrefix(data, jpegHeader) && bytes.HasSuffix(data, jpegFooter)
}

// frameAssembler rebuilds JPEG frames that arrive split over several datagrams.
// A datagram starting with SOI begins a new frame; one ending with EOI completes it.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// Add appends a datagram from camera and returns the frame it completes, if any.
func (a *frameAssembler) Add(camera string, data []byte) ([]byte, bool) {
	buf, ok := a.buffers[camera]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[camera] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	} else if buf.Len() == 0 {
		// continuation without a start: we joined mid-frame
		return nil, false
	}
	if buf.Len()+len(data) > MaxFrameSize {
		buf.Reset()
		return nil, false
	}
	buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}
	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	buf.Reset()
	return frame, true
}

// cameraName resolves the configured name for a camera address.
func cameraName(cfg *config.Config, addr *net.UDPAddr) string {
	ip := addr.IP.String()
	if name, ok := cfg.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG frames,
// and forwards complete frames to the Manager until ctx is cancelled.
func UDPCameraHandler(ctx context.Context, manager *service.Manager, logger *logger.Logger, cfg *config.Config) error {
	port := strconv.Itoa(cfg.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP camera handler started on port %s", port)
	return serveUDPCameras(ctx, conn, manager, logger, cfg)
}

func serveUDPCameras(ctx context.Context, conn *net.UDPConn, manager *service.Manager, logger *logger.Logger, cfg *config.Config) error {
	buffer := make([]byte, 65535)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		name := cameraName(cfg, remoteAddr)
		if frame, ok := assembler.Add(name, buffer[:n]); ok {
			manager.HandleCameraFrame(frame, name)
		}
	}
}
