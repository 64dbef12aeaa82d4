package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"weapondetection/internal/dto"
	"weapondetection/internal/logger"
	"weapondetection/internal/model"
	"weapondetection/internal/repository"

	"github.com/google/uuid"
)

const filenameTimeLayout = "2006-01-02_15-04-05.000"

// BufferService buffers annotated captures in memory and periodically flushes them to disk.
type BufferService struct {
	imagesDir     string
	limit         int
	captures      []dto.BufferedCapture
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	captureRepo   repository.CaptureRepository
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a BufferService that keeps at most limit captures per source
// between flushes. The repositories may be nil, in which case only files are written.
func NewBufferService(imagesDir string, limit int, logger *logger.Logger,
	captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) *BufferService {
	return &BufferService{
		imagesDir:     imagesDir,
		limit:         limit,
		captures:      make([]dto.BufferedCapture, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
		captureRepo:   captureRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes every interval until ctx is cancelled, then flushes once more.
func (s *BufferService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushCaptures()
			return
		case <-ticker.C:
			s.FlushCaptures()
		}
	}
}

// AddCapture queues a frame for storage. It returns false when the source already
// filled its share of the buffer.
func (s *BufferService) AddCapture(imageData []byte, source string, detections []model.Detection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[source] >= s.limit {
		return false
	}

	s.captures = append(s.captures, dto.BufferedCapture{
		Timestamp:  time.Now(),
		Source:     source,
		Detections: append([]model.Detection(nil), detections...),
		Data:       imageData,
	})
	s.bufferCount[source]++
	s.logger.Info("Buffer size for source %s: %d/%d", source, s.bufferCount[source], s.limit)
	return true
}

// Pending returns the number of buffered captures.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

// FlushCaptures writes buffered captures to disk and the database, then resets the buffer.
// It returns the number of captures saved.
func (s *BufferService) FlushCaptures() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.captures) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, capture := range s.captures {
		if err := s.save(capture); err != nil {
			s.logger.Error("%v", err)
			continue
		}
		savedCount++
	}

	s.logger.Info("Flushed %d captures to disk", savedCount)
	s.captures = s.captures[:0]
	s.bufferCount = make(map[string]int)
	return savedCount
}

func (s *BufferService) save(capture dto.BufferedCapture) error {
	filename := captureFilename(capture)
	fullpath := filepath.Join(s.imagesDir, filename)

	if err := os.WriteFile(fullpath, capture.Data, 0644); err != nil {
		return fmt.Errorf("error saving capture %s: %w", filename, err)
	}

	if s.captureRepo == nil {
		return nil
	}

	captureID, err := s.captureRepo.Insert(&model.Capture{
		Filename:  filename,
		Source:    capture.Source,
		Timestamp: capture.Timestamp,
		FilePath:  fullpath,
		FileSize:  int64(len(capture.Data)),
	})
	if err != nil {
		return fmt.Errorf("error saving capture %s to database: %w", filename, err)
	}

	if s.detectionRepo == nil || len(capture.Detections) == 0 {
		return nil
	}

	rows := make([]model.CaptureDetection, 0, len(capture.Detections))
	for _, det := range capture.Detections {
		rows = append(rows, model.CaptureDetection{
			CaptureID: captureID,
			Class:     det.Class,
			X:         int(det.BBox.X),
			Y:         int(det.BBox.Y),
			Width:     int(det.BBox.Width),
			Height:    int(det.BBox.Height),
			Score:     det.Score,
		})
	}
	if err := s.detectionRepo.InsertBatch(rows); err != nil {
		return fmt.Errorf("error saving detections for %s: %w", filename, err)
	}
	return nil
}

// captureFilename builds "<time>_<source>_<class.class>_<id>.jpg".
func captureFilename(capture dto.BufferedCapture) string {
	seen := make(map[string]bool)
	classes := make([]string, 0, len(capture.Detections))
	for _, det := range capture.Detections {
		if !seen[det.Class] {
			seen[det.Class] = true
			classes = append(classes, sanitize(det.Class))
		}
	}

	return fmt.Sprintf("%s_%s_%s_%s.jpg",
		capture.Timestamp.Format(filenameTimeLayout),
		sanitize(capture.Source),
		strings.Join(classes, "."),
		uuid.NewString()[:8])
}

// ParseCaptureFilename recovers the capture time (local), source and classes from a
// name produced by the buffer.
func ParseCaptureFilename(filename string) (time.Time, string, []string, error) {
	name := strings.TrimSuffix(filename, ".jpg")
	parts := strings.Split(name, "_")
	if len(parts) != 5 || name == filename {
		return time.Time{}, "", nil, fmt.Errorf("invalid capture filename: %s", filename)
	}

	timestamp, err := time.ParseInLocation(filenameTimeLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, "", nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	classes := []string{}
	for _, class := range strings.Split(parts[3], ".") {
		if class != "" {
			classes = append(classes, class)
		}
	}
	return timestamp, parts[2], classes, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
}
