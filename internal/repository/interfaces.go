package repository

import (
	"weapondetection/internal/dto"
	"weapondetection/internal/model"
)

// CaptureRepository defines the interface for capture data operations.
type CaptureRepository interface {
	// Create operations
	Insert(capture *model.Capture) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Capture, error)
	GetByFilename(filename string) (*model.Capture, error)
	GetAll(filter *dto.CaptureFilters) ([]model.Capture, error)
	GetTotalCount(filter *dto.CaptureFilters) (int, error)
	GetSources() ([]string, error)
	GetStats() (*model.CaptureStats, error)
	GetDirectorySize() (int64, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for stored detection operations.
type DetectionRepository interface {
	// Create operations
	Insert(det *model.CaptureDetection) (int64, error)
	InsertBatch(detections []model.CaptureDetection) error

	// Read operations
	GetByCaptureID(captureID int64) ([]model.CaptureDetection, error)
	GetClassesByCaptureID(captureID int64) ([]string, error)
	GetAllClasses() ([]string, error)

	// Delete operations
	DeleteByCaptureID(captureID int64) error
}
