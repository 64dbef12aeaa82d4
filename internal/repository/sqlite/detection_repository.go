package sqlite

import (
	"fmt"

	"weapondetection/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

const insertDetection = `
	INSERT INTO detections (capture_id, class, x, y, width, height, score)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// Insert adds a new detection record to the database.
func (r *DetectionRepository) Insert(det *model.CaptureDetection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertDetection,
		det.CaptureID, det.Class, det.X, det.Y, det.Width, det.Height, det.Score)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.CaptureDetection) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertDetection)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.CaptureID, det.Class, det.X, det.Y, det.Width, det.Height, det.Score); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetByCaptureID retrieves all detections stored for a capture.
func (r *DetectionRepository) GetByCaptureID(captureID int64) ([]model.CaptureDetection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, capture_id, class, x, y, width, height, score
		FROM detections WHERE capture_id = ?
		ORDER BY score DESC
	`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.CaptureDetection{}
	for rows.Next() {
		var det model.CaptureDetection
		if err := rows.Scan(&det.ID, &det.CaptureID, &det.Class, &det.X, &det.Y, &det.Width, &det.Height, &det.Score); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetClassesByCaptureID returns the distinct classes detected in a capture.
func (r *DetectionRepository) GetClassesByCaptureID(captureID int64) ([]string, error) {
	return r.classes(`SELECT DISTINCT class FROM detections WHERE capture_id = ? ORDER BY class`, captureID)
}

// GetAllClasses returns every class ever stored.
func (r *DetectionRepository) GetAllClasses() ([]string, error) {
	return r.classes(`SELECT DISTINCT class FROM detections ORDER BY class`)
}

func (r *DetectionRepository) classes(query string, args ...interface{}) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	classes := []string{}
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, class)
	}

	return classes, rows.Err()
}

// DeleteByCaptureID removes all detections for a specific capture.
func (r *DetectionRepository) DeleteByCaptureID(captureID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE capture_id = ?`, captureID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}
