package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"weapondetection/internal/dto"
	"weapondetection/internal/model"
)

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Insert adds a new capture record. Timestamps are stored in UTC.
func (r *CaptureRepository) Insert(capture *model.Capture) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO captures (filename, source, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?)
	`, capture.Filename, capture.Source, capture.Timestamp.UTC(), capture.FilePath, capture.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture: %w", err)
	}

	return result.LastInsertId()
}

// GetByID returns nil without error when no capture has the id.
func (r *CaptureRepository) GetByID(id int64) (*model.Capture, error) {
	return r.getOne(`WHERE id = ?`, id)
}

// GetByFilename returns nil without error when no capture has the filename.
func (r *CaptureRepository) GetByFilename(filename string) (*model.Capture, error) {
	return r.getOne(`WHERE filename = ?`, filename)
}

func (r *CaptureRepository) getOne(where string, arg interface{}) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var c model.Capture
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, source, timestamp, filepath, filesize
		FROM captures `+where, arg).Scan(&c.ID, &c.Filename, &c.Source, &c.Timestamp, &c.FilePath, &c.FileSize)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return &c, nil
}

// applyFilter appends the WHERE clauses for filter to query.
func applyFilter(query string, filter *dto.CaptureFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Source != "" {
		query += " AND c.source = ?"
		args = append(args, filter.Source)
	}

	if filter.Class != "" {
		query += " AND d.class = ?"
		args = append(args, filter.Class)
	}

	if !filter.DateAfter.IsZero() {
		query += " AND DATE(c.timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		query += " AND DATE(c.timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	if !filter.TimeAfter.IsZero() {
		query += " AND TIME(c.timestamp) >= TIME(?)"
		args = append(args, filter.TimeAfter.Format("15:04:05"))
	}

	if !filter.TimeBefore.IsZero() {
		query += " AND TIME(c.timestamp) <= TIME(?)"
		args = append(args, filter.TimeBefore.Format("15:04:05"))
	}

	return query, args
}

// GetAll returns the captures matching filter, newest first.
func (r *CaptureRepository) GetAll(filter *dto.CaptureFilters) ([]model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilter(`
		SELECT DISTINCT c.id, c.filename, c.source, c.timestamp, c.filepath, c.filesize
		FROM captures c
		LEFT JOIN detections d ON c.id = d.capture_id
		WHERE 1=1
	`, filter)

	query += " ORDER BY c.timestamp DESC, c.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	captures := []model.Capture{}
	for rows.Next() {
		var c model.Capture
		if err := rows.Scan(&c.ID, &c.Filename, &c.Source, &c.Timestamp, &c.FilePath, &c.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}

	return captures, rows.Err()
}

// GetTotalCount returns the number of captures matching filter, ignoring pagination.
func (r *CaptureRepository) GetTotalCount(filter *dto.CaptureFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilter(`
		SELECT COUNT(DISTINCT c.id)
		FROM captures c
		LEFT JOIN detections d ON c.id = d.capture_id
		WHERE 1=1
	`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}

	return count, nil
}

// GetSources returns the distinct source names, sorted.
func (r *CaptureRepository) GetSources() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT source FROM captures ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// GetStats returns totals, per-source counts and the ten most frequent classes.
func (r *CaptureRepository) GetStats() (*model.CaptureStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.CaptureStats{
		PerSource:   make(map[string]int),
		ClassCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM captures`).
		Scan(&stats.TotalCaptures, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT source, COUNT(*) FROM captures GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.PerSource[source] = count
	}

	classRows, err := r.db.Conn().Query(`
		SELECT class, COUNT(*) AS cnt
		FROM detections
		GROUP BY class
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer classRows.Close()

	for classRows.Next() {
		var class string
		var count int
		if err := classRows.Scan(&class, &count); err != nil {
			return nil, err
		}
		stats.ClassCounts[class] = count
	}

	return stats, nil
}

// GetDirectorySize returns the total size in bytes of all stored capture files.
func (r *CaptureRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM captures`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum capture sizes: %w", err)
	}
	return size, nil
}

// Delete removes a capture and its detections.
func (r *CaptureRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	return r.deleteLocked(id)
}

func (r *CaptureRepository) deleteLocked(id int64) error {
	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE capture_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM captures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}

// DeleteByFilename removes a capture by filename. Unknown names are not an error.
func (r *CaptureRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var id int64
	err := r.db.Conn().QueryRow(`SELECT id FROM captures WHERE filename = ?`, filename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get capture id: %w", err)
	}

	return r.deleteLocked(id)
}

// DeleteAll removes every capture and detection.
func (r *CaptureRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM captures`); err != nil {
		return fmt.Errorf("failed to delete captures: %w", err)
	}
	return nil
}
