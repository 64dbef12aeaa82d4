package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"weapondetection/internal/dto"
	"weapondetection/internal/logger"
	"weapondetection/internal/repository"
)

// DefaultPageSize is the number of captures returned per gallery page.
const DefaultPageSize = 24

// GetCapturesHandler returns a filtered, paginated list of stored captures.
func GetCapturesHandler(logger *logger.Logger, captureRepo repository.CaptureRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), DefaultPageSize)

		filter := &dto.CaptureFilters{
			Source:     q.Get("source"),
			Class:      q.Get("class"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		captures, err := captureRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying captures from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := captureRepo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting capture directory size: %v", err)
			totalSize = 0
		}

		totalCount, err := captureRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting captures: %v", err)
			totalCount = len(captures)
		}

		infos := make([]dto.CaptureInfo, 0, len(captures))
		for _, c := range captures {
			classes := []string{}
			if detectionRepo != nil {
				classes, err = detectionRepo.GetClassesByCaptureID(c.ID)
				if err != nil {
					logger.Error("Error getting classes for capture %d: %v", c.ID, err)
					classes = []string{}
				}
			}

			infos = append(infos, dto.CaptureInfo{
				Name:      c.Filename,
				Date:      c.Timestamp,
				TimeOfDay: c.Timestamp,
				Source:    c.Source,
				Classes:   classes,
			})
		}

		writeJSON(w, logger, http.StatusOK, dto.CapturesData{
			Captures:    infos,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// CaptureFiltersHandler returns the sources and classes available for filtering.
func CaptureFiltersHandler(logger *logger.Logger, captureRepo repository.CaptureRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := captureRepo.GetSources()
		if err != nil {
			logger.Error("Error listing sources: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		classes, err := detectionRepo.GetAllClasses()
		if err != nil {
			logger.Error("Error listing classes: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string][]string{"sources": sources, "classes": classes})
	}
}

// CaptureStatsHandler returns capture totals and the most frequent classes.
func CaptureStatsHandler(logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := captureRepo.GetStats()
		if err != nil {
			logger.Error("Error computing capture stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// DeleteCaptureHandler removes a capture from disk and database.
func DeleteCaptureHandler(imageDir string, logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filename := r.URL.Query().Get("filename")
		if !isValidFilename(filename) {
			http.Error(w, "Valid filename required", http.StatusBadRequest)
			return
		}

		filePath := filepath.Join(imageDir, filename)
		if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}

		if err := captureRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted capture: %s", filename)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
	}
}

// ClearCapturesHandler deletes every capture file and clears the database.
func ClearCapturesHandler(imageDir string, logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		files, err := os.ReadDir(imageDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("Error reading capture directory: %v", err)
			http.Error(w, "Unable to read capture directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(imageDir, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := captureRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
		}

		logger.Info("All captures cleared from directory: %s", imageDir)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewCaptureHandler serves a single capture file named by the "image" query parameter.
func ViewCaptureHandler(imageDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		if !isValidFilename(image) {
			http.Error(w, "Invalid image name", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(imageDir, image))
	}
}

// isValidFilename accepts plain file names only.
func isValidFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, c := range name {
		if c == 0 || c == '/' || c == '\\' {
			return false
		}
	}
	return filepath.Base(name) == name
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses an HTML date input ("2006-01-02").
func parseDate(v string) time.Time {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses an HTML time input ("15:04").
func parseTimeOfDay(v string) time.Time {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
