package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"weapondetection/internal/dto"
	"weapondetection/internal/logger"
	"weapondetection/internal/model"
	"weapondetection/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type galleryFixture struct {
	dir        string
	captures   *sqlite.CaptureRepository
	detections *sqlite.DetectionRepository
}

func setupGallery(t *testing.T) *galleryFixture {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &galleryFixture{
		dir:        t.TempDir(),
		captures:   sqlite.NewCaptureRepository(db),
		detections: sqlite.NewDetectionRepository(db),
	}
}

func (g *galleryFixture) add(t *testing.T, name, source string, ts time.Time, classes ...string) {
	t.Helper()

	path := filepath.Join(g.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))

	id, err := g.captures.Insert(&model.Capture{Filename: name, Source: source, Timestamp: ts, FilePath: path, FileSize: 4})
	require.NoError(t, err)

	for _, class := range classes {
		_, err := g.detections.Insert(&model.CaptureDetection{CaptureID: id, Class: class, Score: 0.9})
		require.NoError(t, err)
	}
}

func TestGetCapturesHandler(t *testing.T) {
	g := setupGallery(t)
	base := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		g.add(t, filepathName(i), "webcam", base.Add(time.Duration(i)*time.Minute), "knife")
	}
	g.add(t, "other.jpg", "door", base, "cup")

	h := GetCapturesHandler(logger.NewNop(), g.captures, g.detections)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/captures?class=knife&limit=2&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Captures []struct {
			Name    string   `json:"name"`
			Date    string   `json:"date"`
			Source  string   `json:"source"`
			Classes []string `json:"classes"`
		} `json:"captures"`
		Length      int `json:"length"`
		TotalPages  int `json:"totalPages"`
		CurrentPage int `json:"currentPage"`
		PageSize    int `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))

	assert.Equal(t, 5, data.Length)
	assert.Equal(t, 3, data.TotalPages)
	assert.Equal(t, 2, data.CurrentPage)
	assert.Equal(t, 2, data.PageSize)
	require.Len(t, data.Captures, 2)
	assert.Equal(t, filepathName(2), data.Captures[0].Name)
	assert.Equal(t, "15-06-2025", data.Captures[0].Date)
	assert.Equal(t, []string{"knife"}, data.Captures[0].Classes)
}

func filepathName(i int) string {
	return "capture_" + string(rune('a'+i)) + ".jpg"
}

func TestCaptureFiltersAndStats(t *testing.T) {
	g := setupGallery(t)
	g.add(t, "a.jpg", "webcam", time.Now(), "knife")
	g.add(t, "b.jpg", "door", time.Now(), "cup", "knife")

	rec := httptest.NewRecorder()
	CaptureFiltersHandler(logger.NewNop(), g.captures, g.detections)(rec, httptest.NewRequest(http.MethodGet, "/api/captures/filters", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var filters map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filters))
	assert.Equal(t, []string{"door", "webcam"}, filters["sources"])
	assert.Equal(t, []string{"cup", "knife"}, filters["classes"])

	rec = httptest.NewRecorder()
	CaptureStatsHandler(logger.NewNop(), g.captures)(rec, httptest.NewRequest(http.MethodGet, "/api/captures/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.CaptureStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCaptures)
	assert.Equal(t, 2, stats.ClassCounts["knife"])
}

func TestDeleteCaptureHandler(t *testing.T) {
	g := setupGallery(t)
	g.add(t, "a.jpg", "webcam", time.Now(), "knife")
	h := DeleteCaptureHandler(g.dir, logger.NewNop(), g.captures)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/captures/delete?filename=../secret.jpg", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/api/captures/delete?filename=a.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := os.Stat(filepath.Join(g.dir, "a.jpg"))
	assert.True(t, os.IsNotExist(err))
	stored, err := g.captures.GetByFilename("a.jpg")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestClearCapturesHandler(t *testing.T) {
	g := setupGallery(t)
	g.add(t, "a.jpg", "webcam", time.Now())
	g.add(t, "b.jpg", "webcam", time.Now())

	rec := httptest.NewRecorder()
	ClearCapturesHandler(g.dir, logger.NewNop(), g.captures)(rec, httptest.NewRequest(http.MethodPost, "/api/captures/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	files, err := os.ReadDir(g.dir)
	require.NoError(t, err)
	assert.Empty(t, files)

	count, err := g.captures.GetTotalCount(&dto.CaptureFilters{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestViewCaptureHandler(t *testing.T) {
	g := setupGallery(t)
	g.add(t, "a.jpg", "webcam", time.Now())
	h := ViewCaptureHandler(g.dir)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/captures/view?image=a.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/captures/view", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/captures/view?image=..%2Fetc%2Fpasswd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if result := atoiDefault(tt.input, tt.def); result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestIsValidFilename(t *testing.T) {
	for _, name := range []string{"image.jpg", "cam1_2025-01-04_14-30-00.jpg", "test-file.jpeg"} {
		if !isValidFilename(name) {
			t.Errorf("Expected %s to be valid", name)
		}
	}
	for _, name := range []string{"", "..", "../secret.jpg", "/etc/passwd", "a/b.jpg", "file\x00name.jpg"} {
		if isValidFilename(name) {
			t.Errorf("Expected %q to be invalid", name)
		}
	}
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), parseDate("2025-06-15"))
	assert.True(t, parseDate("15/06/2025").IsZero())
	assert.Equal(t, 8, parseTimeOfDay("08:30").Hour())
	assert.True(t, parseTimeOfDay("").IsZero())
}
