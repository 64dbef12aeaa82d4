package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"weapondetection/internal/dto"
	"weapondetection/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func insertCapture(t *testing.T, repo *CaptureRepository, dets *DetectionRepository, name, source string, ts time.Time, classes ...string) int64 {
	t.Helper()

	id, err := repo.Insert(&model.Capture{
		Filename:  name,
		Source:    source,
		Timestamp: ts,
		FilePath:  "/captures/" + name,
		FileSize:  100,
	})
	require.NoError(t, err)

	batch := make([]model.CaptureDetection, 0, len(classes))
	for i, class := range classes {
		batch = append(batch, model.CaptureDetection{CaptureID: id, Class: class, X: i, Y: i, Width: 10, Height: 10, Score: 0.9})
	}
	if len(batch) > 0 {
		require.NoError(t, dets.InsertBatch(batch))
	}
	return id
}

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	_, err = NewCaptureRepository(db).Insert(&model.Capture{Filename: "a.jpg", Source: "cam1", Timestamp: time.Now()})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	c, err := NewCaptureRepository(db).GetByFilename("a.jpg")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "cam1", c.Source)
}

func TestCaptureRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	id, err := repo.Insert(&model.Capture{
		Filename:  "knife.jpg",
		Source:    "webcam",
		Timestamp: ts,
		FilePath:  "/captures/knife.jpg",
		FileSize:  2048,
	})
	require.NoError(t, err)

	byID, err := repo.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "knife.jpg", byID.Filename)
	assert.Equal(t, "webcam", byID.Source)
	assert.Equal(t, int64(2048), byID.FileSize)
	assert.True(t, ts.Equal(byID.Timestamp), "timestamp %v", byID.Timestamp)

	byName, err := repo.GetByFilename("knife.jpg")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	missing, err := repo.GetByID(id + 100)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCaptureRepository_DuplicateFilename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	c := &model.Capture{Filename: "dup.jpg", Source: "cam1", Timestamp: time.Now()}
	_, err := repo.Insert(c)
	require.NoError(t, err)
	_, err = repo.Insert(c)
	assert.Error(t, err)
}

func TestCaptureRepository_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)
	dets := NewDetectionRepository(db)

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	insertCapture(t, repo, dets, "a.jpg", "cam1", day.Add(8*time.Hour), "knife", "person")
	insertCapture(t, repo, dets, "b.jpg", "cam2", day.Add(12*time.Hour), "knife")
	insertCapture(t, repo, dets, "c.jpg", "cam1", day.Add(26*time.Hour), "scissors")

	tests := []struct {
		name     string
		filter   *dto.CaptureFilters
		expected []string
	}{
		{"no filter", &dto.CaptureFilters{}, []string{"c.jpg", "b.jpg", "a.jpg"}},
		{"nil filter", nil, []string{"c.jpg", "b.jpg", "a.jpg"}},
		{"by source", &dto.CaptureFilters{Source: "cam1"}, []string{"c.jpg", "a.jpg"}},
		{"by class", &dto.CaptureFilters{Class: "knife"}, []string{"b.jpg", "a.jpg"}},
		{"date before", &dto.CaptureFilters{DateBefore: day}, []string{"b.jpg", "a.jpg"}},
		{"date after", &dto.CaptureFilters{DateAfter: day.AddDate(0, 0, 1)}, []string{"c.jpg"}},
		{"time window", &dto.CaptureFilters{
			TimeAfter:  time.Date(0, 1, 1, 9, 0, 0, 0, time.UTC),
			TimeBefore: time.Date(0, 1, 1, 13, 0, 0, 0, time.UTC),
		}, []string{"b.jpg"}},
		{"paginated", &dto.CaptureFilters{Limit: 1, Offset: 1}, []string{"b.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captures, err := repo.GetAll(tt.filter)
			require.NoError(t, err)

			names := make([]string, 0, len(captures))
			for _, c := range captures {
				names = append(names, c.Filename)
			}
			assert.Equal(t, tt.expected, names)
		})
	}

	count, err := repo.GetTotalCount(&dto.CaptureFilters{Class: "knife", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, count, "count ignores pagination")
}

func TestCaptureRepository_SourcesAndStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)
	dets := NewDetectionRepository(db)

	now := time.Now()
	insertCapture(t, repo, dets, "a.jpg", "cam2", now, "knife", "knife")
	insertCapture(t, repo, dets, "b.jpg", "cam1", now, "knife", "person")

	sources, err := repo.GetSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"cam1", "cam2"}, sources)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCaptures)
	assert.Equal(t, int64(200), stats.TotalSizeBytes)
	assert.Equal(t, map[string]int{"cam1": 1, "cam2": 1}, stats.PerSource)
	assert.Equal(t, 3, stats.ClassCounts["knife"])
	assert.Equal(t, 1, stats.ClassCounts["person"])

	size, err := repo.GetDirectorySize()
	require.NoError(t, err)
	assert.Equal(t, int64(200), size)
}

func TestCaptureRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)
	dets := NewDetectionRepository(db)

	now := time.Now()
	first := insertCapture(t, repo, dets, "a.jpg", "cam1", now, "knife")
	second := insertCapture(t, repo, dets, "b.jpg", "cam1", now, "cup")
	insertCapture(t, repo, dets, "c.jpg", "cam1", now, "bottle")

	require.NoError(t, repo.Delete(first))
	require.NoError(t, repo.DeleteByFilename("b.jpg"))
	require.NoError(t, repo.DeleteByFilename("missing.jpg"))

	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	orphaned, err := dets.GetByCaptureID(second)
	require.NoError(t, err)
	assert.Empty(t, orphaned)

	require.NoError(t, repo.DeleteAll())
	count, err = repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	classes, err := dets.GetAllClasses()
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestDetectionRepository_Queries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)
	dets := NewDetectionRepository(db)

	id := insertCapture(t, repo, dets, "a.jpg", "cam1", time.Now(), "person", "knife", "knife")
	other := insertCapture(t, repo, dets, "b.jpg", "cam1", time.Now(), "cup")

	single, err := dets.Insert(&model.CaptureDetection{CaptureID: other, Class: "bottle", Score: 0.7})
	require.NoError(t, err)
	assert.NotZero(t, single)

	stored, err := dets.GetByCaptureID(id)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	classes, err := dets.GetClassesByCaptureID(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"knife", "person"}, classes)

	all, err := dets.GetAllClasses()
	require.NoError(t, err)
	assert.Equal(t, []string{"bottle", "cup", "knife", "person"}, all)

	require.NoError(t, dets.DeleteByCaptureID(id))
	stored, err = dets.GetByCaptureID(id)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDatabase_ConcurrentAccess(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCaptureRepository(db)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Insert(&model.Capture{
				Filename:  fmt.Sprintf("concurrent_%d.jpg", idx),
				Source:    "cam1",
				Timestamp: time.Now(),
			})
			if err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
