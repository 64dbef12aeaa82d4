package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"weapondetection/internal/model"
	"weapondetection/internal/repository/sqlite"
	"weapondetection/internal/service/storage"
)

// reindex rebuilds database rows for capture files that are on disk but missing
// from the database, e.g. after the database file was lost.
func main() {
	imagesDir := flag.String("images", "captures", "Directory containing captures")
	dbPath := flag.String("db", "data/captures.db", "Database path")
	flag.Parse()

	fmt.Printf("Indexing captures from %s into %s\n", *imagesDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	captures := sqlite.NewCaptureRepository(db)
	detections := sqlite.NewDetectionRepository(db)

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read captures directory: %v", err)
	}

	indexed, skipped := 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		existing, err := captures.GetByFilename(file.Name())
		if err != nil {
			log.Fatalf("Failed to query database: %v", err)
		}
		if existing != nil {
			continue
		}

		timestamp, source, classes, err := storage.ParseCaptureFilename(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		path := filepath.Join(*imagesDir, file.Name())
		id, err := captures.Insert(&model.Capture{
			Filename:  file.Name(),
			Source:    source,
			Timestamp: timestamp,
			FilePath:  path,
			FileSize:  info.Size(),
		})
		if err != nil {
			log.Printf("Failed to insert %s: %v", file.Name(), err)
			skipped++
			continue
		}

		// Scores and boxes are not recoverable from the file name.
		rows := make([]model.CaptureDetection, 0, len(classes))
		for _, class := range classes {
			rows = append(rows, model.CaptureDetection{CaptureID: id, Class: class})
		}
		if len(rows) > 0 {
			if err := detections.InsertBatch(rows); err != nil {
				log.Printf("Failed to insert detections for %s: %v", file.Name(), err)
			}
		}
		indexed++
	}

	fmt.Printf("Indexed %d captures", indexed)
	if skipped > 0 {
		fmt.Printf(", skipped %d files", skipped)
	}
	fmt.Println()

	stats, err := captures.GetStats()
	if err != nil {
		return
	}
	fmt.Printf("Total captures: %d (%d bytes)\n", stats.TotalCaptures, stats.TotalSizeBytes)
	for source, count := range stats.PerSource {
		fmt.Printf("  %s: %d\n", source, count)
	}
}
