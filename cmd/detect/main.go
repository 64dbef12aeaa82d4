package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"weapondetection/internal/app"
	"weapondetection/internal/config"
	"weapondetection/internal/logger"
	"weapondetection/internal/model"
	"weapondetection/internal/service/ai"
	"weapondetection/internal/service/dashboard"
)

type result struct {
	File       string            `json:"file"`
	Detections []model.Detection `json:"detections"`
	Qualifying int               `json:"qualifying"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	flag.StringVar(&cfg.ModelBackend, "backend", cfg.ModelBackend, "Model backend (ssd or remote)")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "SSD frozen graph path")
	flag.StringVar(&cfg.ModelConfigPath, "config", cfg.ModelConfigPath, "SSD graph config path")
	flag.StringVar(&cfg.RemoteModelURL, "remote", cfg.RemoteModelURL, "Remote inference server URL")
	flag.Float64Var(&cfg.ScoreThreshold, "threshold", cfg.ScoreThreshold, "Score a detection must exceed to qualify")
	timeout := flag.Duration("timeout", time.Minute, "Time allowed for loading the model")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: detect [flags] image.jpg [image.jpg ...]")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	predictor := ai.NewPredictor(app.LoaderFor(cfg), logger.NewNop())
	defer predictor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	predictor.Load(ctx)
	if err := predictor.Wait(ctx); err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)

	failed := 0
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			failed++
			continue
		}

		detections := predictor.Predict(context.Background(), model.Frame{
			Image:      data,
			Source:     filepath.Base(path),
			CapturedAt: time.Now(),
		})

		qualifying := 0
		for _, d := range detections {
			if dashboard.AboveThreshold(d, cfg.ScoreThreshold) {
				qualifying++
			}
		}

		if err := encoder.Encode(result{File: path, Detections: detections, Qualifying: qualifying}); err != nil {
			log.Fatalf("Failed to write result: %v", err)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
