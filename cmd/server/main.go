package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"weapondetection/internal/app"
	"weapondetection/internal/config"
	"weapondetection/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize application: %v", err)
		appLogger.Sync()
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		appLogger.Error("Server error: %v", err)
		appLogger.Sync()
		log.Fatalf("Failed to run server: %v", err)
	}
}
