package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"weapondetection/internal/config"
	"weapondetection/internal/handler"
	"weapondetection/internal/logger"
	"weapondetection/internal/metrics"
	"weapondetection/internal/repository/sqlite"
	"weapondetection/internal/route"
	"weapondetection/internal/service"
	"weapondetection/internal/service/ai"
	"weapondetection/internal/service/dashboard"
	"weapondetection/internal/service/feed"
	"weapondetection/internal/service/storage"
	"weapondetection/internal/service/vision"
	"weapondetection/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout        = 10 * time.Second
	processMonitorInterval = 5 * time.Second
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	db        *sqlite.DB
	predictor *ai.Predictor
	hub       *websocket.HubService
	buffer    *storage.BufferService
	metrics   *metrics.Metrics
	manager   *service.Manager
	feed      *feed.Feed
	source    io.Closer
	server    *http.Server
}

// LoaderFor returns the model loader selected by cfg.ModelBackend.
func LoaderFor(cfg *config.Config) ai.Loader {
	if cfg.ModelBackend == config.BackendRemote {
		return ai.RemoteLoader(cfg.RemoteModelURL, time.Duration(cfg.RemoteModelTimeout)*time.Millisecond)
	}
	return vision.SSDLoader(cfg.ModelPath, cfg.ModelConfigPath)
}

// NewApp builds every service from cfg. Nothing runs until Run is called.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	captureRepo := sqlite.NewCaptureRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	m := metrics.New()

	predictor := ai.NewPredictor(LoaderFor(cfg), log)
	predictor.SetRecorder(m)

	hub := websocket.NewHubService(log)
	hub.SetViewerGauge(m)

	buffer := storage.NewBufferService(cfg.ImageDirectory, cfg.CaptureLimit, log, captureRepo, detectionRepo)

	// Frames come from a local capture device when one is configured, otherwise
	// from cameras pushing over WebSocket or UDP.
	var (
		source feed.FrameSource
		closer io.Closer
		frames *feed.PushSource
	)
	if cfg.CameraDevice != "" {
		capture, err := vision.OpenCapture(cfg.CameraDevice)
		if err != nil {
			db.Close()
			return nil, err
		}
		source, closer = capture, capture
	} else {
		frames = feed.NewPushSource()
		source, closer = frames, frames
	}

	manager := service.NewManager(service.Components{
		Predictor: predictor,
		Dashboard: dashboard.New(cfg.ScoreThreshold, cfg.HistoryCapacity),
		Frames:    frames,
		Hub:       hub,
		Buffer:    buffer,
		Annotator: vision.NewAnnotator(),
		Metrics:   m,
	}, log)

	f := feed.New(source, predictor, manager.HandleDetections, log, time.Duration(cfg.FrameInterval)*time.Millisecond)
	f.SetRecorder(m)
	if frames == nil {
		f.OnFrame(manager.BroadcastFrame)
	}
	manager.AttachFeed(f)

	router := route.SetupRoutes(route.Dependencies{
		Manager:       manager,
		Hub:           hub,
		Logger:        log,
		CaptureRepo:   captureRepo,
		DetectionRepo: detectionRepo,
		Metrics:       m.Handler(),
		ImageDir:      cfg.ImageDirectory,
		StaticDir:     cfg.StaticDirectory,
		Password:      cfg.Password,
	})

	return &App{
		config:    cfg,
		logger:    log,
		db:        db,
		predictor: predictor,
		hub:       hub,
		buffer:    buffer,
		metrics:   m,
		manager:   manager,
		feed:      f,
		source:    closer,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the model load and all background services, and serves HTTP until
// ctx is cancelled or a service fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.predictor.Load(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.buffer.Run(ctx, time.Duration(a.config.CaptureFlushInterval)*time.Second)
		return nil
	})
	g.Go(func() error {
		return a.metrics.RunProcessMonitor(ctx, processMonitorInterval)
	})
	g.Go(func() error {
		if err := a.feed.Run(ctx); err != nil && !errors.Is(err, feed.ErrSourceClosed) {
			return fmt.Errorf("frame feed stopped: %w", err)
		}
		return nil
	})
	if a.config.CamerasPort > 0 {
		g.Go(func() error {
			return handler.UDPCameraHandler(ctx, a.manager, a.logger, a.config)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.logger.Info("Weapon detection server listening on %s (model backend: %s)", a.server.Addr, a.config.ModelBackend)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func (a *App) close() {
	if err := a.source.Close(); err != nil {
		a.logger.Warning("Error closing frame source: %v", err)
	}
	if err := a.predictor.Close(); err != nil {
		a.logger.Warning("Error closing detection model: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warning("Error closing database: %v", err)
	}
	a.logger.Info("Server stopped")
}
