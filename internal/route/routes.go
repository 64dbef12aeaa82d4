package route

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"weapondetection/internal/handler"
	"weapondetection/internal/logger"
	"weapondetection/internal/middleware"
	"weapondetection/internal/repository"
	"weapondetection/internal/service"
	"weapondetection/internal/service/websocket"
)

// Dependencies are the services the HTTP routes are built from.
type Dependencies struct {
	Manager       *service.Manager
	Hub           *websocket.HubService
	Logger        *logger.Logger
	CaptureRepo   repository.CaptureRepository
	DetectionRepo repository.DetectionRepository
	Metrics       http.Handler
	ImageDir      string
	StaticDir     string
	Password      string
}

// dynamicHTMLHandler serves /path as <dir>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(dir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static files, the dashboard API, the camera endpoints and
// the capture gallery, and wraps the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	log := deps.Logger

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir))))

	// Dashboard
	mux.HandleFunc("/api/state", handler.StateHandler(deps.Manager, log))
	mux.HandleFunc("/api/toggle", handler.ToggleHandler(deps.Manager, log))
	mux.HandleFunc("/api/running", handler.RunningHandler(deps.Manager, log))
	mux.HandleFunc("/api/history", handler.HistoryHandler(deps.Manager, log))
	mux.HandleFunc("/api/history/clear", handler.ClearHistoryHandler(deps.Manager, log))
	mux.HandleFunc("/api/predict", handler.PredictHandler(deps.Manager, log))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Manager, deps.Hub, log))

	// Cameras
	mux.HandleFunc("/camera/ws", handler.CameraWebsocketHandler(deps.Manager, log))

	// Captures
	if deps.CaptureRepo != nil {
		mux.HandleFunc("/api/captures", handler.GetCapturesHandler(log, deps.CaptureRepo, deps.DetectionRepo))
		mux.HandleFunc("/api/captures/view", handler.ViewCaptureHandler(deps.ImageDir))
		mux.HandleFunc("/api/captures/delete", handler.DeleteCaptureHandler(deps.ImageDir, log, deps.CaptureRepo))
		mux.HandleFunc("/api/captures/clear", handler.ClearCapturesHandler(deps.ImageDir, log, deps.CaptureRepo))
		mux.HandleFunc("/api/captures/filters", handler.CaptureFiltersHandler(log, deps.CaptureRepo, deps.DetectionRepo))
		mux.HandleFunc("/api/captures/stats", handler.CaptureStatsHandler(log, deps.CaptureRepo))
	}

	// Logs
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Auth
	mux.HandleFunc("/auth/login", handler.LoginHandler(deps.Password, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	// /settings -> <static>/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler(deps.StaticDir))

	return middleware.AuthMiddleware(deps.Password)(mux)
}
