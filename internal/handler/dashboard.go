package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"weapondetection/internal/logger"
	"weapondetection/internal/service"
)

// MaxPredictBodySize bounds the image accepted by the predict endpoint.
const MaxPredictBodySize = 10 << 20

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// StateHandler returns the dashboard snapshot.
func StateHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.State())
	}
}

// ToggleHandler flips detection between running and stopped.
func ToggleHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.Toggle())
	}
}

// RunningHandler sets the running state from the "running" form value.
func RunningHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		running, err := strconv.ParseBool(r.FormValue("running"))
		if err != nil {
			http.Error(w, "running must be true or false", http.StatusBadRequest)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.SetRunning(running))
	}
}

// HistoryHandler returns the recent confident detections, newest first.
func HistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.History())
	}
}

// ClearHistoryHandler empties the detection history.
func ClearHistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, http.StatusOK, manager.ClearHistory())
	}
}

// PredictHandler runs detection on the JPEG request body.
func PredictHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPredictBodySize))
		if err != nil {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		if len(body) == 0 {
			http.Error(w, "Image required", http.StatusBadRequest)
			return
		}

		source := r.URL.Query().Get("source")
		if source == "" {
			source = "upload"
		}

		detections := manager.Predict(r.Context(), body, source)
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{"detections": detections})
	}
}
