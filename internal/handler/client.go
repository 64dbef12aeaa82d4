package handler

import (
	"encoding/json"
	"net/http"

	"weapondetection/internal/dto"
	"weapondetection/internal/logger"
	"weapondetection/internal/service"
	"weapondetection/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler sends the current dashboard state to a new viewer and then
// registers it in the hub to receive frames and state updates.
func ViewWebsocketHandler(manager *service.Manager, hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		state := manager.State()
		initial, err := json.Marshal(dto.ViewerMessage{Type: dto.MessageState, State: &state})
		if err == nil {
			err = connection.WriteMessage(gorilla.TextMessage, initial)
		}
		if err != nil {
			logger.Error("Error sending initial state: %v", err)
			connection.Close()
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				return
			}
		}
	}
}
