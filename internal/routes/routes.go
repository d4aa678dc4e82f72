package routes

import (
	"net/http"

	"proctor/internal/config"
	"proctor/internal/handler"
	"proctor/internal/logger"
	"proctor/internal/middleware"
	"proctor/internal/service/websocket"
)

// SetupRoutes registers the live viewer endpoints and wraps them with the viewer token check.
func SetupRoutes(hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", handler.ViewWebsocketHandler(hub, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(cfg, "info"))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(cfg, "warning"))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(cfg, "error"))

	return middleware.AuthMiddleware(cfg.ViewerToken, mux)
}
