package main

import (
	"net/http"

	"go.uber.org/zap"
)

// handleWebSocket handles WebSocket connections
func (app *application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	ws, err := app.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.Logger.Warn("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	conn := app.Hub.Serve(ws)

	app.Logger.Info("WebSocket connection established",
		zap.String("connection_id", conn.ID),
		zap.String("remote_addr", r.RemoteAddr))
}
