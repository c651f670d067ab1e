package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/challengerdaily/challengerdaily/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients scoped to the caller's owner.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := auth.OwnerID(r.Context())
		if ownerID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, ownerID)
		client.Run(r.Context())
	}
}
