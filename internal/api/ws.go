package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/retrouvtout/backend/internal/auth"
	"github.com/retrouvtout/backend/internal/notify"
	"github.com/retrouvtout/backend/internal/store"
)

// WSHandler upgrades connections for push notifications. Browsers cannot set
// an Authorization header on WebSocket requests, so the token travels in a
// query parameter instead.
type WSHandler struct {
	DB        *sql.DB
	JWTSecret string
	Hub       *notify.Hub
}

// Connect handles GET /api/ws?token=...
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		jsonError(w, http.StatusUnauthorized, "token required")
		return
	}

	claims, err := auth.ValidateToken(h.JWTSecret, tokenStr)
	if err != nil {
		jsonError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	revoked, err := store.IsTokenRevoked(r.Context(), h.DB, claims.ID)
	if err != nil || revoked {
		jsonError(w, http.StatusUnauthorized, "token revoked")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	client := h.Hub.AddClient(claims.UserID, conn)
	defer h.Hub.RemoveClient(client)

	slog.Info("websocket connected", "user_id", claims.UserID)

	// Incoming messages are ignored; reading just detects the close.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	slog.Info("websocket disconnected", "user_id", claims.UserID)
}
