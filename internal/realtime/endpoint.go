package realtime

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // adjust for prod
	},
}

// ServeWS authenticates a viewer and attaches it to the hub.
// Token comes from the `token` query param or a bearer Authorization header;
// subscriptions are requested over the socket after connect.
func ServeWS(hub *Hub, jwtSecret string, buffer int, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := VerifyToken(token, jwtSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claimString(claims, "sub")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, hub, userID, buffer)
	hub.logger.Infow("viewer connected", "user", userID, "remote", conn.RemoteAddr())

	go client.WritePump()
	client.ReadPump()
}
