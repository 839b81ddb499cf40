package websocket

import (
	"net/http"
	"strings"

	"forumhub/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NewUpgrader accepts connections from the configured origins. A "*" entry allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// ServeWS handles websocket requests from clients
func ServeWS(hub *Hub, jwtSecret string, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// token from query parameter or header
		token := r.URL.Query().Get("token")
		if token == "" {
			parts := strings.Split(r.Header.Get("Authorization"), " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
		if token == "" {
			http.Error(w, "Authorization token required", http.StatusUnauthorized)
			return
		}

		claims, err := util.ValidateToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			util.Logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, claims.UserID)
		post(hub, hub.register, client)
		go client.Start()
	}
}
