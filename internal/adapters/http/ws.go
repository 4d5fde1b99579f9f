package web

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts requests without an Origin header (non-browser clients)
// and browser requests whose Origin host matches the request host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// handleCountdownWS streams the session's screen to the browser. Every change,
// including countdown ticks, is sent as a JSON snapshot; intermediate
// snapshots may be skipped when the client is slow.
func handleCountdownWS(w http.ResponseWriter, r *http.Request) {
	entry, ok := currentEntry(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket_upgrade_failed", "error", err)
		return
	}

	updates, unsubscribe := entry.Screen.Subscribe()
	defer func() {
		unsubscribe()
		_ = conn.Close()
	}()

	// The client sends nothing; reading detects the close.
	go func() {
		defer unsubscribe()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for snap := range updates {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			slog.Debug("websocket_send_failed", "error", err)
			return
		}
	}
}
