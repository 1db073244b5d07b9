package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/SentientDialogue/internal/events"
	"github.com/AaronLay10/SentientDialogue/internal/log"
)

const (
	// events replayed to a new connection unless ?recent=N says otherwise
	defaultRecentEvents = 50

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams events to a websocket client, starting with the
// most recent ones from the buffer.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("ws")

	recent := defaultRecentEvents
	if s := r.URL.Query().Get("recent"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			recent = n
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	// subscribe before the replay so nothing emitted in between is lost
	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	write := func(e events.Event) bool {
		data, err := json.Marshal(e)
		if err != nil {
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug("write failed", slog.Any("error", err))
			return false
		}
		return true
	}

	if recent > 0 {
		for _, e := range events.RecentEvents(recent) {
			if !write(e) {
				return
			}
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case e, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !write(e) {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
