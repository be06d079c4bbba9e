package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	// Origins are enforced by the CORS middleware for browsers
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// streamReadings pushes the get_readings payload every time it changes,
// including the change to {} when a reading expires.
func (a *api) streamReadings(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Readings stream upgrade failed")
		return
	}
	defer conn.Close()

	logger := a.logger.With().Str("remote_addr", r.RemoteAddr).Logger()
	logger.Debug().Msg("Readings stream opened")
	defer logger.Debug().Msg("Readings stream closed")

	// The client never sends data; reading detects when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := a.opts.Clock.NewTicker(a.opts.PushInterval)
	defer ticker.Stop()

	var last []byte
	for {
		payload, err := json.Marshal(a.sensor.GetReadings())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode reading")
			return
		}
		if !bytes.Equal(payload, last) {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			last = payload
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.Chan():
		}
	}
}
