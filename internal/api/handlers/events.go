package handlers

import (
	"net/http"
	"time"

	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type EventsHandler struct {
	Broker ports.TransitionBroker
	Topic  string
}

// Stream pushes every planner lifecycle transition to a websocket client
// until the client goes away.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no transition committed
	// after the client sees the upgrade is missed.
	events := h.Broker.Subscribe(h.Topic)
	defer h.Broker.Unsubscribe(h.Topic, events)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer func() { _ = conn.Close() }()

	log := zap.L().With(zap.String("req_id", obs.RequestID(r.Context())), zap.String("topic", h.Topic))
	log.Debug("event stream opened")

	// The read loop only drains control frames and notices disconnects.
	done := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(done)
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
			log.Debug("event stream closed by client")
			return
		case t, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(t); err != nil {
				log.Debug("event stream write failed", zap.Error(err))
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
