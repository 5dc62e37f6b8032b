package notify

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Relay pumps a subscription into a websocket connection until either side
// goes away. It owns the connection and closes it on exit.
func Relay(hub *Hub, subscription *Subscription, conn *websocket.Conn, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() {
		hub.Unsubscribe(subscription)
		_ = conn.Close()
	}()

	done := make(chan struct{})
	go readUntilClosed(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case message, open := <-subscription.Messages():
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readUntilClosed drains inbound frames so pong handling works and close
// frames are noticed.
func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
