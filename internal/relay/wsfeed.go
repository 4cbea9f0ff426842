package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// wsFrame is the envelope written to WebSocket feed clients.
type wsFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// WSHandler upgrades the connection and streams feed events as text frames.
// Topic filtering works the same as the SSE handler.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := topicFilter(r)

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Warn("feed websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		id, ch := broker.Subscribe()
		closed := make(chan struct{})

		// Reader drains control frames and detects the client going away.
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		go func() {
			defer broker.Unsubscribe(id)
			defer conn.Close()
			for {
				select {
				case <-closed:
					return
				case evt, ok := <-ch:
					if !ok {
						return
					}
					if filter != nil && !filter[evt.Topic] {
						continue
					}
					frame, err := json.Marshal(wsFrame{Topic: evt.Topic, Payload: evt.Payload})
					if err != nil {
						continue
					}
					if err := wsutil.WriteServerText(conn, frame); err != nil {
						return
					}
				}
			}
		}()
	}
}
