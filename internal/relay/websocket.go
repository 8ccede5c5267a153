package relay

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// wsFrame is the envelope written for every event on the WebSocket feed.
type wsFrame struct {
	Feed string          `json:"feed"`
	Data json.RawMessage `json:"data"`
}

// WSHandler returns an http.HandlerFunc that upgrades to WebSocket and streams
// broker events as text frames. The same ?feeds= filter as SSE applies.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedFilter := parseFeedFilter(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("relay ws upgrade failed", "error", err)
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				slog.Debug("relay ws close failed", "error", err)
			}
		}()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		slog.Debug("relay ws client subscribed", "subscriber", id, "clients", broker.ClientCount())

		done := make(chan struct{})
		go drainClient(conn, done)

		for {
			select {
			case <-done:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				frame, err := encodeFrame(evt)
				if err != nil {
					slog.Debug("relay ws encode failed", "feed", evt.Feed, "error", err)
					continue
				}
				if err := wsutil.WriteServerText(conn, frame); err != nil {
					slog.Debug("relay ws write failed", "subscriber", id, "error", err)
					return
				}
			}
		}
	}
}

// drainClient reads and discards client frames so control frames (ping,
// close) are handled. It closes done when the client goes away.
func drainClient(conn net.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			return
		}
	}
}

func encodeFrame(evt Event) ([]byte, error) {
	data := json.RawMessage(evt.Payload)
	if !json.Valid(data) {
		quoted, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		data = quoted
	}
	return json.Marshal(wsFrame{Feed: evt.Feed, Data: data})
}
