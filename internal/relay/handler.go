package relay

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// parseFeedFilter reads the optional ?feeds=name1,name2 query parameter.
// A nil map means every feed is accepted.
func parseFeedFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("feeds")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filter[f] = true
		}
	}
	return filter
}

// SSEHandler returns an http.HandlerFunc that streams broker events as SSE.
// Clients may filter feeds via ?feeds=name1,name2 query parameter.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		feedFilter := parseFeedFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)
		slog.Debug("relay sse client subscribed", "subscriber", id, "clients", broker.ClientCount())

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Feed, evt.Payload); err != nil {
					slog.Debug("relay sse write failed", "subscriber", id, "error", err)
					return
				}
				flusher.Flush()
			}
		}
	}
}
