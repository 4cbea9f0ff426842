package relay

import (
	"fmt"
	"net/http"
	"strings"
)

// topicFilter parses the optional ?topics=a,b query parameter. Nil means
// accept everything.
func topicFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("topics")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[t] = true
		}
	}
	return filter
}

// SSEHandler returns an http.HandlerFunc that streams feed events as SSE.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		filter := topicFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if filter != nil && !filter[evt.Topic] {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Topic, evt.Payload)
				flusher.Flush()
			}
		}
	}
}
