package broadcast

import (
	"net/http"
	"time"

	"masquerade/internal/game"
)

// ServeStream runs one SSE push stream: snapshot first, then replay, then
// live events until the client goes away, the broadcaster closes the
// connection, or the hard lifetime elapses.
func (b *Broadcaster) ServeStream(w http.ResponseWriter, r *http.Request, roomID, playerID string, state game.StateView) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream_not_supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	conn, replay := b.Subscribe(roomID, playerID, r.Header.Get("Last-Event-ID"), state)
	defer b.Unsubscribe(conn)

	for _, ev := range replay {
		if err := WriteSSE(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	lifetime := time.NewTimer(b.cfg.StreamMaxLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-lifetime.C:
			return
		case ev, open := <-conn.Events():
			if !open {
				return
			}
			if err := WriteSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
