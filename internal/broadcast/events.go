package broadcast

import (
	"encoding/json"
	"fmt"
	"net/http"

	"masquerade/internal/game"
)

// Event is one frame on a push stream: an orchestrator notification tagged
// with a per-room sequence id and a server timestamp.
type Event struct {
	EventID  string         `json:"event_id,omitempty"`
	Type     game.EventType `json:"type"`
	RoomID   string         `json:"room_id"`
	ServerTS int64          `json:"server_ts"`
	game.Payload

	// Target restricts delivery to one player's connections. Never sent on
	// the wire.
	Target string `json:"-"`
}

// WriteSSE writes one event in text/event-stream framing.
func WriteSSE(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.EventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
