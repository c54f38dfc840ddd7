package broadcast

import (
	"strconv"
	"sync"
)

// history is a bounded per-room ring of recent events so a reconnecting
// client can replay what it missed via Last-Event-ID.
type history struct {
	mu     sync.Mutex
	nextID int64
	max    int
	events []Event
}

func newHistory(max int) *history {
	if max <= 0 {
		max = 500
	}
	return &history{max: max}
}

// append assigns the event its sequence id and records it.
func (h *history) append(ev Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ev.EventID = strconv.FormatInt(h.nextID, 10)
	h.events = append(h.events, ev)
	if len(h.events) > h.max {
		h.events = h.events[len(h.events)-h.max:]
	}
	return ev
}

// replayAfter returns the retained events after lastEventID that playerID
// is allowed to see. An unparsable or empty id replays the whole window.
func (h *history) replayAfter(lastEventID, playerID string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	last := int64(0)
	if lastEventID != "" {
		if parsed, err := strconv.ParseInt(lastEventID, 10, 64); err == nil {
			last = parsed
		}
	}
	out := make([]Event, 0, len(h.events))
	for _, ev := range h.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id <= last {
			continue
		}
		if ev.Target != "" && ev.Target != playerID {
			continue
		}
		out = append(out, ev)
	}
	return out
}
