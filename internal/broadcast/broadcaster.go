package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"masquerade/internal/game"
)

// Config bounds per-connection buffering and stream lifetimes.
type Config struct {
	HeartbeatInterval  time.Duration
	StreamMaxLifetime  time.Duration
	HeartbeatFailLimit int
	BufferSize         int
	HistorySize        int
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.StreamMaxLifetime <= 0 {
		c.StreamMaxLifetime = 30 * time.Minute
	}
	if c.HeartbeatFailLimit <= 0 {
		c.HeartbeatFailLimit = 3
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 32
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 500
	}
}

// Conn is one logical push connection. The SSE handler drains ch; the
// broadcaster never blocks on it.
type Conn struct {
	ID       int64
	RoomID   string
	PlayerID string
	OpenedAt time.Time

	ch      chan Event
	hbFails int
	closed  bool
}

// Events is the stream the subscriber reads. Closed by the broadcaster on
// terminal failure or max lifetime.
func (c *Conn) Events() <-chan Event {
	return c.ch
}

type roomState struct {
	conns   map[*Conn]struct{}
	history *history
}

// Broadcaster fans orchestrator notifications out to every subscribed
// connection, room by room. It implements game.Sink.
type Broadcaster struct {
	cfg       Config
	startedAt time.Time
	nextConn  atomic.Int64

	mu    sync.Mutex
	rooms map[string]*roomState
}

func New(cfg Config) *Broadcaster {
	cfg.applyDefaults()
	return &Broadcaster{
		cfg:       cfg,
		startedAt: time.Now(),
		rooms:     map[string]*roomState{},
	}
}

func (b *Broadcaster) roomLocked(roomID string) *roomState {
	rs := b.rooms[roomID]
	if rs == nil {
		rs = &roomState{
			conns:   map[*Conn]struct{}{},
			history: newHistory(b.cfg.HistorySize),
		}
		b.rooms[roomID] = rs
	}
	return rs
}

// Publish records the notification in the room's replay window and fans it
// out. Delivery is fire-and-forget: a full buffer drops the event for that
// connection only.
func (b *Broadcaster) Publish(roomID string, n game.Notification) {
	ev := Event{
		Type:     n.Type,
		RoomID:   roomID,
		ServerTS: time.Now().UnixMilli(),
		Payload:  n.Payload,
		Target:   n.TargetPlayerID,
	}

	b.mu.Lock()
	rs := b.roomLocked(roomID)
	ev = rs.history.append(ev)
	for conn := range rs.conns {
		if ev.Target != "" && ev.Target != conn.PlayerID {
			continue
		}
		select {
		case conn.ch <- ev:
		default:
			metricEventsDropped.Add(1)
		}
	}
	b.mu.Unlock()
	metricEventsPublished.Add(1)

	if n.Type == game.EventGameDestroyed {
		b.CloseRoom(roomID)
	}
}

// Subscribe opens a connection and returns it together with the replay:
// a fresh full-state snapshot followed by any retained events after
// lastEventID.
func (b *Broadcaster) Subscribe(roomID, playerID, lastEventID string, state game.StateView) (*Conn, []Event) {
	conn := &Conn{
		ID:       b.nextConn.Add(1),
		RoomID:   roomID,
		PlayerID: playerID,
		OpenedAt: time.Now(),
		ch:       make(chan Event, b.cfg.BufferSize),
	}

	b.mu.Lock()
	rs := b.roomLocked(roomID)
	rs.conns[conn] = struct{}{}
	replay := rs.history.replayAfter(lastEventID, playerID)
	b.mu.Unlock()

	snapshot := Event{
		Type:     game.EventGameState,
		RoomID:   roomID,
		ServerTS: time.Now().UnixMilli(),
		Payload:  game.Payload{State: &state, ConnectionID: conn.ID},
	}
	metricConnsOpened.Add(1)
	return conn, append([]Event{snapshot}, replay...)
}

// Unsubscribe removes the connection and closes its channel.
func (b *Broadcaster) Unsubscribe(conn *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(conn)
}

func (b *Broadcaster) dropLocked(conn *Conn) {
	rs := b.rooms[conn.RoomID]
	if rs == nil {
		return
	}
	if _, ok := rs.conns[conn]; !ok {
		return
	}
	delete(rs.conns, conn)
	if !conn.closed {
		conn.closed = true
		close(conn.ch)
	}
	metricConnsClosed.Add(1)
}

// CloseRoom drops every connection for a room.
func (b *Broadcaster) CloseRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rs := b.rooms[roomID]
	if rs == nil {
		return
	}
	for conn := range rs.conns {
		b.dropLocked(conn)
	}
	delete(b.rooms, roomID)
}

// ConnCount reports open connections for a room.
func (b *Broadcaster) ConnCount(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	rs := b.rooms[roomID]
	if rs == nil {
		return 0
	}
	return len(rs.conns)
}

// Run drives heartbeats and lifetime enforcement until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.heartbeat(now)
		}
	}
}

// heartbeat pushes a liveness frame to every connection. A connection that
// fails delivery HeartbeatFailLimit times in a row, or outlives the hard
// stream lifetime, is closed server-side.
func (b *Broadcaster) heartbeat(now time.Time) {
	uptime := now.Sub(b.startedAt).Milliseconds()

	b.mu.Lock()
	defer b.mu.Unlock()
	for roomID, rs := range b.rooms {
		for conn := range rs.conns {
			if now.Sub(conn.OpenedAt) > b.cfg.StreamMaxLifetime {
				log.Debug().Int64("conn_id", conn.ID).Str("room_id", roomID).Msg("stream max lifetime reached")
				b.dropLocked(conn)
				metricConnsExpired.Add(1)
				continue
			}
			ev := Event{
				Type:     game.EventHeartbeat,
				RoomID:   roomID,
				ServerTS: now.UnixMilli(),
				Payload:  game.Payload{ConnectionID: conn.ID, UptimeMS: uptime},
			}
			select {
			case conn.ch <- ev:
				conn.hbFails = 0
			default:
				conn.hbFails++
				metricHeartbeatFailures.Add(1)
				if conn.hbFails >= b.cfg.HeartbeatFailLimit {
					log.Debug().Int64("conn_id", conn.ID).Str("room_id", roomID).Msg("closing stalled connection")
					b.dropLocked(conn)
				}
			}
		}
	}
}
