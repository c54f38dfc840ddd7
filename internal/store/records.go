package store

import "time"

const historyCap = 32

// ConnEvent is one connect/disconnect transition in a session's history.
type ConnEvent struct {
	At        time.Time `json:"at"`
	Connected bool      `json:"connected"`
}

// SessionRecord is the durable mirror of one player's identity in a room.
// Checksum covers every field but itself.
type SessionRecord struct {
	PlayerID     string      `json:"player_id"`
	Name         string      `json:"name"`
	Token        string      `json:"token"`
	RoomID       string      `json:"room_id"`
	IsAdmin      bool        `json:"is_admin"`
	Connected    bool        `json:"connected"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActive   time.Time   `json:"last_active"`
	ConnectCount int         `json:"connect_count"`
	History      []ConnEvent `json:"history"`
	Checksum     uint64      `json:"checksum"`
}

func (s *SessionRecord) clone() *SessionRecord {
	out := *s
	out.History = append([]ConnEvent(nil), s.History...)
	return &out
}

func (s *SessionRecord) pushHistory(ev ConnEvent) {
	s.History = append(s.History, ev)
	if len(s.History) > historyCap {
		s.History = s.History[len(s.History)-historyCap:]
	}
}

// RoomBackup is a point-in-time copy of a room's durable state.
type RoomBackup struct {
	TakenAt  time.Time
	Sessions map[string]*SessionRecord
	Snapshot []byte
	Checksum uint64
}

type roomRecord struct {
	id           string
	sessions     map[string]*SessionRecord
	snapshot     []byte
	checksum     uint64
	lastVerified time.Time
	lastActive   time.Time
	createdAt    time.Time
	backup       *RoomBackup
}

func (r *roomRecord) cloneSessions() map[string]*SessionRecord {
	out := make(map[string]*SessionRecord, len(r.sessions))
	for id, rec := range r.sessions {
		out[id] = rec.clone()
	}
	return out
}
