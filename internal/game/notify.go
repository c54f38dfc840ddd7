package game

import "time"

type EventType string

const (
	EventGameState          EventType = "game_state"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerLeft         EventType = "player_left"
	EventAdminJoined        EventType = "admin_joined"
	EventAdminLeft          EventType = "admin_left"
	EventPhaseChanged       EventType = "phase_changed"
	EventSubmissionReceived EventType = "submission_received"
	EventVoteReceived       EventType = "vote_received"
	EventTimerUpdate        EventType = "timer_update"
	EventHeartbeat          EventType = "heartbeat"
	EventRoleAssigned       EventType = "role_assigned"
	EventGameDestroyed      EventType = "game_destroyed"
	EventCheatReported      EventType = "cheat_reported"
)

// Payload carries the event-specific data. Exactly the fields relevant to
// the event type are set; everything else stays zero and is omitted on the
// wire.
type Payload struct {
	State        *StateView   `json:"state,omitempty"`
	Player       *PlayerView  `json:"player,omitempty"`
	Phase        Phase        `json:"phase,omitempty"`
	PhaseEndsAt  *time.Time   `json:"phase_ends_at,omitempty"`
	Round        int          `json:"round,omitempty"`
	PlayerID     string       `json:"player_id,omitempty"`
	Submissions  []Submission `json:"submissions,omitempty"`
	Results      *GameResults `json:"results,omitempty"`
	Role         Role         `json:"role,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Detail       string       `json:"detail,omitempty"`
	ConnectionID int64        `json:"connection_id,omitempty"`
	UptimeMS     int64        `json:"uptime_ms,omitempty"`
}

type Notification struct {
	Type EventType `json:"type"`
	Payload

	// TargetPlayerID restricts delivery to a single player's connections.
	// Empty means broadcast to the whole room.
	TargetPlayerID string `json:"-"`
}

// Sink receives orchestrator notifications. Publish must not block; the
// broadcaster buffers per connection and drops on overflow.
type Sink interface {
	Publish(roomID string, n Notification)
}

// NullSink discards every notification.
type NullSink struct{}

func (NullSink) Publish(string, Notification) {}
