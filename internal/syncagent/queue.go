package syncagent

import (
	"sync"
	"time"

	"masquerade/internal/game"
)

type ActionKind string

const (
	ActionSubmit ActionKind = "submit"
	ActionVote   ActionKind = "vote"
)

// Action is one user intent captured while offline, replayed FIFO against
// the authoritative API once connectivity returns.
type Action struct {
	Seq           int64      `json:"seq"`
	PlayerID      string     `json:"player_id"`
	Kind          ActionKind `json:"kind"`
	Round         int        `json:"round,omitempty"`
	Content       string     `json:"content,omitempty"`
	TargetID      string     `json:"target_id,omitempty"`
	PredictedRole game.Role  `json:"predicted_role,omitempty"`
	QueuedAt      time.Time  `json:"queued_at"`
}

// Queue is the local durable action log. Implementations must preserve
// enqueue order per player.
type Queue interface {
	Enqueue(a Action) error
	Drain(playerID string) ([]Action, error)
	// ClearThrough removes the player's actions up to and including seq,
	// leaving anything enqueued after the corresponding Drain intact.
	ClearThrough(playerID string, seq int64) error
	Clear(playerID string) error
	Close() error
}

// MemoryQueue keeps actions in process memory. Used in tests and when no
// queue path is configured.
type MemoryQueue struct {
	mu      sync.Mutex
	nextSeq int64
	actions []Action
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(a Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	a.Seq = q.nextSeq
	q.actions = append(q.actions, a)
	return nil
}

func (q *MemoryQueue) Drain(playerID string) ([]Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Action, 0, len(q.actions))
	for _, a := range q.actions {
		if a.PlayerID == playerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *MemoryQueue) ClearThrough(playerID string, seq int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.actions[:0]
	for _, a := range q.actions {
		if a.PlayerID != playerID || a.Seq > seq {
			kept = append(kept, a)
		}
	}
	q.actions = kept
	return nil
}

func (q *MemoryQueue) Clear(playerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.actions[:0]
	for _, a := range q.actions {
		if a.PlayerID != playerID {
			kept = append(kept, a)
		}
	}
	q.actions = kept
	return nil
}

func (q *MemoryQueue) Close() error { return nil }
