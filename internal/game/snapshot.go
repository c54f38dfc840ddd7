package game

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// persistedRoom is the canonical snapshot written to the session store
// after every mutation. The store checksums and backs it up.
type persistedRoom struct {
	Phase        Phase        `json:"phase"`
	PhaseEndsAt  *time.Time   `json:"phase_ends_at,omitempty"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Players      []Player     `json:"players"`
	Admin        *Player      `json:"admin,omitempty"`
	Submissions  []Submission `json:"submissions,omitempty"`
	Votes        []Vote       `json:"votes,omitempty"`
}

func (r *Room) persistLocked() {
	if r.store == nil {
		return
	}
	snap := persistedRoom{
		Phase:        r.phase,
		PhaseEndsAt:  r.phaseEndsAt,
		StartedAt:    r.startedAt,
		FinishReason: r.finishReason,
		Submissions:  r.submissions,
		Votes:        r.votesCopyLocked(),
	}
	snap.Players = make([]Player, 0, len(r.players))
	for _, p := range r.players {
		snap.Players = append(snap.Players, *p)
	}
	if r.admin != nil {
		a := *r.admin
		snap.Admin = &a
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Str("room_id", r.ID).Err(err).Msg("snapshot marshal failed")
		return
	}
	r.store.SaveSnapshot(r.ID, data)
}

// restore rebuilds a room from a stored snapshot, re-arming the phase timer
// with whatever time remains on the deadline.
func (r *Room) restore(data []byte) error {
	var snap persistedRoom
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.phase = snap.Phase
	r.phaseEndsAt = snap.PhaseEndsAt
	r.startedAt = snap.StartedAt
	r.finishReason = snap.FinishReason
	r.players = make([]*Player, 0, len(snap.Players))
	for i := range snap.Players {
		p := snap.Players[i]
		p.Connected = false
		r.players = append(r.players, &p)
	}
	r.admin = nil
	if snap.Admin != nil {
		a := *snap.Admin
		a.Connected = false
		r.admin = &a
	}
	r.submissions = append([]Submission(nil), snap.Submissions...)
	r.subIndex = map[string]map[int]bool{}
	for _, sub := range r.submissions {
		if r.subIndex[sub.PlayerID] == nil {
			r.subIndex[sub.PlayerID] = map[int]bool{}
		}
		r.subIndex[sub.PlayerID][sub.Round] = true
	}
	r.votes = map[string]map[string]Vote{}
	for _, v := range snap.Votes {
		if r.votes[v.VoterID] == nil {
			r.votes[v.VoterID] = map[string]Vote{}
		}
		r.votes[v.VoterID][v.TargetID] = v
	}
	r.results = nil

	if r.phaseEndsAt != nil && !r.phase.Terminal() {
		r.timerGen++
		gen := r.timerGen
		remaining := time.Until(*r.phaseEndsAt)
		r.timer = time.AfterFunc(remaining, func() { r.timerFire(gen) })
	}
	return nil
}
