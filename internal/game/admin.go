package game

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Admin operations. Every one of them verifies the caller against the
// session's registered admin id before touching anything.

func (r *Room) requireAdminLocked(adminID string) error {
	if r.admin == nil || adminID == "" || r.admin.ID != adminID {
		return ErrNotAdmin
	}
	return nil
}

func (r *Room) AdminAdvance(adminID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return false, err
	}
	return r.advanceLocked()
}

// AdminSkip forfeits the running phase timer and moves on immediately.
func (r *Room) AdminSkip(adminID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return false, err
	}
	return r.advanceLocked()
}

// AdminAssignRole overrides a participant's role.
func (r *Room) AdminAssignRole(adminID, targetID string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return err
	}
	if !ValidRole(role) {
		return ErrInvalidRole
	}
	p := r.findLocked(targetID)
	if p == nil {
		return ErrUnknownPlayer
	}
	p.Role = role
	r.persistLocked()
	r.publishLocked(Notification{
		Type:           EventRoleAssigned,
		TargetPlayerID: targetID,
		Payload:        Payload{PlayerID: targetID, Role: role},
	})
	return nil
}

// AdminKick removes another participant. Kicking yourself is rejected;
// leave exists for that.
func (r *Room) AdminKick(adminID, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return err
	}
	if targetID == adminID {
		return ErrSelfKick
	}
	if !r.leaveLocked(targetID) {
		return ErrUnknownPlayer
	}
	log.Info().Str("room_id", r.ID).Str("player_id", targetID).Msg("player kicked")
	return nil
}

// AdminSetTimer moves the current phase deadline to now+d and re-arms.
func (r *Room) AdminSetTimer(adminID string, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return err
	}
	if r.phaseEndsAt == nil || d <= 0 {
		return ErrInvalidAction
	}
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
	}
	ends := r.now().Add(d)
	r.phaseEndsAt = &ends
	gen := r.timerGen
	r.timer = time.AfterFunc(d, func() { r.timerFire(gen) })
	r.persistLocked()
	r.publishLocked(Notification{Type: EventTimerUpdate, Payload: Payload{Phase: r.phase, PhaseEndsAt: r.phaseEndsAt}})
	return nil
}

// AdminReset returns the room to an empty-handed lobby. The roster stays;
// roles, submissions, votes, and results are cleared.
func (r *Room) AdminReset(adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return err
	}
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancelAutoStartLocked()

	r.phase = PhaseLobby
	r.phaseEndsAt = nil
	r.startedAt = nil
	r.submissions = nil
	r.subIndex = map[string]map[int]bool{}
	r.votes = map[string]map[string]Vote{}
	r.results = nil
	r.finishReason = ""
	for _, p := range r.participantsLocked() {
		p.Role = RoleNone
	}
	r.persistLocked()
	state := r.stateForLocked("")
	r.publishLocked(Notification{Type: EventGameState, Payload: Payload{State: &state}})
	log.Info().Str("room_id", r.ID).Msg("room reset")
	return nil
}

// AdminDestroy tears the room down. The registry removes the instance and
// the store forgets the room.
func (r *Room) AdminDestroy(adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return err
	}
	r.publishLocked(Notification{Type: EventGameDestroyed, Payload: Payload{Reason: "destroyed_by_admin"}})
	r.closeLocked()
	if r.store != nil {
		r.store.DeleteRoom(r.ID)
	}
	log.Info().Str("room_id", r.ID).Msg("room destroyed")
	return nil
}
