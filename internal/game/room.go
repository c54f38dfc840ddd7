package game

import (
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"masquerade/internal/store"
)

// Room is the authoritative orchestrator for one game session. All mutating
// operations, including timer expiries, serialize on its mutex; reads hand
// out copies, never live references.
type Room struct {
	ID string

	settings Settings
	sink     Sink
	store    *store.SessionStore

	mu           sync.Mutex
	phase        Phase
	phaseEndsAt  *time.Time
	startedAt    *time.Time
	createdAt    time.Time
	players      []*Player
	admin        *Player
	submissions  []Submission
	subIndex     map[string]map[int]bool
	votes        map[string]map[string]Vote
	results      *GameResults
	finishReason string
	destroyed    bool

	timerGen uint64
	timer    *time.Timer
	autoGen  uint64
	auto     *time.Timer

	rnd *rand.Rand
	now func() time.Time
}

func NewRoom(id string, settings Settings, sink Sink, st *store.SessionStore) *Room {
	if sink == nil {
		sink = NullSink{}
	}
	return &Room{
		ID:        id,
		settings:  settings,
		sink:      sink,
		store:     st,
		phase:     PhaseLobby,
		createdAt: time.Now(),
		subIndex:  map[string]map[int]bool{},
		votes:     map[string]map[string]Vote{},
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
	}
}

func (r *Room) Settings() Settings {
	return r.settings
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// JoinResult is what a successful join hands back to the transport layer.
type JoinResult struct {
	Player   Player
	Token    string
	Rejoined bool
}

// Join admits a new participant, or restores a prior identity when the
// presented token resolves to a session with a matching name.
func (r *Room) Join(name string, asAdmin bool, token string) (JoinResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return JoinResult{}, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return JoinResult{}, ErrRoomDestroyed
	}

	if token != "" && r.store != nil {
		if sess, ok := r.store.SessionByToken(r.ID, token); ok && strings.EqualFold(sess.Name, name) {
			if p := r.findLocked(sess.PlayerID); p != nil {
				// Idempotent rejoin: same id, no duplicate roster entry.
				p.Connected = true
				p.LastSeen = r.now()
				r.store.SetConnected(r.ID, p.ID, true)
				return JoinResult{Player: *p, Token: token, Rejoined: true}, nil
			}
			if r.phase == PhaseLobby {
				return r.admitLocked(sess.PlayerID, name, sess.IsAdmin, token)
			}
			return JoinResult{}, ErrWrongPhase
		}
	}

	if r.phase != PhaseLobby {
		return JoinResult{}, ErrWrongPhase
	}
	if r.nameTakenLocked(name) {
		return JoinResult{}, ErrNameTaken
	}
	if asAdmin && r.admin != nil {
		return JoinResult{}, ErrAdminExists
	}
	if !asAdmin && len(r.players) >= r.settings.MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}
	return r.admitLocked(store.NewID(), name, asAdmin, "")
}

func (r *Room) admitLocked(playerID, name string, asAdmin bool, token string) (JoinResult, error) {
	if asAdmin && r.admin != nil {
		return JoinResult{}, ErrAdminExists
	}
	if !asAdmin && len(r.players) >= r.settings.MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}
	now := r.now()
	p := &Player{
		ID:        playerID,
		Name:      name,
		JoinedAt:  now,
		LastSeen:  now,
		Connected: true,
		IsAdmin:   asAdmin,
	}
	if asAdmin {
		r.admin = p
	} else {
		r.players = append(r.players, p)
	}

	if r.store != nil {
		sess := r.store.CreateOrRestoreSession(r.ID, p.ID, name, asAdmin)
		token = sess.Token
	}
	r.persistLocked()

	ev := EventPlayerJoined
	if asAdmin {
		ev = EventAdminJoined
	}
	view := p.view(false)
	r.publishLocked(Notification{Type: ev, Payload: Payload{Player: &view}})
	metricJoins.Add(1)

	r.maybeAutoStartLocked()
	return JoinResult{Player: *p, Token: token}, nil
}

// Leave removes a player or clears the admin slot. Outside the lobby, the
// session ends when the remaining connected roster drops below the minimum.
func (r *Room) Leave(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(playerID)
}

func (r *Room) leaveLocked(playerID string) bool {
	if r.admin != nil && r.admin.ID == playerID {
		view := r.admin.view(false)
		r.admin = nil
		if r.store != nil {
			r.store.RemoveSession(r.ID, playerID)
		}
		r.persistLocked()
		r.publishLocked(Notification{Type: EventAdminLeft, Payload: Payload{Player: &view}})
		return true
	}
	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	view := r.players[idx].view(false)
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	if r.store != nil {
		r.store.RemoveSession(r.ID, playerID)
	}
	r.persistLocked()
	r.publishLocked(Notification{Type: EventPlayerLeft, Payload: Payload{Player: &view, PlayerID: playerID}})

	if r.settings.AutoStartThreshold > 0 && len(r.players) < r.settings.AutoStartThreshold {
		r.cancelAutoStartLocked()
	}
	if r.phase != PhaseLobby && !r.phase.Terminal() && r.connectedCountLocked() < r.settings.MinPlayers {
		r.finishLocked("insufficient_players")
	}
	return true
}

// SetConnectionState marks a participant connected or disconnected. It never
// removes the player; eviction of stale sessions is the store's policy.
func (r *Room) SetConnectionState(playerID string, connected bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.findLocked(playerID)
	if p == nil {
		return false
	}
	p.Connected = connected
	p.LastSeen = r.now()
	if r.store != nil {
		r.store.SetConnected(r.ID, playerID, connected)
	}
	return true
}

// Start begins the game from the lobby, assigning one role to every
// participant including the admin.
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(false)
}

// ForceStart is the admin's start that bypasses the minimum-player check.
func (r *Room) ForceStart(adminID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireAdminLocked(adminID); err != nil {
		return err
	}
	return r.startLocked(true)
}

func (r *Room) startLocked(force bool) error {
	if r.destroyed {
		return ErrRoomDestroyed
	}
	if r.phase != PhaseLobby {
		return ErrWrongPhase
	}
	if !force && len(r.players) < r.settings.MinPlayers {
		return ErrNotEnoughPlayers
	}
	r.cancelAutoStartLocked()

	participants := r.participantsLocked()
	pool := shuffledPool(len(participants), r.rnd)
	for i, p := range participants {
		p.Role = pool[i]
	}
	now := r.now()
	r.startedAt = &now
	for _, p := range participants {
		r.publishLocked(Notification{
			Type:           EventRoleAssigned,
			TargetPlayerID: p.ID,
			Payload:        Payload{PlayerID: p.ID, Role: p.Role},
		})
	}
	r.transitionLocked(PhaseRoleReveal)
	metricGamesStarted.Add(1)
	log.Info().Str("room_id", r.ID).Int("players", len(participants)).Msg("game started")
	return nil
}

// Advance moves to the next phase in sequence. It is a no-op at the
// terminal phase and invalid in the lobby, where Start is required.
func (r *Room) Advance() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advanceLocked()
}

func (r *Room) advanceLocked() (bool, error) {
	if r.destroyed {
		return false, ErrRoomDestroyed
	}
	if r.phase.Terminal() {
		return false, nil
	}
	if r.phase == PhaseLobby {
		return false, ErrWrongPhase
	}
	next, ok := r.phase.Next(r.settings.Rounds)
	if !ok {
		return false, nil
	}
	r.transitionLocked(next)
	return true, nil
}

// transitionLocked applies the phase change, re-arms the phase timer, and
// emits phase_changed with phase-appropriate attachments.
func (r *Room) transitionLocked(next Phase) {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	r.phase = next
	dur := r.phaseDuration(next)
	if dur > 0 {
		ends := r.now().Add(dur)
		r.phaseEndsAt = &ends
		gen := r.timerGen
		r.timer = time.AfterFunc(dur, func() { r.timerFire(gen) })
	} else {
		r.phaseEndsAt = nil
	}

	payload := Payload{Phase: next, PhaseEndsAt: r.phaseEndsAt}
	switch {
	case next == PhaseVoting:
		payload.Submissions = r.submissionsCopyLocked()
	case next == PhaseResults:
		r.results = r.computeResultsLocked()
		payload.Results = r.results
	}
	if r.finishReason != "" && next == PhaseFinished {
		payload.Reason = r.finishReason
	}
	r.persistLocked()
	r.publishLocked(Notification{Type: EventPhaseChanged, Payload: payload})
	metricPhaseChanges.Add(1)
}

func (r *Room) timerFire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed || gen != r.timerGen {
		return
	}
	if _, err := r.advanceLocked(); err != nil {
		log.Warn().Str("room_id", r.ID).Err(err).Msg("phase timer advance rejected")
	}
}

func (r *Room) phaseDuration(p Phase) time.Duration {
	switch p {
	case PhaseRoleReveal:
		return r.settings.RoleRevealDuration
	case PhaseVoting:
		return r.settings.VotingDuration
	case PhaseResults:
		return r.settings.ResultsDuration
	}
	if _, ok := p.Round(); ok {
		return r.settings.RoundDuration
	}
	return 0
}

// Submit records a player's content for the current round. One submission
// per (player, round); immutable once accepted.
func (r *Room) Submit(playerID string, round int, content string) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return Submission{}, ErrRoomDestroyed
	}
	if round < 1 || round > r.settings.Rounds {
		return Submission{}, ErrInvalidRound
	}
	if r.phase != RoundPhase(round) {
		return Submission{}, ErrWrongPhase
	}
	p := r.findLocked(playerID)
	if p == nil {
		return Submission{}, ErrUnknownPlayer
	}
	if strings.TrimSpace(content) == "" {
		return Submission{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > r.settings.MaxContentLen {
		return Submission{}, ErrContentTooLong
	}
	if r.subIndex[playerID][round] {
		return Submission{}, ErrDuplicateSubmission
	}

	sub := Submission{
		ID:          store.NewID(),
		PlayerID:    playerID,
		Round:       round,
		Content:     content,
		SubmittedAt: r.now(),
	}
	r.submissions = append(r.submissions, sub)
	if r.subIndex[playerID] == nil {
		r.subIndex[playerID] = map[int]bool{}
	}
	r.subIndex[playerID][round] = true
	p.LastSeen = sub.SubmittedAt
	r.persistLocked()
	r.publishLocked(Notification{Type: EventSubmissionReceived, Payload: Payload{PlayerID: playerID, Round: round}})
	metricSubmissions.Add(1)
	return sub, nil
}

// Vote records a role prediction against another participant, replacing any
// prior vote for the same (voter, target) pair.
func (r *Room) Vote(voterID, targetID string, predicted Role) (Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return Vote{}, ErrRoomDestroyed
	}
	if r.phase != PhaseVoting {
		return Vote{}, ErrWrongPhase
	}
	if voterID == targetID {
		return Vote{}, ErrSelfVote
	}
	if r.findLocked(voterID) == nil || r.findLocked(targetID) == nil {
		return Vote{}, ErrUnknownPlayer
	}
	if !ValidRole(predicted) {
		return Vote{}, ErrInvalidRole
	}

	v := Vote{
		ID:            store.NewID(),
		VoterID:       voterID,
		TargetID:      targetID,
		PredictedRole: predicted,
		SubmittedAt:   r.now(),
	}
	if r.votes[voterID] == nil {
		r.votes[voterID] = map[string]Vote{}
	}
	r.votes[voterID][targetID] = v
	r.persistLocked()
	r.publishLocked(Notification{Type: EventVoteReceived, Payload: Payload{PlayerID: voterID}})
	metricVotes.Add(1)
	return v, nil
}

// Results computes (or returns the cached) final scores. Safe to call
// repeatedly; pure given unchanged inputs.
func (r *Room) Results() *GameResults {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results != nil {
		return r.results
	}
	return r.computeResultsLocked()
}

func (r *Room) computeResultsLocked() *GameResults {
	participants := r.participantsLocked()
	players := make([]Player, 0, len(participants))
	for _, p := range participants {
		players = append(players, *p)
	}
	started := r.createdAt
	if r.startedAt != nil {
		started = *r.startedAt
	}
	return ComputeResults(players, r.submissionsCopyLocked(), r.votesCopyLocked(), started, r.now())
}

// ReportCheat is the hook the cosmetic cheat-detection layer calls. It only
// records and notifies; no enforcement happens here.
func (r *Room) ReportCheat(reporterID, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(reporterID) == nil {
		return ErrUnknownPlayer
	}
	metricCheatReports.Add(1)
	log.Info().Str("room_id", r.ID).Str("player_id", reporterID).Msg("cheat reported")
	r.publishLocked(Notification{Type: EventCheatReported, Payload: Payload{PlayerID: reporterID, Detail: detail}})
	return nil
}

// StateFor returns a caller-scoped snapshot: private roles are visible only
// on the caller's own entry until results are in.
func (r *Room) StateFor(callerID string) StateView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateForLocked(callerID)
}

func (r *Room) stateForLocked(callerID string) StateView {
	reveal := r.phase == PhaseResults || r.phase.Terminal()
	view := StateView{
		RoomID:       r.ID,
		Phase:        r.phase,
		StartedAt:    r.startedAt,
		Rounds:       r.settings.Rounds,
		MinPlayers:   r.settings.MinPlayers,
		MaxPlayers:   r.settings.MaxPlayers,
		FinishReason: r.finishReason,
	}
	if r.phaseEndsAt != nil {
		ends := *r.phaseEndsAt
		view.PhaseEndsAt = &ends
	}
	view.Players = make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		view.Players = append(view.Players, p.view(reveal || p.ID == callerID))
	}
	if r.admin != nil {
		av := r.admin.view(reveal || r.admin.ID == callerID)
		view.Admin = &av
	}
	if r.phase == PhaseVoting {
		view.Submissions = r.submissionsCopyLocked()
	}
	if reveal && r.results != nil {
		view.Results = r.results
	}
	return view
}

func (r *Room) finishLocked(reason string) {
	r.finishReason = reason
	r.transitionLocked(PhaseFinished)
}

func (r *Room) maybeAutoStartLocked() {
	t := r.settings.AutoStartThreshold
	if t <= 0 || r.phase != PhaseLobby || r.auto != nil || len(r.players) < t {
		return
	}
	r.autoGen++
	gen := r.autoGen
	grace := r.settings.AutoStartGrace
	r.auto = time.AfterFunc(grace, func() { r.autoStartFire(gen) })
	log.Info().Str("room_id", r.ID).Dur("grace", grace).Msg("auto-start armed")
}

func (r *Room) autoStartFire(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.autoGen || r.phase != PhaseLobby {
		return
	}
	r.auto = nil
	if err := r.startLocked(false); err != nil {
		log.Warn().Str("room_id", r.ID).Err(err).Msg("auto-start rejected")
	}
}

func (r *Room) cancelAutoStartLocked() {
	r.autoGen++
	if r.auto != nil {
		r.auto.Stop()
		r.auto = nil
	}
}

// Close cancels all timers. Used on eviction and destroy.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Room) closeLocked() {
	r.destroyed = true
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancelAutoStartLocked()
}

func (r *Room) findLocked(playerID string) *Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	if r.admin != nil && r.admin.ID == playerID {
		return r.admin
	}
	return nil
}

func (r *Room) nameTakenLocked(name string) bool {
	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return r.admin != nil && strings.EqualFold(r.admin.Name, name)
}

// participantsLocked returns regular players in roster order, admin last.
func (r *Room) participantsLocked() []*Player {
	out := make([]*Player, 0, len(r.players)+1)
	out = append(out, r.players...)
	if r.admin != nil {
		out = append(out, r.admin)
	}
	return out
}

func (r *Room) connectedCountLocked() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (r *Room) submissionsCopyLocked() []Submission {
	return append([]Submission(nil), r.submissions...)
}

// votesCopyLocked flattens the replace-on-revote map in deterministic
// participant order so scoring stays stable across calls.
func (r *Room) votesCopyLocked() []Vote {
	participants := r.participantsLocked()
	out := make([]Vote, 0, len(r.votes))
	for _, voter := range participants {
		targets := r.votes[voter.ID]
		if targets == nil {
			continue
		}
		for _, target := range participants {
			if v, ok := targets[target.ID]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func (r *Room) publishLocked(n Notification) {
	r.sink.Publish(r.ID, n)
}
