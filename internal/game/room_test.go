package game

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"masquerade/internal/store"
)

func testSettings() Settings {
	return Settings{
		MinPlayers:         3,
		MaxPlayers:         5,
		Rounds:             2,
		RoundDuration:      time.Hour,
		VotingDuration:     time.Hour,
		RoleRevealDuration: time.Hour,
		ResultsDuration:    time.Hour,
		MaxContentLen:      40,
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []Notification
}

func (s *captureSink) Publish(_ string, n Notification) {
	s.mu.Lock()
	s.events = append(s.events, n)
	s.mu.Unlock()
}

func (s *captureSink) byType(t EventType) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, n := range s.events {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func newTestRoom(t *testing.T, settings Settings) (*Room, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	room := NewRoom("test-room", settings, sink, nil)
	t.Cleanup(room.Close)
	return room, sink
}

func fillRoom(t *testing.T, room *Room, names ...string) map[string]string {
	t.Helper()
	ids := map[string]string{}
	for _, name := range names {
		res, err := room.Join(name, false, "")
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		ids[name] = res.Player.ID
	}
	return ids
}

func TestJoinNameCollisionCaseInsensitive(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	if _, err := room.Join("Alice", false, ""); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := room.Join("alice", false, ""); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("lowercase collision = %v, want ErrNameTaken", err)
	}
	if _, err := room.Join("  ALICE  ", false, ""); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("padded collision = %v, want ErrNameTaken", err)
	}
	if _, err := room.Join("   ", false, ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("blank name = %v, want ErrInvalidName", err)
	}
}

func TestJoinCapacityAndAdminSlot(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	fillRoom(t, room, "p1", "p2", "p3", "p4", "p5")
	if _, err := room.Join("p6", false, ""); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("over capacity = %v, want ErrRoomFull", err)
	}
	// The admin slot is outside the regular capacity.
	if _, err := room.Join("host", true, ""); err != nil {
		t.Fatalf("admin join: %v", err)
	}
	if _, err := room.Join("host2", true, ""); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("second admin = %v, want ErrAdminExists", err)
	}
}

func TestRejoinIdempotent(t *testing.T) {
	st := store.New(store.Config{})
	sink := &captureSink{}
	room := NewRoom("rejoin-room", testSettings(), sink, st)
	defer room.Close()

	first, err := room.Join("alice", false, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if first.Token == "" {
		t.Fatal("expected a token on join")
	}
	fillRoom(t, room, "bob", "carol")

	again, err := room.Join("alice", false, first.Token)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if !again.Rejoined || again.Player.ID != first.Player.ID {
		t.Fatalf("rejoin = %+v, want same identity", again)
	}
	if n := len(room.StateFor("").Players); n != 3 {
		t.Fatalf("roster size after rejoin = %d, want 3", n)
	}

	// The token keeps working after the lobby closes.
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	mid, err := room.Join("alice", false, first.Token)
	if err != nil {
		t.Fatalf("mid-game rejoin: %v", err)
	}
	if !mid.Rejoined || mid.Player.ID != first.Player.ID {
		t.Fatalf("mid-game rejoin = %+v", mid)
	}
	// A fresh name cannot enter once the game is running.
	if _, err := room.Join("dave", false, ""); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("late join = %v, want ErrWrongPhase", err)
	}
}

func TestStartRequiresMinimum(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	fillRoom(t, room, "p1", "p2")
	if err := room.Start(); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("start = %v, want ErrNotEnoughPlayers", err)
	}
	if _, err := room.Advance(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("advance in lobby = %v, want ErrWrongPhase", err)
	}
}

func TestStartAssignsRoles(t *testing.T) {
	room, sink := newTestRoom(t, testSettings())
	ids := fillRoom(t, room, "p1", "p2", "p3", "p4")
	admin, err := room.Join("host", true, "")
	if err != nil {
		t.Fatalf("admin join: %v", err)
	}
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if room.Phase() != PhaseRoleReveal {
		t.Fatalf("phase = %q", room.Phase())
	}
	if err := room.Start(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("double start = %v, want ErrWrongPhase", err)
	}

	assigned := sink.byType(EventRoleAssigned)
	if len(assigned) != 5 {
		t.Fatalf("role_assigned count = %d, want 5", len(assigned))
	}
	seen := map[string]bool{}
	for _, n := range assigned {
		if n.TargetPlayerID == "" {
			t.Fatal("role assignment must be targeted")
		}
		if !ValidRole(n.Payload.Role) {
			t.Fatalf("invalid role %q", n.Payload.Role)
		}
		seen[n.TargetPlayerID] = true
	}
	for name, id := range ids {
		if !seen[id] {
			t.Fatalf("no role for %s", name)
		}
	}
	if !seen[admin.Player.ID] {
		t.Fatal("admin plays too and needs a role")
	}
}

func TestPhaseMonotonicity(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	prev := room.Phase()
	for i := 0; i < 10; i++ {
		moved, err := room.Advance()
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		cur := room.Phase()
		if !moved {
			if cur != PhaseFinished {
				t.Fatalf("stalled at %q", cur)
			}
			return
		}
		want, ok := prev.Next(room.Settings().Rounds)
		if !ok || cur != want {
			t.Fatalf("advanced %q -> %q, want %q", prev, cur, want)
		}
		prev = cur
	}
	t.Fatal("never reached the terminal phase")
}

func advanceTo(t *testing.T, room *Room, target Phase) {
	t.Helper()
	for room.Phase() != target {
		moved, err := room.Advance()
		if err != nil {
			t.Fatalf("advance toward %q: %v", target, err)
		}
		if !moved {
			t.Fatalf("cannot reach %q, stuck at %q", target, room.Phase())
		}
	}
}

func TestSubmitRules(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	ids := fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := room.Submit(ids["p1"], 1, "too early"); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("submit in role_reveal = %v, want ErrWrongPhase", err)
	}

	advanceTo(t, room, RoundPhase(1))
	if _, err := room.Submit(ids["p1"], 2, "wrong round"); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("future round = %v, want ErrWrongPhase", err)
	}
	if _, err := room.Submit(ids["p1"], 0, "bad"); !errors.Is(err, ErrInvalidRound) {
		t.Fatalf("round 0 = %v, want ErrInvalidRound", err)
	}
	if _, err := room.Submit(ids["p1"], 1, "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("blank = %v, want ErrEmptyContent", err)
	}
	if _, err := room.Submit(ids["p1"], 1, strings.Repeat("x", 41)); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("oversize = %v, want ErrContentTooLong", err)
	}
	if _, err := room.Submit("nobody", 1, "hello"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("stranger = %v, want ErrUnknownPlayer", err)
	}

	sub, err := room.Submit(ids["p1"], 1, "definitely a human sentence")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.ID == "" || sub.Round != 1 {
		t.Fatalf("submission = %+v", sub)
	}
	if _, err := room.Submit(ids["p1"], 1, "second try"); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("duplicate = %v, want ErrDuplicateSubmission", err)
	}

	// Next round opens a fresh slot for the same player.
	advanceTo(t, room, RoundPhase(2))
	if _, err := room.Submit(ids["p1"], 2, "round two thoughts"); err != nil {
		t.Fatalf("round 2 submit: %v", err)
	}
}

func TestVoteReplacement(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	ids := fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := room.Vote(ids["p1"], ids["p2"], RoleTroll); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("vote before voting = %v, want ErrWrongPhase", err)
	}

	advanceTo(t, room, PhaseVoting)
	if _, err := room.Vote(ids["p1"], ids["p1"], RoleTroll); !errors.Is(err, ErrSelfVote) {
		t.Fatalf("self vote = %v, want ErrSelfVote", err)
	}
	if _, err := room.Vote(ids["p1"], ids["p2"], Role("wizard")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role = %v, want ErrInvalidRole", err)
	}

	if _, err := room.Vote(ids["p1"], ids["p2"], RoleTroll); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := room.Vote(ids["p1"], ids["p2"], RoleAIUser); err != nil {
		t.Fatalf("revote: %v", err)
	}

	advanceTo(t, room, PhaseResults)
	res := room.Results()
	if res == nil {
		t.Fatal("no results")
	}
	if res.Stats.TotalVotes != 1 {
		t.Fatalf("total votes = %d, want 1 (revote replaces)", res.Stats.TotalVotes)
	}
	var target PlayerScore
	for _, s := range res.Scores {
		if s.PlayerID == ids["p2"] {
			target = s
		}
	}
	if target.MostVotedRole != RoleAIUser {
		t.Fatalf("most voted role = %q, want the replacement", target.MostVotedRole)
	}
}

func TestLeaveBelowMinimumFinishes(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	ids := fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	advanceTo(t, room, RoundPhase(1))

	if !room.Leave(ids["p3"]) {
		t.Fatal("leave failed")
	}
	if room.Phase() != PhaseFinished {
		t.Fatalf("phase = %q, want finished", room.Phase())
	}
	state := room.StateFor("")
	if state.FinishReason != "insufficient_players" {
		t.Fatalf("finish reason = %q", state.FinishReason)
	}
}

func TestStateForScopesRoles(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	ids := fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	advanceTo(t, room, RoundPhase(1))

	state := room.StateFor(ids["p1"])
	for _, pv := range state.Players {
		if pv.ID == ids["p1"] {
			if pv.Role == RoleNone {
				t.Fatal("own role should be visible")
			}
			continue
		}
		if pv.Role != RoleNone {
			t.Fatalf("role of %s leaked mid-game", pv.Name)
		}
	}

	advanceTo(t, room, PhaseResults)
	state = room.StateFor(ids["p1"])
	for _, pv := range state.Players {
		if pv.Role == RoleNone {
			t.Fatalf("role of %s hidden at results", pv.Name)
		}
	}
	if state.Results == nil {
		t.Fatal("results missing from results-phase state")
	}
}

func TestAutoStart(t *testing.T) {
	settings := testSettings()
	settings.AutoStartThreshold = 3
	settings.AutoStartGrace = 10 * time.Millisecond
	room, _ := newTestRoom(t, settings)
	fillRoom(t, room, "p1", "p2", "p3")

	deadline := time.Now().Add(2 * time.Second)
	for room.Phase() == PhaseLobby {
		if time.Now().After(deadline) {
			t.Fatal("auto-start never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if room.Phase() != PhaseRoleReveal {
		t.Fatalf("phase = %q, want role_reveal", room.Phase())
	}
}

func TestSnapshotRestore(t *testing.T) {
	st := store.New(store.Config{})
	sink := &captureSink{}
	room := NewRoom("persist-room", testSettings(), sink, st)
	st.GetOrCreateRoom("persist-room")
	ids := fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	advanceTo(t, room, RoundPhase(1))
	if _, err := room.Submit(ids["p1"], 1, "before the crash"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	room.Close()

	data, ok := st.Snapshot("persist-room")
	if !ok {
		t.Fatal("no snapshot saved")
	}
	revived := NewRoom("persist-room", testSettings(), sink, st)
	defer revived.Close()
	if err := revived.restore(data); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if revived.Phase() != RoundPhase(1) {
		t.Fatalf("restored phase = %q", revived.Phase())
	}
	state := revived.StateFor(ids["p1"])
	if len(state.Players) != 3 {
		t.Fatalf("restored roster = %d", len(state.Players))
	}
	for _, pv := range state.Players {
		if pv.Connected {
			t.Fatalf("player %s should come back disconnected", pv.Name)
		}
	}
	if _, err := revived.Submit(ids["p1"], 1, "again"); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("restored submission index = %v, want ErrDuplicateSubmission", err)
	}
}

func TestRegistryRestoresBeforePublishing(t *testing.T) {
	st := store.New(store.Config{})
	sink := &captureSink{}
	room := NewRoom("revive-room", testSettings(), sink, st)
	st.GetOrCreateRoom("revive-room")
	fillRoom(t, room, "p1", "p2", "p3")
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	room.Close()

	// First access from many goroutines at once: every caller must see the
	// restored roster, never the empty room from before the snapshot load.
	reg := NewRegistry(testSettings(), sink, st)
	var wg sync.WaitGroup
	rooms := make([]*Room, 8)
	rosters := make([]int, 8)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := reg.GetOrCreate("revive-room")
			rooms[i] = r
			rosters[i] = len(r.StateFor("").Players)
		}(i)
	}
	wg.Wait()
	defer rooms[0].Close()

	for i := range rooms {
		if rooms[i] != rooms[0] {
			t.Fatal("concurrent first access produced distinct room instances")
		}
		if rosters[i] != 3 {
			t.Fatalf("caller %d saw %d players, want the restored 3", i, rosters[i])
		}
	}
	if rooms[0].Phase() == PhaseLobby {
		t.Fatalf("phase = %q, snapshot not applied", rooms[0].Phase())
	}
}

func TestDestroyedRoomRejectsEverything(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	admin, err := room.Join("host", true, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	fillRoom(t, room, "p1", "p2", "p3")
	if err := room.AdminDestroy(admin.Player.ID); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := room.Join("late", false, ""); !errors.Is(err, ErrRoomDestroyed) {
		t.Fatalf("join after destroy = %v, want ErrRoomDestroyed", err)
	}
}
