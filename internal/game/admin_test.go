package game

import (
	"errors"
	"testing"
	"time"

	"masquerade/internal/store"
)

func newAdminRoom(t *testing.T) (*Room, string, map[string]string, *captureSink) {
	t.Helper()
	room, sink := newTestRoom(t, testSettings())
	admin, err := room.Join("host", true, "")
	if err != nil {
		t.Fatalf("admin join: %v", err)
	}
	ids := fillRoom(t, room, "p1", "p2", "p3")
	return room, admin.Player.ID, ids, sink
}

func TestAdminAuthorization(t *testing.T) {
	room, adminID, ids, _ := newAdminRoom(t)
	if err := room.ForceStart(ids["p1"]); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("player start = %v, want ErrNotAdmin", err)
	}
	if _, err := room.AdminAdvance("imposter"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("unknown caller = %v, want ErrNotAdmin", err)
	}
	if err := room.ForceStart(adminID); err != nil {
		t.Fatalf("admin start: %v", err)
	}
}

func TestAdminForceStartBypassesMinimum(t *testing.T) {
	room, _ := newTestRoom(t, testSettings())
	admin, err := room.Join("host", true, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	fillRoom(t, room, "p1")
	if err := room.Start(); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("plain start = %v, want ErrNotEnoughPlayers", err)
	}
	if err := room.ForceStart(admin.Player.ID); err != nil {
		t.Fatalf("force start: %v", err)
	}
}

func TestAdminKick(t *testing.T) {
	room, adminID, ids, sink := newAdminRoom(t)
	if err := room.AdminKick(adminID, adminID); !errors.Is(err, ErrSelfKick) {
		t.Fatalf("self kick = %v, want ErrSelfKick", err)
	}
	if err := room.AdminKick(ids["p1"], ids["p2"]); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("player kick = %v, want ErrNotAdmin", err)
	}
	if err := room.AdminKick(adminID, "ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("ghost kick = %v, want ErrUnknownPlayer", err)
	}
	if err := room.AdminKick(adminID, ids["p3"]); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(room.StateFor("").Players) != 2 {
		t.Fatal("kicked player still on roster")
	}
	if len(sink.byType(EventPlayerLeft)) != 1 {
		t.Fatal("kick should emit player_left")
	}
	// The kicked identity is gone for good; the name is free again.
	if _, err := room.Join("p3", false, ""); err != nil {
		t.Fatalf("rejoin after kick: %v", err)
	}
}

func TestAdminAssignRole(t *testing.T) {
	room, adminID, ids, _ := newAdminRoom(t)
	if err := room.ForceStart(adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := room.AdminAssignRole(adminID, ids["p1"], Role("wizard")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role = %v, want ErrInvalidRole", err)
	}
	if err := room.AdminAssignRole(adminID, ids["p1"], RoleTroll); err != nil {
		t.Fatalf("assign: %v", err)
	}
	state := room.StateFor(ids["p1"])
	for _, pv := range state.Players {
		if pv.ID == ids["p1"] && pv.Role != RoleTroll {
			t.Fatalf("role = %q, want troll", pv.Role)
		}
	}
}

func TestAdminSetTimer(t *testing.T) {
	room, adminID, _, sink := newAdminRoom(t)
	// No phase deadline exists in the lobby.
	if err := room.AdminSetTimer(adminID, time.Minute); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("lobby timer = %v, want ErrInvalidAction", err)
	}
	if err := room.ForceStart(adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := room.AdminSetTimer(adminID, 0); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("zero timer = %v, want ErrInvalidAction", err)
	}
	before := time.Now()
	if err := room.AdminSetTimer(adminID, 5*time.Minute); err != nil {
		t.Fatalf("set timer: %v", err)
	}
	state := room.StateFor("")
	if state.PhaseEndsAt == nil {
		t.Fatal("no deadline after set_timer")
	}
	remaining := state.PhaseEndsAt.Sub(before)
	if remaining < 4*time.Minute || remaining > 6*time.Minute {
		t.Fatalf("deadline moved to %v from now", remaining)
	}
	if len(sink.byType(EventTimerUpdate)) == 0 {
		t.Fatal("timer_update not emitted")
	}
}

func TestAdminReset(t *testing.T) {
	room, adminID, ids, _ := newAdminRoom(t)
	if err := room.ForceStart(adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	advanceTo(t, room, RoundPhase(1))
	if _, err := room.Submit(ids["p1"], 1, "soon to vanish"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := room.AdminReset(adminID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if room.Phase() != PhaseLobby {
		t.Fatalf("phase = %q, want lobby", room.Phase())
	}
	state := room.StateFor(ids["p1"])
	if len(state.Players) != 3 {
		t.Fatalf("roster = %d, reset must keep players", len(state.Players))
	}
	for _, pv := range state.Players {
		if pv.Role != RoleNone {
			t.Fatalf("role %q survived reset", pv.Role)
		}
	}

	// A fresh game starts clean.
	if err := room.ForceStart(adminID); err != nil {
		t.Fatalf("restart: %v", err)
	}
	advanceTo(t, room, RoundPhase(1))
	if _, err := room.Submit(ids["p1"], 1, "fresh slate"); err != nil {
		t.Fatalf("submit after reset: %v", err)
	}
}

func TestAdminSkipForfeitsPhase(t *testing.T) {
	room, adminID, _, _ := newAdminRoom(t)
	if err := room.ForceStart(adminID); err != nil {
		t.Fatalf("start: %v", err)
	}
	moved, err := room.AdminSkip(adminID)
	if err != nil || !moved {
		t.Fatalf("skip = (%v, %v)", moved, err)
	}
	if room.Phase() != RoundPhase(1) {
		t.Fatalf("phase = %q, want round_1", room.Phase())
	}
}

func TestRegistryDestroy(t *testing.T) {
	st := store.New(store.Config{})
	reg := NewRegistry(testSettings(), NullSink{}, st)

	room := reg.GetOrCreate("doomed")
	admin, err := room.Join("host", true, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := reg.Destroy(admin.Player.ID, "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("destroy missing = %v, want ErrRoomNotFound", err)
	}
	if err := reg.Destroy("stranger", "doomed"); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("destroy by stranger = %v, want ErrNotAdmin", err)
	}
	if err := reg.Destroy(admin.Player.ID, "doomed"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, ok := reg.Lookup("doomed"); ok {
		t.Fatal("room still registered after destroy")
	}
	if _, ok := st.Snapshot("doomed"); ok {
		t.Fatal("store kept the destroyed room")
	}

	// The id is reusable; a new room starts from scratch.
	fresh := reg.GetOrCreate("doomed")
	defer fresh.Close()
	if fresh.Phase() != PhaseLobby {
		t.Fatalf("fresh room phase = %q", fresh.Phase())
	}
}
