package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"masquerade/internal/broadcast"
	"masquerade/internal/game"
	"masquerade/internal/store"

	"github.com/go-chi/chi/v5"
)

type RoomHandlers struct {
	reg *game.Registry
	st  *store.SessionStore
	bc  *broadcast.Broadcaster
}

func NewRoomHandlers(reg *game.Registry, st *store.SessionStore, bc *broadcast.Broadcaster) *RoomHandlers {
	return &RoomHandlers{reg: reg, st: st, bc: bc}
}

// writeGameError maps domain sentinels onto the HTTP error taxonomy:
// validation 400, state conflict 409, identity 401/403, missing 404/410.
func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, game.ErrInvalidName),
		errors.Is(err, game.ErrInvalidRound),
		errors.Is(err, game.ErrEmptyContent),
		errors.Is(err, game.ErrContentTooLong),
		errors.Is(err, game.ErrInvalidRole),
		errors.Is(err, game.ErrSelfVote),
		errors.Is(err, game.ErrSelfKick),
		errors.Is(err, game.ErrInvalidAction):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrNameTaken),
		errors.Is(err, game.ErrRoomFull),
		errors.Is(err, game.ErrAdminExists),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrDuplicateSubmission),
		errors.Is(err, game.ErrTerminalPhase):
		status = http.StatusConflict
	case errors.Is(err, game.ErrUnknownPlayer):
		status = http.StatusUnauthorized
	case errors.Is(err, game.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrRoomDestroyed):
		status = http.StatusGone
	}
	if status != http.StatusInternalServerError {
		code = err.Error()
	}
	apiErrorsTotal.Add(1)
	WriteHTTPError(w, status, code)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// caller resolves the identity token to a session in the room. A missing or
// stale token is an identity failure, not a validation one.
func (h *RoomHandlers) caller(w http.ResponseWriter, r *http.Request, roomID string) (*store.SessionRecord, bool) {
	token := PlayerToken(r)
	if token == "" {
		WriteHTTPError(w, http.StatusUnauthorized, "missing_token")
		return nil, false
	}
	sess, ok := h.st.SessionByToken(roomID, token)
	if !ok {
		WriteHTTPError(w, http.StatusUnauthorized, "unknown_token")
		return nil, false
	}
	return sess, true
}

func (h *RoomHandlers) room(w http.ResponseWriter, roomID string) (*game.Room, bool) {
	room, ok := h.reg.Lookup(roomID)
	if !ok {
		WriteHTTPError(w, http.StatusNotFound, "room_not_found")
		return nil, false
	}
	return room, true
}

type joinRequest struct {
	Name    string `json:"name"`
	AsAdmin bool   `json:"as_admin"`
}

type joinResponse struct {
	PlayerID string         `json:"player_id"`
	Token    string         `json:"token"`
	Rejoined bool           `json:"rejoined"`
	State    game.StateView `json:"state"`
}

func (h *RoomHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		var req joinRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		room := h.reg.GetOrCreate(roomID)
		res, err := room.Join(req.Name, req.AsAdmin, PlayerToken(r))
		if err != nil {
			writeGameError(w, err)
			return
		}
		joinsTotal.Add(1)
		_ = json.NewEncoder(w).Encode(joinResponse{
			PlayerID: res.Player.ID,
			Token:    res.Token,
			Rejoined: res.Rejoined,
			State:    room.StateFor(res.Player.ID),
		})
	}
}

func (h *RoomHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		sess, ok := h.caller(w, r, roomID)
		if !ok {
			return
		}
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		if !room.Leave(sess.PlayerID) {
			writeGameError(w, game.ErrUnknownPlayer)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

type submitRequest struct {
	Round   int    `json:"round"`
	Content string `json:"content"`
}

func (h *RoomHandlers) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		sess, ok := h.caller(w, r, roomID)
		if !ok {
			return
		}
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		var req submitRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		sub, err := room.Submit(sess.PlayerID, req.Round, req.Content)
		if err != nil {
			writeGameError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sub)
	}
}

type voteRequest struct {
	TargetID      string    `json:"target_id"`
	PredictedRole game.Role `json:"predicted_role"`
}

func (h *RoomHandlers) Vote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		sess, ok := h.caller(w, r, roomID)
		if !ok {
			return
		}
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		var req voteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		vote, err := room.Vote(sess.PlayerID, req.TargetID, req.PredictedRole)
		if err != nil {
			writeGameError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(vote)
	}
}

type adminRequest struct {
	Action   string    `json:"action"`
	TargetID string    `json:"target_id,omitempty"`
	Role     game.Role `json:"role,omitempty"`
	Seconds  int       `json:"seconds,omitempty"`
}

func (h *RoomHandlers) Admin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		sess, ok := h.caller(w, r, roomID)
		if !ok {
			return
		}
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		var req adminRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		var err error
		switch req.Action {
		case "start":
			err = room.ForceStart(sess.PlayerID)
		case "advance":
			_, err = room.AdminAdvance(sess.PlayerID)
		case "skip":
			_, err = room.AdminSkip(sess.PlayerID)
		case "assign_role":
			err = room.AdminAssignRole(sess.PlayerID, req.TargetID, req.Role)
		case "kick":
			err = room.AdminKick(sess.PlayerID, req.TargetID)
		case "set_timer":
			err = room.AdminSetTimer(sess.PlayerID, time.Duration(req.Seconds)*time.Second)
		case "reset":
			err = room.AdminReset(sess.PlayerID)
		case "destroy":
			err = h.reg.Destroy(sess.PlayerID, roomID)
		default:
			WriteHTTPError(w, http.StatusBadRequest, "unknown_action")
			return
		}
		if err != nil {
			writeGameError(w, err)
			return
		}
		adminActionsTotal.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "state": room.StateFor(sess.PlayerID)})
	}
}

type cheatRequest struct {
	Detail string `json:"detail"`
}

func (h *RoomHandlers) Cheat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		sess, ok := h.caller(w, r, roomID)
		if !ok {
			return
		}
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		var req cheatRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := room.ReportCheat(sess.PlayerID, req.Detail); err != nil {
			writeGameError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *RoomHandlers) State() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		callerID := ""
		if token := PlayerToken(r); token != "" {
			if sess, found := h.st.SessionByToken(roomID, token); found {
				callerID = sess.PlayerID
			}
		}
		stateReadsTotal.Add(1)
		_ = json.NewEncoder(w).Encode(room.StateFor(callerID))
	}
}

// Events opens the push stream. An authenticated caller is marked connected
// for the stream's lifetime so targeted events and eviction policy see them.
func (h *RoomHandlers) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		sess, ok := h.caller(w, r, roomID)
		if !ok {
			return
		}
		room, ok := h.room(w, roomID)
		if !ok {
			return
		}
		room.SetConnectionState(sess.PlayerID, true)
		defer room.SetConnectionState(sess.PlayerID, false)
		h.bc.ServeStream(w, r, roomID, sess.PlayerID, room.StateFor(sess.PlayerID))
	}
}

func (h *RoomHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "rooms": h.reg.Len()})
	}
}
