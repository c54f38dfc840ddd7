package game

import "errors"

var (
	ErrWrongPhase          = errors.New("wrong_phase")
	ErrNameTaken           = errors.New("name_taken")
	ErrInvalidName         = errors.New("invalid_name")
	ErrRoomFull            = errors.New("room_full")
	ErrAdminExists         = errors.New("admin_exists")
	ErrUnknownPlayer       = errors.New("unknown_player")
	ErrNotAdmin            = errors.New("not_admin")
	ErrNotEnoughPlayers    = errors.New("not_enough_players")
	ErrInvalidRound        = errors.New("invalid_round")
	ErrEmptyContent        = errors.New("empty_content")
	ErrContentTooLong      = errors.New("content_too_long")
	ErrDuplicateSubmission = errors.New("duplicate_submission")
	ErrSelfVote            = errors.New("self_vote")
	ErrSelfKick            = errors.New("self_kick")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrTerminalPhase       = errors.New("terminal_phase")
	ErrRoomDestroyed       = errors.New("room_destroyed")
	ErrRoomNotFound        = errors.New("room_not_found")
	ErrInvalidAction       = errors.New("invalid_action")
)
