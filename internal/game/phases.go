package game

import (
	"fmt"
	"strconv"
	"strings"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseRoleReveal Phase = "role_reveal"
	PhaseVoting     Phase = "voting"
	PhaseResults    Phase = "results"
	PhaseFinished   Phase = "finished"
)

// RoundPhase returns the phase name for the n-th submission round (1-based).
func RoundPhase(n int) Phase {
	return Phase(fmt.Sprintf("round_%d", n))
}

// Round reports the round number when p is a round phase.
func (p Phase) Round() (int, bool) {
	s, ok := strings.CutPrefix(string(p), "round_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (p Phase) Terminal() bool {
	return p == PhaseFinished
}

// Next returns the phase that follows p in a game with the given number of
// rounds. The sequence is strictly forward; finished has no successor.
func (p Phase) Next(rounds int) (Phase, bool) {
	switch p {
	case PhaseLobby:
		return PhaseRoleReveal, true
	case PhaseRoleReveal:
		if rounds < 1 {
			return PhaseVoting, true
		}
		return RoundPhase(1), true
	case PhaseVoting:
		return PhaseResults, true
	case PhaseResults:
		return PhaseFinished, true
	case PhaseFinished:
		return "", false
	}
	if n, ok := p.Round(); ok {
		if n < rounds {
			return RoundPhase(n + 1), true
		}
		return PhaseVoting, true
	}
	return "", false
}
