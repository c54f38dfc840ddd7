package game

import (
	"math"
	"time"
)

const (
	correctGuessPoints = 100
	hiddenRoleBonus    = 50
	participationBonus = 25
	accuracyMultiplier = 0.5
)

// ComputeResults scores a finished game. It is a pure function of its
// inputs: calling it again with the same sets yields identical output.
// Players must be in roster order (admin last, if present).
func ComputeResults(players []Player, submissions []Submission, votes []Vote, startedAt, endedAt time.Time) *GameResults {
	byID := make(map[string]*Player, len(players))
	for i := range players {
		byID[players[i].ID] = &players[i]
	}

	// Tally votes against each target, bucketed by predicted role.
	against := make(map[string]map[Role]int, len(players))
	cast := make(map[string]int, len(players))
	correct := make(map[string]int, len(players))
	for _, v := range votes {
		target, ok := byID[v.TargetID]
		if !ok {
			continue
		}
		if against[v.TargetID] == nil {
			against[v.TargetID] = make(map[Role]int, len(roleOrder))
		}
		against[v.TargetID][v.PredictedRole]++
		cast[v.VoterID]++
		if v.PredictedRole == target.Role {
			correct[v.VoterID]++
		}
	}

	scores := make([]PlayerScore, 0, len(players))
	var accuracySum float64
	var accuracySamples int
	for _, p := range players {
		mostVoted := mostVotedRole(against[p.ID])
		hidden := mostVoted != p.Role

		accuracy := 0.0
		if cast[p.ID] > 0 {
			accuracy = float64(correct[p.ID]) / float64(cast[p.ID])
			accuracySum += accuracy
			accuracySamples++
		}

		base := float64(correct[p.ID] * correctGuessPoints)
		if hidden {
			base += hiddenRoleBonus
		}
		base += participationBonus
		points := int(math.Round(base * (1 + accuracy*accuracyMultiplier)))

		scores = append(scores, PlayerScore{
			PlayerID:       p.ID,
			Name:           p.Name,
			Role:           p.Role,
			MostVotedRole:  mostVoted,
			CorrectGuesses: correct[p.ID],
			VotesCast:      cast[p.ID],
			Accuracy:       accuracy,
			RoleHidden:     hidden,
			Points:         points,
		})
	}

	stats := GameStats{
		DurationSeconds:    int64(endedAt.Sub(startedAt) / time.Second),
		TotalSubmissions:   len(submissions),
		TotalVotes:         len(votes),
		ParticipantCount:   len(players),
		AccuracySampleSize: accuracySamples,
	}
	if accuracySamples > 0 {
		stats.AverageAccuracy = accuracySum / float64(accuracySamples)
	}
	bestAccuracy := -1.0
	bestMisdirection := -1
	for _, s := range scores {
		stats.CorrectGuessTotal += s.CorrectGuesses
		if s.VotesCast > 0 && s.Accuracy > bestAccuracy {
			bestAccuracy = s.Accuracy
			stats.MostAccurateID = s.PlayerID
		}
		if s.RoleHidden {
			stats.HiddenRoleCount++
			misdirected := votesNotMatchingRole(against[s.PlayerID], s.Role)
			if misdirected > bestMisdirection {
				bestMisdirection = misdirected
				stats.BestHiddenRoleID = s.PlayerID
			}
		}
	}
	return &GameResults{Scores: scores, Stats: stats}
}

// mostVotedRole picks the role with the highest tally, breaking ties by
// enumeration order (human, ai_user, troll). Empty when nobody voted.
func mostVotedRole(tally map[Role]int) Role {
	best := RoleNone
	bestCount := 0
	for _, r := range roleOrder {
		if tally[r] > bestCount {
			best = r
			bestCount = tally[r]
		}
	}
	return best
}

func votesNotMatchingRole(tally map[Role]int, role Role) int {
	total := 0
	for r, n := range tally {
		if r != role {
			total += n
		}
	}
	return total
}
