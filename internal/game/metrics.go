package game

import "expvar"

var (
	metricJoins        = expvar.NewInt("game_joins_total")
	metricGamesStarted = expvar.NewInt("game_started_total")
	metricPhaseChanges = expvar.NewInt("game_phase_changes_total")
	metricSubmissions  = expvar.NewInt("game_submissions_total")
	metricVotes        = expvar.NewInt("game_votes_total")
	metricCheatReports = expvar.NewInt("game_cheat_reports_total")
)
