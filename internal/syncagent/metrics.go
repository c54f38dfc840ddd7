package syncagent

import "expvar"

var (
	metricActionsQueued   = expvar.NewInt("syncagent_actions_queued_total")
	metricActionsReplayed = expvar.NewInt("syncagent_actions_replayed_total")
)
