package httptransport

import "expvar"

var (
	joinsTotal        = expvar.NewInt("api_joins_total")
	adminActionsTotal = expvar.NewInt("api_admin_actions_total")
	stateReadsTotal   = expvar.NewInt("api_state_reads_total")
	apiErrorsTotal    = expvar.NewInt("api_errors_total")
)
