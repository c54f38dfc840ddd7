package broadcast

import "expvar"

var (
	metricEventsPublished   = expvar.NewInt("broadcast_events_published_total")
	metricEventsDropped     = expvar.NewInt("broadcast_events_dropped_total")
	metricConnsOpened       = expvar.NewInt("broadcast_conns_opened_total")
	metricConnsClosed       = expvar.NewInt("broadcast_conns_closed_total")
	metricConnsExpired      = expvar.NewInt("broadcast_conns_expired_total")
	metricHeartbeatFailures = expvar.NewInt("broadcast_heartbeat_failures_total")
)
