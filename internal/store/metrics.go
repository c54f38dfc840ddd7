package store

import "expvar"

var (
	metricRoomsCreated     = expvar.NewInt("store_rooms_created_total")
	metricSessionsCreated  = expvar.NewInt("store_sessions_created_total")
	metricBackupsTaken     = expvar.NewInt("store_backups_taken_total")
	metricChecksumMismatch = expvar.NewInt("store_checksum_mismatch_total")
	metricRoomsRestored    = expvar.NewInt("store_rooms_restored_total")
	metricRoomsReset       = expvar.NewInt("store_rooms_reset_total")
	metricSessionsEvicted  = expvar.NewInt("store_sessions_evicted_total")
	metricRoomsEvicted     = expvar.NewInt("store_rooms_evicted_total")
)
