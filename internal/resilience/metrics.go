package resilience

import "expvar"

var (
	metricBreakerOpened    = expvar.NewInt("resilience_breaker_opened_total")
	metricBreakerFastFails = expvar.NewInt("resilience_breaker_fast_fail_total")
	metricRetryAttempts    = expvar.NewInt("resilience_retry_attempts_total")
)
