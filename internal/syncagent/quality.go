package syncagent

import (
	"sync"
	"time"
)

type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierPoor      Tier = "poor"
	TierCritical  Tier = "critical"
)

const latencyWindow = 16

// Quality assesses the connection from recent latencies and failure counts
// and maps the result to a polling cadence.
type Quality struct {
	mu         sync.Mutex
	samples    []time.Duration
	failures   int
	reconnects int
}

func NewQuality() *Quality {
	return &Quality{}
}

// RecordLatency adds a successful round-trip sample and clears the failure
// streak.
func (q *Quality) RecordLatency(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.samples = append(q.samples, d)
	if len(q.samples) > latencyWindow {
		q.samples = q.samples[len(q.samples)-latencyWindow:]
	}
	q.failures = 0
}

func (q *Quality) RecordFailure() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failures++
}

func (q *Quality) RecordReconnect() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reconnects++
}

func (q *Quality) Reconnects() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reconnects
}

func (q *Quality) average() time.Duration {
	if len(q.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range q.samples {
		sum += s
	}
	return sum / time.Duration(len(q.samples))
}

func (q *Quality) Tier() Tier {
	q.mu.Lock()
	defer q.mu.Unlock()
	avg := q.average()
	switch {
	case q.failures >= 5 || avg > 2*time.Second:
		return TierCritical
	case q.failures >= 3 || avg > time.Second:
		return TierPoor
	case avg > 300*time.Millisecond:
		return TierGood
	default:
		return TierExcellent
	}
}

// PollInterval stretches the base polling cadence as the connection
// degrades, trading freshness for bandwidth.
func (q *Quality) PollInterval(base time.Duration) time.Duration {
	switch q.Tier() {
	case TierCritical:
		return base * 8
	case TierPoor:
		return base * 4
	case TierGood:
		return base * 2
	default:
		return base
	}
}
