package concurrency

import "sync/atomic"

// Metrics holds the pool's lifetime counters.
type Metrics struct {
	submitted     atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	rejected      atomic.Int64
	activeWorkers atomic.Int64
}

// Snapshot is a point-in-time copy of the counters, returned by the pool's
// Stats.
type Snapshot struct {
	Submitted     int64 `json:"submitted"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	Rejected      int64 `json:"rejected"`
	ActiveWorkers int64 `json:"active_workers"`
}

func (m *Metrics) snapshot() Snapshot {
	return Snapshot{
		Submitted:     m.submitted.Load(),
		Completed:     m.completed.Load(),
		Failed:        m.failed.Load(),
		Rejected:      m.rejected.Load(),
		ActiveWorkers: m.activeWorkers.Load(),
	}
}
