package orchestrator

import (
	"sync"
	"time"
)

// Aggregate status values used across readiness reports.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
)

// WaitState is the outcome of waiting on a single dependency.
type WaitState string

const (
	StateReachable WaitState = "reachable"
	StateTimedOut  WaitState = "timed-out"
)

// RetryPolicy bounds the poll loop for one dependency: at most MaxAttempts
// connection attempts, Interval apart.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DependencyResult records how the wait on a single dependency ended.
type DependencyResult struct {
	Name      string    `json:"name"`
	Target    string    `json:"target"`
	State     WaitState `json:"state"`
	Attempts  int       `json:"attempts"`
	ElapsedMs int64     `json:"elapsedMs"`
	LastError string    `json:"error,omitempty"`
}

// Reachable reports whether the dependency answered within the retry budget.
func (r DependencyResult) Reachable() bool { return r.State == StateReachable }

// Report is the aggregate result of a readiness run.
// sync.Mutex is embedded so parallel waits can write results concurrently
// without external locking. Callers must hold the mutex before marshalling
// while waits are still active.
type Report struct {
	sync.Mutex
	Status string                      `json:"status"` // "ok", "error", "in-progress"
	Deps   map[string]DependencyResult `json:"dependencies"`
}

// ProbeResult is returned by protocol-level probes for each dependency.
type ProbeResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}
