package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobRun summarises the recent history of a maintenance job.
type JobRun struct {
	Job                 string    `json:"job"`
	TotalRuns           uint64    `json:"total_runs"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastRemoved         int64     `json:"last_removed"`
	LastError           string    `json:"last_error,omitempty"`
}

// MaintenanceTracker remembers the latest outcome of each maintenance job.
type MaintenanceTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobRun
}

// NewMaintenanceTracker constructs an empty tracker.
func NewMaintenanceTracker() *MaintenanceTracker {
	return &MaintenanceTracker{jobs: make(map[string]*JobRun)}
}

// Register makes a job visible before its first run.
func (t *MaintenanceTracker) Register(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job]; !ok {
		t.jobs[job] = &JobRun{Job: job}
	}
}

// Record stores the outcome of a single run.
func (t *MaintenanceTracker) Record(job string, at time.Time, removed int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.jobs[job]
	if !ok {
		run = &JobRun{Job: job}
		t.jobs[job] = run
	}
	run.TotalRuns++
	run.LastRunAt = at
	run.LastRemoved = removed
	if err != nil {
		run.ConsecutiveFailures++
		run.LastError = err.Error()
		return
	}
	run.ConsecutiveFailures = 0
	run.LastError = ""
}

// Snapshot returns every job sorted by name.
func (t *MaintenanceTracker) Snapshot() []JobRun {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobRun, 0, len(t.jobs))
	for _, run := range t.jobs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
