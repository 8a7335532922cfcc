package scheduler

import (
	"context"
	"time"
)

// Job is a periodic reconciliation sweep
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes one sweep and returns how many entities it changed
	// (orders moved, balances rewritten, parked trades applied)
	Run(ctx context.Context) (int, error)

	// Schedule returns the cron schedule expression, with seconds
	// Examples: "*/30 * * * * *" (every 30 seconds)
	//           "@every 1m"
	Schedule() string
}

// JobResult is one run of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Attempts  int           `json:"attempts"`
	Affected  int           `json:"affected"`
	Error     string        `json:"error,omitempty"`
}

const maxHistory = 100

// JobHistory keeps the most recent runs of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// Record appends a run and drops the oldest past maxHistory
func (h *JobHistory) Record(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = append(h.Results[:0:0], h.Results[len(h.Results)-maxHistory:]...)
	}
}

// Latest returns up to n most recent runs
func (h *JobHistory) Latest(n int) []JobResult {
	n = min(n, len(h.Results))
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// last finds the most recent run with the given outcome
func (h *JobHistory) last(success bool) (JobResult, bool) {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if h.Results[i].Success == success {
			return h.Results[i], true
		}
	}
	return JobResult{}, false
}

// Failures counts failed runs
func (h *JobHistory) Failures() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// SuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}
	return float64(len(h.Results)-h.Failures()) / float64(len(h.Results))
}

// Affected sums the entities changed by successful runs
func (h *JobHistory) Affected() int {
	total := 0
	for _, r := range h.Results {
		if r.Success {
			total += r.Affected
		}
	}
	return total
}

// Stats summarizes the history of job
func (h *JobHistory) Stats(name, schedule string) JobStats {
	failures := h.Failures()
	stats := JobStats{
		JobName:       name,
		Schedule:      schedule,
		TotalRuns:     len(h.Results),
		SuccessCount:  len(h.Results) - failures,
		FailureCount:  failures,
		SuccessRate:   h.SuccessRate(),
		TotalAffected: h.Affected(),
	}

	if latest := h.Latest(1); len(latest) == 1 {
		at := latest[0].StartTime
		stats.LastRun = &at
	}
	if r, ok := h.last(true); ok {
		stats.LastSuccess = &r.StartTime
	}
	if r, ok := h.last(false); ok {
		stats.LastFailure = &r.StartTime
		stats.LastError = r.Error
	}
	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName       string     `json:"job_name"`
	Schedule      string     `json:"schedule"`
	TotalRuns     int        `json:"total_runs"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	SuccessRate   float64    `json:"success_rate"`
	TotalAffected int        `json:"total_affected"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	LastSuccess   *time.Time `json:"last_success,omitempty"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}
