package scheduler

import (
	"context"
	"time"
)

// historyLimit is how many results are kept per job
const historyLimit = 100

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job; ctx is cancelled on timeout or shutdown
	Run(ctx context.Context) error

	// Schedule returns the cron expression with a leading seconds field.
	// Examples: "0 */30 * * * *" (every 30 minutes), "@every 1h"
	Schedule() string
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory stores job execution history
type JobHistory struct {
	Results []JobResult `json:"results"`
}

// AddResult appends a result, keeping only the most recent ones
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > historyLimit {
		h.Results = h.Results[len(h.Results)-historyLimit:]
	}
}

// summarize fills the run counters and last-run times of st, newest result first
func (h *JobHistory) summarize(st *JobStats) {
	st.TotalRuns = len(h.Results)
	for i := len(h.Results) - 1; i >= 0; i-- {
		res := h.Results[i]
		if st.LastRun == nil {
			st.LastRun = &res.StartTime
		}
		if res.Success {
			st.SuccessCount++
			if st.LastSuccess == nil {
				st.LastSuccess = &res.StartTime
			}
			continue
		}
		st.FailureCount++
		if st.LastFailure == nil {
			st.LastFailure = &res.StartTime
			st.LastError = res.Error
		}
	}
	if st.TotalRuns > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(st.TotalRuns)
	}
}
