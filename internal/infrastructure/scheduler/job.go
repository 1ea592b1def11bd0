package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the status of a job run
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
	RunStatusSkipped RunStatus = "SKIPPED"
)

// JobFunc is the body of a periodic job. now is the time the run was triggered.
type JobFunc func(ctx context.Context, now time.Time) error

// Job is a named periodic job. Schedule uses the standard cron syntax or a
// descriptor such as "@every 5m"; an empty schedule means the job only runs on demand.
type Job struct {
	Name     string
	Schedule string
	Run      JobFunc
}

// Run is one execution of a job
type Run struct {
	ID          uuid.UUID
	Job         string
	TriggeredAt time.Time
	Status      RunStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewRun creates a pending run of job
func NewRun(job string, triggeredAt time.Time, maxRetries int) *Run {
	return &Run{
		ID:          uuid.New(),
		Job:         job,
		TriggeredAt: triggeredAt,
		Status:      RunStatusPending,
		MaxRetries:  maxRetries,
	}
}

// Start marks the run as running
func (r *Run) Start() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
	r.Error = ""
}

// Complete marks the run as successful
func (r *Run) Complete() {
	now := time.Now()
	r.Status = RunStatusSuccess
	r.CompletedAt = &now
}

// Skip marks a run that did not execute because the job was locked
func (r *Run) Skip() {
	now := time.Now()
	r.Status = RunStatusSkipped
	r.CompletedAt = &now
}

// Fail marks the run as failed
func (r *Run) Fail(err error) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.CompletedAt = &now
	r.Error = err.Error()
}

// ShouldRetry returns true if the run should be attempted again
func (r *Run) ShouldRetry() bool {
	return r.Status == RunStatusFailed && r.RetryCount < r.MaxRetries
}

// Retry prepares the next attempt
func (r *Run) Retry() {
	r.RetryCount++
	r.Status = RunStatusPending
	r.Error = ""
}
