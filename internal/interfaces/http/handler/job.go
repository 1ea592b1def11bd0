package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tffhost/backend/internal/infrastructure/scheduler"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
)

// JobRunner runs the periodic jobs on demand
type JobRunner interface {
	Jobs() []scheduler.Job
	Submit(name string) error
	RunNow(ctx context.Context, name string) (*scheduler.Run, error)
}

// JobHandler lets administrators trigger the periodic jobs
type JobHandler struct {
	BaseHandler
	runner JobRunner
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(runner JobRunner) *JobHandler {
	return &JobHandler{runner: runner}
}

// JobResponse is a registered job
// @Description Registered periodic job
type JobResponse struct {
	Name     string `json:"name" example:"node_status_check"`
	Schedule string `json:"schedule" example:"@every 5m"`
}

// RunResponse is the outcome of a job run
// @Description Job run
type RunResponse struct {
	ID          string     `json:"id"`
	Job         string     `json:"job" example:"online_order_check"`
	Status      string     `json:"status" example:"SUCCESS"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	TriggeredAt time.Time  `json:"triggered_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobRunQuery selects a synchronous run
type JobRunQuery struct {
	Wait bool `form:"wait"`
}

// ListJobs godoc
// @ID           listJobs
// @Summary      List periodic jobs
// @Tags         jobs
// @Produce      json
// @Success      200 {object} APIResponse[[]JobResponse]
// @Router       /jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs := h.runner.Jobs()
	resp := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = JobResponse{Name: j.Name, Schedule: j.Schedule}
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Name < resp[j].Name })
	h.Success(c, resp)
}

// RunJob godoc
// @ID           runJob
// @Summary      Run a periodic job now
// @Description  Queues the job, or runs it within the request when wait is true
// @Tags         jobs
// @Produce      json
// @Param        name path  string true  "Job name"
// @Param        wait query bool   false "Wait for the run to finish"
// @Success      200 {object} APIResponse[RunResponse]
// @Success      202 {object} APIResponse[JobResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /jobs/{name}/run [post]
func (h *JobHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	var query JobRunQuery
	if !h.BindQuery(c, &query) {
		return
	}

	if !query.Wait {
		if err := h.runner.Submit(name); err != nil {
			h.jobError(c, err)
			return
		}
		h.Accepted(c, JobResponse{Name: name})
		return
	}

	run, err := h.runner.RunNow(c.Request.Context(), name)
	if run == nil {
		h.jobError(c, err)
		return
	}
	if err != nil && errors.Is(err, scheduler.ErrJobLocked) {
		h.jobError(c, err)
		return
	}
	// a failed run is still reported with its error
	h.Success(c, RunResponse{
		ID:          run.ID.String(),
		Job:         run.Job,
		Status:      string(run.Status),
		Error:       run.Error,
		RetryCount:  run.RetryCount,
		TriggeredAt: run.TriggeredAt,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	})
}

func (h *JobHandler) jobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		h.NotFound(c, "Unknown job")
	case errors.Is(err, scheduler.ErrJobLocked):
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, "The job is running on another instance")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning), errors.Is(err, scheduler.ErrJobQueueFull):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, err.Error())
	default:
		h.HandleError(c, err)
	}
}
