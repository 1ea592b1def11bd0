package handler

import (
	"github.com/gin-gonic/gin"
	effectapp "github.com/tffhost/backend/internal/application/effect"
)

// TaskHandler exposes the side effect task queue to administrators
type TaskHandler struct {
	BaseHandler
	tasks *effectapp.TaskService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks *effectapp.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// ListDeadTasks godoc
// @ID           listDeadTasks
// @Summary      List dead tasks
// @Description  Tasks that exhausted their retries or failed permanently
// @Tags         tasks
// @Produce      json
// @Param        page      query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]effectapp.TaskDTO]
// @Router       /tasks/dead [get]
func (h *TaskHandler) ListDeadTasks(c *gin.Context) {
	var filter effectapp.TaskFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	result, err := h.tasks.ListDead(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// GetTask godoc
// @ID           getTask
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[effectapp.TaskDTO]
// @Failure      404 {object} ErrorResponse
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// RetryTask godoc
// @ID           retryTask
// @Summary      Retry a dead task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID" format(uuid)
// @Success      200 {object} APIResponse[effectapp.TaskDTO]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /tasks/{id}/retry [post]
func (h *TaskHandler) RetryTask(c *gin.Context) {
	id, ok := h.PathID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Retry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, task)
}

// RetryAllDeadTasks godoc
// @ID           retryAllDeadTasks
// @Summary      Retry every dead task
// @Tags         tasks
// @Produce      json
// @Success      200 {object} APIResponse[CountData]
// @Router       /tasks/dead/retry [post]
func (h *TaskHandler) RetryAllDeadTasks(c *gin.Context) {
	count, err := h.tasks.RetryAllDead(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: count})
}

// GetTaskStats godoc
// @ID           getTaskStats
// @Summary      Count tasks per status
// @Tags         tasks
// @Produce      json
// @Success      200 {object} APIResponse[effectapp.TaskStatsDTO]
// @Router       /tasks/stats [get]
func (h *TaskHandler) GetTaskStats(c *gin.Context) {
	stats, err := h.tasks.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
