package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openmined/rclonebox/internal/scheduler"
	"github.com/openmined/rclonebox/internal/syncjob"
)

const defaultHistoryLimit = 20

type TaskHandler struct {
	mgr *syncjob.Manager
}

func NewTaskHandler(mgr *syncjob.Manager) *TaskHandler {
	return &TaskHandler{mgr: mgr}
}

func (h *TaskHandler) view(t *syncjob.Task) *TaskView {
	return &TaskView{
		Task:    t,
		NextRun: h.mgr.NextRunText(t.ID),
		Running: h.mgr.IsRunning(t.ID),
	}
}

// resolve accepts a task id, an unambiguous id prefix or a task name
func (h *TaskHandler) resolve(c *gin.Context) (*syncjob.Task, bool) {
	ref := c.Param("id")
	t, found := h.mgr.Find(ref)
	if !found {
		AbortWithDomainError(c, fmt.Errorf("%w: %s", syncjob.ErrTaskNotFound, ref))
		return nil, false
	}
	return t, true
}

func (h *TaskHandler) List(c *gin.Context) {
	tasks := h.mgr.List()
	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, h.view(t))
	}
	c.PureJSON(http.StatusOK, &TaskListResponse{Tasks: views})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task := syncjob.NewTask(req.Name, req.Source, req.Destination, req.Mode)
	req.apply(task)

	added, err := h.mgr.Add(task)
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, h.view(added))
}

func (h *TaskHandler) Get(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}
	c.PureJSON(http.StatusOK, h.view(t))
}

func (h *TaskHandler) Update(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}

	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, err := h.mgr.Update(t.ID, req.apply)
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, h.view(updated))
}

func (h *TaskHandler) Delete(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}
	if err := h.mgr.Remove(t.ID); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	ok(c)
}

// Run starts the task. Progress arrives as task.* events.
func (h *TaskHandler) Run(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}
	if err := h.mgr.Run(t.ID); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	t, _ = h.mgr.Get(t.ID)
	c.PureJSON(http.StatusAccepted, h.view(t))
}

func (h *TaskHandler) Cancel(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}
	if err := h.mgr.Cancel(t.ID); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	ok(c)
}

// Schedule enables the schedule, or replaces the expression of an enabled one
func (h *TaskHandler) Schedule(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var err error
	if t.Scheduled {
		err = h.mgr.UpdateSchedule(t.ID, req.CronExpression)
	} else {
		err = h.mgr.EnableSchedule(t.ID, req.CronExpression)
	}
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}

	t, _ = h.mgr.Get(t.ID)
	c.PureJSON(http.StatusOK, h.view(t))
}

func (h *TaskHandler) Unschedule(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}
	if err := h.mgr.DisableSchedule(t.ID); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	t, _ = h.mgr.Get(t.ID)
	c.PureJSON(http.StatusOK, h.view(t))
}

func (h *TaskHandler) History(c *gin.Context) {
	t, found := h.resolve(c)
	if !found {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	runs, err := h.mgr.RunHistory(c.Request.Context(), t.ID, limit)
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, &TaskHistoryResponse{Runs: runs})
}

// ValidateCron checks an expression without touching any task
func (h *TaskHandler) ValidateCron(c *gin.Context) {
	expr := c.Query("expr")
	if err := h.mgr.ValidateCron(expr); err != nil {
		c.PureJSON(http.StatusOK, &CronValidateResponse{Valid: false, Error: err.Error()})
		return
	}
	c.PureJSON(http.StatusOK, &CronValidateResponse{Valid: true, Description: scheduler.Describe(expr)})
}
