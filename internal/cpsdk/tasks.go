package cpsdk

import (
	"context"
	"strconv"

	"github.com/imroc/req/v3"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/syncjob"
)

const (
	v1Tasks        = "/v1/tasks"
	v1Task         = "/v1/tasks/{id}"
	v1TaskRun      = "/v1/tasks/{id}/run"
	v1TaskCancel   = "/v1/tasks/{id}/cancel"
	v1TaskSchedule = "/v1/tasks/{id}/schedule"
	v1TaskHistory  = "/v1/tasks/{id}/history"
)

// TasksAPI manages sync tasks. Every id parameter also accepts a task name
// or an unambiguous id prefix.
type TasksAPI struct {
	client *req.Client
}

func newTasksAPI(client *req.Client) *TasksAPI {
	return &TasksAPI{client: client}
}

func (t *TasksAPI) List(ctx context.Context) ([]*handlers.TaskView, error) {
	var resp handlers.TaskListResponse
	res, err := t.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1Tasks)

	if err := handleAPIError(res, err, "list tasks"); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (t *TasksAPI) Get(ctx context.Context, id string) (resp *handlers.TaskView, err error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetSuccessResult(&resp).
		Get(v1Task)

	if err := handleAPIError(res, err, "get task"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *TasksAPI) Create(ctx context.Context, params *handlers.TaskRequest) (resp *handlers.TaskView, err error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		Post(v1Tasks)

	if err := handleAPIError(res, err, "create task"); err != nil {
		return nil, err
	}
	return resp, nil
}

// Update replaces every user-editable field of the task
func (t *TasksAPI) Update(ctx context.Context, id string, params *handlers.TaskRequest) (resp *handlers.TaskView, err error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(params).
		SetSuccessResult(&resp).
		Put(v1Task)

	if err := handleAPIError(res, err, "update task"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *TasksAPI) Delete(ctx context.Context, id string) error {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Delete(v1Task)

	return handleAPIError(res, err, "delete task")
}

// Run starts the task. Follow it with the events stream.
func (t *TasksAPI) Run(ctx context.Context, id string) (resp *handlers.TaskView, err error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetSuccessResult(&resp).
		Post(v1TaskRun)

	if err := handleAPIError(res, err, "run task"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *TasksAPI) Cancel(ctx context.Context, id string) error {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Post(v1TaskCancel)

	return handleAPIError(res, err, "cancel task")
}

func (t *TasksAPI) Schedule(ctx context.Context, id, cronExpr string) (resp *handlers.TaskView, err error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(&handlers.ScheduleRequest{CronExpression: cronExpr}).
		SetSuccessResult(&resp).
		Put(v1TaskSchedule)

	if err := handleAPIError(res, err, "schedule task"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *TasksAPI) Unschedule(ctx context.Context, id string) (resp *handlers.TaskView, err error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetSuccessResult(&resp).
		Delete(v1TaskSchedule)

	if err := handleAPIError(res, err, "unschedule task"); err != nil {
		return nil, err
	}
	return resp, nil
}

// History returns the newest runs first. limit 0 uses the daemon default.
func (t *TasksAPI) History(ctx context.Context, id string, limit int) ([]*syncjob.RunRecord, error) {
	r := t.client.R().
		SetContext(ctx).
		SetPathParam("id", id)
	if limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(limit))
	}

	var resp handlers.TaskHistoryResponse
	res, err := r.SetSuccessResult(&resp).Get(v1TaskHistory)
	if err := handleAPIError(res, err, "task history"); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}
