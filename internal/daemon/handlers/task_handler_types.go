package handlers

import "github.com/openmined/rclonebox/internal/syncjob"

// TaskRequest carries the user-editable fields of a task. PUT replaces all of them.
type TaskRequest struct {
	Name            string       `json:"name" binding:"required"`
	Source          string       `json:"source" binding:"required"`
	Destination     string       `json:"destination" binding:"required"`
	Mode            syncjob.Mode `json:"mode"`
	DeleteExcluded  bool         `json:"delete_excluded"`
	DryRun          bool         `json:"dry_run"`
	BandwidthLimit  string       `json:"bandwidth_limit"`
	ExcludePatterns []string     `json:"exclude_patterns"`
	Scheduled       bool         `json:"scheduled"`
	CronExpression  string       `json:"cron_expression"`
}

func (r *TaskRequest) apply(t *syncjob.Task) {
	t.Name = r.Name
	t.Source = r.Source
	t.Destination = r.Destination
	if r.Mode != "" {
		t.Mode = r.Mode
	}
	t.DeleteExcluded = r.DeleteExcluded
	t.DryRun = r.DryRun
	t.BandwidthLimit = r.BandwidthLimit
	t.ExcludePatterns = append([]string{}, r.ExcludePatterns...)
	t.Scheduled = r.Scheduled
	t.CronExpression = r.CronExpression
}

// TaskView is a task plus its scheduling state
type TaskView struct {
	Task    *syncjob.Task `json:"task"`
	NextRun string        `json:"next_run"`
	Running bool          `json:"running"`
}

type TaskListResponse struct {
	Tasks []*TaskView `json:"tasks"`
}

type ScheduleRequest struct {
	CronExpression string `json:"cron_expression" binding:"required"`
}

type TaskHistoryResponse struct {
	Runs []*syncjob.RunRecord `json:"runs"`
}

type CronValidateResponse struct {
	Valid       bool   `json:"valid"`
	Error       string `json:"error,omitempty"`
	Description string `json:"description,omitempty"`
}
