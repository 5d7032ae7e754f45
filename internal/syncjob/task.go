package syncjob

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var ErrInvalidTask = errors.New("invalid task")

type Mode string

const (
	ModeSync   Mode = "sync"
	ModeCopy   Mode = "copy"
	ModeMove   Mode = "move"
	ModeBisync Mode = "bisync"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeSync, ModeCopy, ModeMove, ModeBisync:
		return true
	}
	return false
}

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPaused, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Task is a saved sync/copy/move/bisync job between two rclone paths
type Task struct {
	ID               string     `json:"id" yaml:"id"`
	Name             string     `json:"name" yaml:"name"`
	Source           string     `json:"source" yaml:"source"`
	Destination      string     `json:"destination" yaml:"destination"`
	Mode             Mode       `json:"mode" yaml:"mode"`
	Status           Status     `json:"status" yaml:"status"`
	Progress         int        `json:"progress" yaml:"progress"`
	DeleteExcluded   bool       `json:"delete_excluded" yaml:"delete_excluded"`
	DryRun           bool       `json:"dry_run" yaml:"dry_run"`
	BandwidthLimit   string     `json:"bandwidth_limit" yaml:"bandwidth_limit,omitempty"`
	ExcludePatterns  []string   `json:"exclude_patterns" yaml:"exclude_patterns,omitempty"`
	Scheduled        bool       `json:"scheduled" yaml:"scheduled"`
	CronExpression   string     `json:"cron_expression" yaml:"cron_expression,omitempty"`
	LastRun          *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	FilesTransferred int64      `json:"files_transferred" yaml:"files_transferred"`
	BytesTransferred int64      `json:"bytes_transferred" yaml:"bytes_transferred"`
	ErrorMessage     *string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// NewTask returns an idle task with a fresh id
func NewTask(name, source, destination string, mode Mode) *Task {
	if mode == "" {
		mode = ModeSync
	}
	return &Task{
		ID:              uuid.NewString(),
		Name:            name,
		Source:          source,
		Destination:     destination,
		Mode:            mode,
		Status:          StatusIdle,
		ExcludePatterns: []string{},
	}
}

// SetProgress stores v clamped to [0, 100]
func (t *Task) SetProgress(v int) {
	t.Progress = clampProgress(v)
}

func clampProgress(v int) int {
	return max(0, min(100, v))
}

// Validate checks the fields a user can set
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if strings.TrimSpace(t.Source) == "" || strings.TrimSpace(t.Destination) == "" {
		return fmt.Errorf("%w: source and destination are required", ErrInvalidTask)
	}
	if !t.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidTask, t.Mode)
	}
	for _, pattern := range t.ExcludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: exclude pattern %q", ErrInvalidTask, pattern)
		}
	}
	return nil
}

func (t *Task) Clone() *Task {
	c := *t
	c.ExcludePatterns = append([]string{}, t.ExcludePatterns...)
	if t.LastRun != nil {
		lr := *t.LastRun
		c.LastRun = &lr
	}
	if t.ErrorMessage != nil {
		msg := *t.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}

// Equal compares tasks by id
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ID == other.ID
}

// taskAlias drops Task's methods so decoding does not recurse
type taskAlias Task

func (t *Task) UnmarshalJSON(data []byte) error {
	aux := taskAlias{
		Mode:   ModeSync,
		Status: StatusIdle,
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if !aux.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", ErrInvalidTask, aux.Mode)
	}
	if !aux.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidTask, aux.Status)
	}
	if aux.ID == "" {
		aux.ID = uuid.NewString()[:8]
	}
	if aux.ExcludePatterns == nil {
		aux.ExcludePatterns = []string{}
	}
	aux.Progress = clampProgress(aux.Progress)

	*t = Task(aux)
	return nil
}
