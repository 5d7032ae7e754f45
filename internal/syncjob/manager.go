package syncjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/scheduler"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

const historyWriteTimeout = 5 * time.Second

// ManagerOptions wires the task manager. A nil Scheduler gets a default one;
// a nil History disables the run journal.
type ManagerOptions struct {
	RclonePath       string
	RcloneConfigPath string
	StorePath        string

	Scheduler *scheduler.Scheduler
	History   *History
	Bus       *events.Bus
	Logger    *slog.Logger
	Now       func() time.Time
}

type run struct {
	worker  *Worker
	started time.Time
	// closed once completion bookkeeping (status, history, save) is done
	bookkept chan struct{}
}

// Manager owns the task list, its running workers and their schedules
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger
	sched  *scheduler.Scheduler
	tasks  map[string]*Task
	order  []string
	runs   map[string]*run
	mu     sync.Mutex
	wg     sync.WaitGroup
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RclonePath == "" {
		opts.RclonePath = "rclone"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.New(scheduler.WithLogger(opts.Logger), scheduler.WithBus(opts.Bus))
	}

	m := &Manager{
		opts:   opts,
		logger: opts.Logger.With("component", "tasks"),
		sched:  opts.Scheduler,
		tasks:  make(map[string]*Task),
		runs:   make(map[string]*run),
	}
	m.sched.SetCallback(m.runDue)
	return m
}

func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.sched
}

func (m *Manager) History() *History {
	return m.opts.History
}

// Load replaces the task list with the persisted one and registers every
// scheduled task with the scheduler
func (m *Manager) Load() error {
	loaded, err := LoadTasks(m.opts.StorePath, m.logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for id := range m.tasks {
		m.sched.RemoveTask(id)
	}
	m.tasks = make(map[string]*Task, len(loaded))
	m.order = m.order[:0]
	for _, t := range loaded {
		m.tasks[t.ID] = t
		m.order = append(m.order, t.ID)
	}
	m.mu.Unlock()

	for _, t := range loaded {
		if !t.Scheduled || t.CronExpression == "" {
			continue
		}
		var lastRun time.Time
		if t.LastRun != nil {
			lastRun = *t.LastRun
		}
		if err := m.sched.AddTask(t.ID, t.CronExpression, lastRun); err != nil {
			m.logger.Warn("task schedule rejected", "task", t.ID, "cron", t.CronExpression, "error", err)
		}
	}

	m.logger.Info("tasks loaded", "count", len(loaded), "path", m.opts.StorePath)
	return nil
}

func (m *Manager) Save() error {
	if m.opts.StorePath == "" {
		return nil
	}

	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, m.tasks[id].Clone())
	}
	m.mu.Unlock()

	if err := SaveTasks(m.opts.StorePath, tasks); err != nil {
		m.logger.Error("save tasks", "error", err)
		return err
	}
	return nil
}

// Add validates t, registers its schedule and persists it. The stored copy is returned.
func (m *Manager) Add(t *Task) (*Task, error) {
	task := t.Clone()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Mode == "" {
		task.Mode = ModeSync
	}
	task.Status = StatusIdle
	task.SetProgress(0)
	if err := task.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.tasks[task.ID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidTask, task.ID)
	}
	m.mu.Unlock()

	if task.Scheduled {
		if err := m.sched.AddTask(task.ID, task.CronExpression, time.Time{}); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	out := task.Clone()
	m.mu.Unlock()

	m.logger.Info("task added", "task", task.ID, "name", task.Name, "mode", task.Mode)
	return out, m.Save()
}

// Update applies fn to a copy of the task and commits it when valid. Identity,
// status and run counters cannot be changed this way, and a running task is
// not editable.
func (m *Manager) Update(id string, fn func(*Task)) (*Task, error) {
	m.mu.Lock()
	current, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if _, running := m.runs[id]; running {
		m.mu.Unlock()
		return nil, ErrTaskRunning
	}
	next := current.Clone()
	m.mu.Unlock()

	fn(next)
	next.ID = current.ID
	next.Status = current.Status
	next.Progress = current.Progress
	next.LastRun = current.LastRun
	next.FilesTransferred = current.FilesTransferred
	next.BytesTransferred = current.BytesTransferred
	next.ErrorMessage = current.ErrorMessage
	if err := next.Validate(); err != nil {
		return nil, err
	}

	if err := m.applySchedule(current, next); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tasks[id] = next
	out := next.Clone()
	m.mu.Unlock()

	return out, m.Save()
}

func (m *Manager) applySchedule(prev, next *Task) error {
	switch {
	case next.Scheduled && !prev.Scheduled:
		var lastRun time.Time
		if next.LastRun != nil {
			lastRun = *next.LastRun
		}
		return m.sched.AddTask(next.ID, next.CronExpression, lastRun)
	case !next.Scheduled && prev.Scheduled:
		m.sched.RemoveTask(next.ID)
	case next.Scheduled && next.CronExpression != prev.CronExpression:
		if _, err := m.sched.UpdateTask(next.ID, next.CronExpression); err != nil {
			return err
		}
	}
	return nil
}

// Remove cancels any run, drops the schedule and forgets the task
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	if _, ok := m.tasks[id]; !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	r := m.runs[id]
	delete(m.runs, id)
	delete(m.tasks, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	m.mu.Unlock()

	if r != nil {
		r.worker.Cancel()
	}
	m.sched.RemoveTask(id)

	if h := m.opts.History; h != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := h.DeleteTask(ctx, id); err != nil {
			m.logger.Warn("delete task history", "task", id, "error", err)
		}
	}

	m.logger.Info("task removed", "task", id)
	return m.Save()
}

func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// List returns copies in insertion order
func (m *Manager) List() []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id].Clone())
	}
	return out
}

// Find returns the first task whose id or name matches ref. An id prefix of
// at least 4 characters also matches when it is unambiguous.
func (m *Manager) Find(ref string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tasks[ref]; ok {
		return t.Clone(), true
	}

	var match *Task
	for _, id := range m.order {
		t := m.tasks[id]
		if t.Name == ref {
			return t.Clone(), true
		}
		if len(ref) >= 4 && strings.HasPrefix(id, ref) {
			if match != nil {
				return nil, false
			}
			match = t
		}
	}
	if match == nil {
		return nil, false
	}
	return match.Clone(), true
}

func (m *Manager) IsRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[id]
	return ok
}

// Run starts the task in the background
func (m *Manager) Run(id string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if _, running := m.runs[id]; running {
		m.mu.Unlock()
		return ErrTaskRunning
	}

	argv := BuildArgs(m.opts.RclonePath, m.opts.RcloneConfigPath, task)
	worker := NewWorker(id, argv, func(s Stats) { m.onStats(id, s) }, m.logger)
	r := &run{worker: worker, started: m.opts.Now(), bookkept: make(chan struct{})}
	m.runs[id] = r

	task.Status = StatusRunning
	task.SetProgress(0)
	task.FilesTransferred = 0
	task.BytesTransferred = 0
	task.ErrorMessage = nil
	m.mu.Unlock()

	m.logger.Info("task started", "task", id, "args", argv[1:])
	m.publishStatus(id, StatusRunning, "")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		outcome := worker.Run()
		m.complete(id, r, outcome)
	}()
	return nil
}

func (m *Manager) onStats(id string, s Stats) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if s.HasProgress {
		task.SetProgress(s.Percent)
		task.BytesTransferred = s.BytesTransferred
	}
	if s.HasFiles {
		task.FilesTransferred = s.FilesTransferred
	}
	data := events.ProgressData{
		Percent: task.Progress,
		Files:   task.FilesTransferred,
		Bytes:   task.BytesTransferred,
	}
	m.mu.Unlock()

	if s.HasProgress {
		m.opts.Bus.Emit(events.TaskProgress, id, data)
	}
	m.opts.Bus.Emit(events.TaskStats, id, s)
}

func (m *Manager) complete(id string, r *run, outcome Outcome) {
	defer close(r.bookkept)
	finished := m.opts.Now()

	m.mu.Lock()
	task, ok := m.tasks[id]
	current := m.runs[id]
	if current == r {
		delete(m.runs, id)
	}
	// false when the task was removed or a newer run owns it
	owner := ok && current == r

	var status Status
	var scheduled bool
	var files, bytes int64
	if owner {
		task.LastRun = &finished
		switch {
		case outcome.Success:
			status = StatusCompleted
			task.ErrorMessage = nil
		case r.worker.Cancelled():
			status = StatusIdle
			task.ErrorMessage = nil
		default:
			status = StatusError
			msg := outcome.Message
			task.ErrorMessage = &msg
		}
		task.Status = status
		scheduled = task.Scheduled
		files, bytes = task.FilesTransferred, task.BytesTransferred
	}
	m.mu.Unlock()

	m.logger.Info("task finished", "task", id, "success", outcome.Success, "message", outcome.Message, "code", outcome.ExitCode)

	if owner {
		if status == StatusError {
			m.publishStatus(id, status, outcome.Message)
			m.opts.Bus.Emit(events.TaskError, id, events.StatusData{Status: string(status), Error: outcome.Message})
		} else {
			m.publishStatus(id, status, "")
		}
		if scheduled {
			m.sched.UpdateLastRun(id, finished)
		}
	}
	m.opts.Bus.Emit(events.TaskCompleted, id, events.CompletedData{Success: outcome.Success, Message: outcome.Message})

	if h := m.opts.History; h != nil && ok {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		_, err := h.Record(ctx, &RunRecord{
			TaskID:     id,
			StartedAt:  r.started,
			FinishedAt: finished,
			Success:    outcome.Success,
			Message:    outcome.Message,
			ExitCode:   outcome.ExitCode,
			Bytes:      bytes,
			Files:      files,
		})
		if err != nil {
			m.logger.Warn("record run", "task", id, "error", err)
		}
	}

	if owner {
		_ = m.Save()
	}
}

// Cancel stops a running task and returns it to idle
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	r := m.runs[id]
	if r == nil {
		m.mu.Unlock()
		return nil
	}
	task.Status = StatusIdle
	m.mu.Unlock()

	r.worker.Cancel()
	m.publishStatus(id, StatusIdle, "")
	m.logger.Info("task cancelled", "task", id)
	return nil
}

// Wait blocks until the current run of id finishes or ctx is done
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	r := m.runs[id]
	m.mu.Unlock()
	if r == nil {
		return nil
	}

	select {
	case <-r.bookkept:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) EnableSchedule(id, expr string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	var lastRun time.Time
	if task.LastRun != nil {
		lastRun = *task.LastRun
	}
	m.mu.Unlock()

	if err := m.sched.AddTask(id, expr, lastRun); err != nil {
		return err
	}

	m.mu.Lock()
	task, ok = m.tasks[id]
	if !ok {
		m.mu.Unlock()
		m.sched.RemoveTask(id)
		return ErrTaskNotFound
	}
	task.Scheduled = true
	task.CronExpression = expr
	m.mu.Unlock()

	m.logger.Info("task scheduled", "task", id, "cron", expr)
	return m.Save()
}

func (m *Manager) DisableSchedule(id string) error {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	task.Scheduled = false
	m.mu.Unlock()

	m.sched.RemoveTask(id)
	m.logger.Info("task unscheduled", "task", id)
	return m.Save()
}

// UpdateSchedule replaces the cron expression and reschedules when enabled
func (m *Manager) UpdateSchedule(id, expr string) error {
	if err := scheduler.ValidateCron(expr); err != nil {
		return err
	}

	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	scheduled := task.Scheduled
	m.mu.Unlock()

	if scheduled {
		if _, err := m.sched.UpdateTask(id, expr); err != nil {
			return err
		}
	}

	m.mu.Lock()
	task, ok = m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	task.CronExpression = expr
	m.mu.Unlock()
	return m.Save()
}

func (m *Manager) NextRunText(id string) string {
	return m.sched.NextRunText(id)
}

func (m *Manager) NextRun(id string) (time.Time, bool) {
	return m.sched.NextRun(id)
}

func (m *Manager) ValidateCron(expr string) error {
	return scheduler.ValidateCron(expr)
}

// RunHistory lists past runs of id, newest first
func (m *Manager) RunHistory(ctx context.Context, id string, limit int) ([]*RunRecord, error) {
	if m.opts.History == nil {
		return []*RunRecord{}, nil
	}
	return m.opts.History.List(ctx, id, limit)
}

// Shutdown stops the scheduler, cancels every run and waits for their
// bookkeeping or ctx
func (m *Manager) Shutdown(ctx context.Context) {
	m.sched.Stop()

	m.mu.Lock()
	running := make([]*Worker, 0, len(m.runs))
	for _, r := range m.runs {
		running = append(running, r.worker)
	}
	m.mu.Unlock()

	for _, w := range running {
		w.Cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timed out waiting for tasks", "running", len(running))
	}
}

// runDue is the scheduler callback
func (m *Manager) runDue(id string) error {
	err := m.Run(id)
	if errors.Is(err, ErrTaskRunning) {
		m.logger.Debug("scheduled run skipped, task busy", "task", id)
		return nil
	}
	return err
}

func (m *Manager) publishStatus(id string, status Status, errMsg string) {
	m.opts.Bus.Emit(events.TaskStatus, id, events.StatusData{Status: string(status), Error: errMsg})
}
