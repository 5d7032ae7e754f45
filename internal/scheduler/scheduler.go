package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/robfig/cron/v3"
)

var ErrInvalidCron = errors.New("invalid cron expression")

const (
	DefaultTickInterval = 60 * time.Second
	nextRunLayout       = "2006-01-02 15:04"
	NotScheduled        = "not scheduled"
)

// Callback is invoked for every due task. Errors and panics are logged and
// never reach the tick loop.
type Callback func(taskID string) error

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithBus(bus *events.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

func WithCallback(cb Callback) Option {
	return func(s *Scheduler) { s.callback = cb }
}

// Scheduler fires cron-scheduled tasks. A task fires at most once until its
// last run is updated by the job completing, so a slow job never piles up
// duplicate runs.
type Scheduler struct {
	exprs     map[string]string
	lastRun   map[string]time.Time
	triggered mapset.Set[string]
	lastCheck time.Time

	now          func() time.Time
	tickInterval time.Duration
	logger       *slog.Logger
	bus          *events.Bus
	callback     Callback
	mu           sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
	runMu  sync.Mutex
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		exprs:        make(map[string]string),
		lastRun:      make(map[string]time.Time),
		triggered:    mapset.NewThreadUnsafeSet[string](),
		now:          time.Now,
		tickInterval: DefaultTickInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// SetCallback replaces the due-task callback
func (s *Scheduler) SetCallback(cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Start ticks once immediately, then on every interval where the wall-clock
// minute has changed
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	lastMinute := s.now().Truncate(time.Minute)
	s.Tick()
	s.logger.Info("scheduler started", "interval", s.tickInterval)

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				minute := s.now().Truncate(time.Minute)
				if minute.Equal(lastMinute) {
					continue
				}
				lastMinute = minute
				s.Tick()
			}
		}
	}(s.done)
}

func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.logger.Info("scheduler stopped")
}

// Tick checks every scheduled task and fires the ones that are due
func (s *Scheduler) Tick() {
	now := s.now()

	s.mu.Lock()
	if !s.lastCheck.IsZero() && now.Before(s.lastCheck) {
		s.logger.Warn("clock moved backwards, resetting triggered tasks", "now", now, "lastCheck", s.lastCheck)
		s.triggered.Clear()
	}
	s.lastCheck = now
	tasks := maps.Clone(s.exprs)
	callback := s.callback
	s.mu.Unlock()

	for id, expr := range tasks {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			s.logger.Error("invalid cron expression", "task", id, "expr", expr, "error", err)
			continue
		}

		s.mu.Lock()
		base, ok := s.lastRun[id]
		if !ok {
			base = time.Unix(0, 0)
		}
		next := sched.Next(base)
		if next.IsZero() || now.Before(next) || s.triggered.Contains(id) {
			s.mu.Unlock()
			continue
		}
		s.triggered.Add(id)
		s.lastRun[id] = now
		s.mu.Unlock()

		s.logger.Info("task due", "task", id, "scheduledFor", next)
		s.bus.Emit(events.TaskDue, id, nil)
		s.invoke(callback, id)
	}
}

func (s *Scheduler) invoke(cb Callback, id string) {
	if cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler callback panicked", "task", id, "panic", r)
		}
	}()

	if err := cb(id); err != nil {
		s.logger.Error("scheduler callback failed", "task", id, "error", err)
	}
}

// AddTask schedules id. A zero lastRun means the task never ran.
func (s *Scheduler) AddTask(id, expr string, lastRun time.Time) error {
	if err := ValidateCron(expr); err != nil {
		s.logger.Error("add task: invalid cron expression", "task", id, "expr", expr, "error", err)
		return err
	}

	s.mu.Lock()
	s.exprs[id] = strings.TrimSpace(expr)
	if !lastRun.IsZero() {
		s.lastRun[id] = lastRun
	}
	s.mu.Unlock()

	s.logger.Info("task scheduled", "task", id, "expr", expr)
	return nil
}

func (s *Scheduler) RemoveTask(id string) {
	s.mu.Lock()
	delete(s.exprs, id)
	delete(s.lastRun, id)
	s.triggered.Remove(id)
	s.mu.Unlock()

	s.logger.Info("task unscheduled", "task", id)
}

// UpdateTask changes the expression of an already scheduled task, keeping
// its last run. It reports false when id is not scheduled.
func (s *Scheduler) UpdateTask(id, expr string) (bool, error) {
	s.mu.Lock()
	_, scheduled := s.exprs[id]
	lastRun := s.lastRun[id]
	s.mu.Unlock()

	if !scheduled {
		return false, nil
	}
	if err := s.AddTask(id, expr, lastRun); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateLastRun records a completed run and re-arms the task
func (s *Scheduler) UpdateLastRun(id string, t time.Time) {
	if t.IsZero() {
		t = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exprs[id]; !ok {
		return
	}
	s.lastRun[id] = t
	s.triggered.Remove(id)
}

// NextRun returns the next fire time after the last run (or now), and false
// when the task is not scheduled
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	expr, ok := s.exprs[id]
	base, hasRun := s.lastRun[id]
	s.mu.Unlock()

	if !ok {
		return time.Time{}, false
	}
	if !hasRun {
		base = s.now()
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		s.logger.Error("next run: invalid cron expression", "task", id, "error", err)
		return time.Time{}, false
	}

	next := sched.Next(base)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

func (s *Scheduler) NextRunText(id string) string {
	next, ok := s.NextRun(id)
	if !ok {
		return NotScheduled
	}
	return next.Format(nextRunLayout)
}

func (s *Scheduler) IsScheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.exprs[id]
	return ok
}

// Tasks returns a copy of the scheduled id → expression map
func (s *Scheduler) Tasks() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.exprs)
}

func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.exprs)
	clear(s.lastRun)
	s.triggered.Clear()
	s.lastCheck = time.Time{}
}

// ValidateCron accepts standard five-field cron expressions
func ValidateCron(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCron)
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCron, err)
	}
	return nil
}
