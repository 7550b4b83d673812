// Package scheduler runs the periodic and manually triggered tasks of the
// daemon on a single goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/vmunix/reelq/internal/metrics"
)

// ErrUnknownTask is returned when triggering a task that is not in the table.
var ErrUnknownTask = errors.New("unknown task")

// DefaultTick is how often due tasks are looked for.
const DefaultTick = time.Second

// maxJobHistory bounds the finished manual jobs kept for Jobs.
const maxJobHistory = 100

// Task is one entry of the task table.
type Task struct {
	Name     string
	Schedule cron.Schedule
	Spec     string // schedule as configured, for display
	Run      func(ctx context.Context) error
	// Enabled gates periodic runs. Nil means always enabled.
	Enabled func() bool
	// Pausable tasks are skipped while the queue is paused.
	Pausable bool
}

// NewTask parses spec ("@every 5s" or five-field cron) into a Task.
func NewTask(name, spec string, pausable bool, run func(ctx context.Context) error) (Task, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return Task{}, fmt.Errorf("task %s: parse schedule %q: %w", name, spec, err)
	}
	return Task{Name: name, Schedule: sched, Spec: spec, Run: run, Pausable: pausable}, nil
}

// JobStatus is the state of a manually triggered run.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a manually triggered task run.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Task       string     `json:"task"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskInfo reports the schedule and last outcome of a task.
type TaskInfo struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Pausable  bool       `json:"pausable"`
	Enabled   bool       `json:"enabled"`
	NextRun   time.Time  `json:"next_run"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Pauser reports whether pausable work must be skipped.
type Pauser interface {
	Paused() bool
}

type entry struct {
	Task
	next    time.Time
	lastRun *time.Time
	lastErr string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTick overrides the tick interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// Scheduler walks the task table serially. Manual jobs run ahead of
// periodic work and ignore the pause.
type Scheduler struct {
	pauser Pauser
	log    *slog.Logger
	now    func() time.Time
	tick   time.Duration

	mu      sync.Mutex
	entries []*entry
	jobs    map[uuid.UUID]*Job
	order   []uuid.UUID
	pending []uuid.UUID
	wake    chan struct{}
}

// New builds a scheduler over tasks. Duplicate task names are rejected.
func New(tasks []Task, pauser Pauser, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		pauser: pauser,
		log:    logger.With("component", "scheduler"),
		now:    time.Now,
		tick:   DefaultTick,
		jobs:   make(map[uuid.UUID]*Job),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	now := s.now()
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil || t.Schedule == nil {
			return nil, fmt.Errorf("task %q: name, schedule and run are required", t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("task %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
		s.entries = append(s.entries, &entry{Task: t, next: t.Schedule.Next(now)})
	}
	return s, nil
}

// Run ticks until ctx is cancelled. A task already running is allowed to
// return before Run does.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "tasks", len(s.entries), "tick", s.tick)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-s.wake:
			s.runJobs(ctx)
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs queued manual jobs, then every periodic task that is due.
func (s *Scheduler) Tick(ctx context.Context) {
	s.runJobs(ctx)
	now := s.now()
	for _, e := range s.snapshotEntries() {
		if ctx.Err() != nil {
			return
		}
		if !s.due(e, now) {
			continue
		}
		if e.Enabled != nil && !e.Enabled() {
			continue
		}
		if e.Pausable && s.pauser != nil && s.pauser.Paused() {
			continue
		}
		s.execute(ctx, e)
		s.runJobs(ctx)
	}
}

func (s *Scheduler) snapshotEntries() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// due reports whether e is due at now and advances its next run.
func (s *Scheduler) due(e *entry, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Before(e.next) {
		return false
	}
	e.next = e.Schedule.Next(now)
	return true
}

func (s *Scheduler) execute(ctx context.Context, e *entry) error {
	start := s.now()
	err := e.Run(ctx)
	elapsed := s.now().Sub(start)
	metrics.ObserveTask(e.Name, elapsed, err)

	s.mu.Lock()
	e.lastRun = &start
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("task failed", "task", e.Name, "duration", elapsed, "error", err)
	} else {
		s.log.Debug("task finished", "task", e.Name, "duration", elapsed)
	}
	return err
}

// Trigger queues a one-shot run of the named task.
func (s *Scheduler) Trigger(name string) (uuid.UUID, error) {
	if s.entry(name) == nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	job := &Job{ID: uuid.New(), Task: name, Status: JobQueued, QueuedAt: s.now()}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.pending = append(s.pending, job.ID)
	s.trimLocked()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.log.Info("task triggered", "task", name, "job_id", job.ID)
	return job.ID, nil
}

func (s *Scheduler) entry(name string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryLocked(name)
}

func (s *Scheduler) entryLocked(name string) *entry {
	for _, e := range s.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// trimLocked drops the oldest finished jobs beyond the history limit.
func (s *Scheduler) trimLocked() {
	for len(s.order) > maxJobHistory {
		idx := slices.IndexFunc(s.order, func(id uuid.UUID) bool {
			st := s.jobs[id].Status
			return st == JobSucceeded || st == JobFailed
		})
		if idx < 0 {
			return
		}
		delete(s.jobs, s.order[idx])
		s.order = slices.Delete(s.order, idx, idx+1)
	}
}

func (s *Scheduler) runJobs(ctx context.Context) {
	for ctx.Err() == nil {
		job, e := s.nextJob()
		if job == nil {
			return
		}

		err := s.execute(ctx, e)

		finished := s.now()
		s.mu.Lock()
		job.FinishedAt = &finished
		if err != nil {
			job.Status = JobFailed
			job.Error = err.Error()
		} else {
			job.Status = JobSucceeded
		}
		s.mu.Unlock()
	}
}

// nextJob takes the oldest queued job that may run now and marks it
// running. Jobs of pausable tasks stay queued while the pauser is paused.
func (s *Scheduler) nextJob() (*Job, *entry) {
	paused := s.pauser != nil && s.pauser.Paused()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.pending {
		job := s.jobs[id]
		e := s.entryLocked(job.Task)
		if paused && e.Pausable {
			continue
		}
		s.pending = slices.Delete(s.pending, i, i+1)
		started := s.now()
		job.Status = JobRunning
		job.StartedAt = &started
		return job, e
	}
	return nil, nil
}

// Job returns a copy of the job with id.
func (s *Scheduler) Job(id uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Jobs returns every known job, newest first.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.jobs[s.order[i]])
	}
	return out
}

// Tasks describes the task table in order.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info := TaskInfo{
			Name:      e.Name,
			Schedule:  e.Spec,
			Pausable:  e.Pausable,
			Enabled:   e.Enabled == nil || e.Enabled(),
			NextRun:   e.next,
			LastError: e.lastErr,
		}
		if e.lastRun != nil {
			t := *e.lastRun
			info.LastRun = &t
		}
		out = append(out, info)
	}
	return out
}
