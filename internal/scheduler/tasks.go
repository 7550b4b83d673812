package scheduler

import (
	"context"
	"fmt"

	"github.com/vmunix/reelq/internal/queue"
)

// Names of the built-in tasks that are not queue runs.
const (
	TaskQueueUpdate     = "queue_update"
	TaskContentSources  = "content_sources"
	TaskReconcileDebrid = "reconcile_debrid"
	TaskResumeCheck     = "resume_check"
	TaskHeartbeat       = "heartbeat"
	TaskPurgeNotWanted  = "purge_not_wanted"
	TaskLibraryRescan   = "library_rescan"
	TaskPruneEvents     = "prune_events"
)

// DefaultSchedules holds the cadence of every built-in task except
// purge_not_wanted, which only runs when a schedule is configured.
var DefaultSchedules = map[string]string{
	queue.NameWanted:          "@every 5s",
	queue.NameScraping:        "@every 5s",
	queue.NameAdding:          "@every 5s",
	queue.NameChecking:        "@every 15s",
	queue.NameSleeping:        "@every 15s",
	queue.NameUnreleased:      "@every 15s",
	queue.NamePendingUncached: "@every 15s",
	queue.NameBlacklisted:     "@every 15s",
	queue.NameUpgrading:       "@every 15s",
	TaskQueueUpdate:           "@every 1m",
	TaskContentSources:        "@every 1m",
	TaskReconcileDebrid:       "@every 1h",
	TaskResumeCheck:           "@every 1m",
	TaskHeartbeat:             "@every 5m",
	TaskLibraryRescan:         "@every 30m",
	TaskPruneEvents:           "@daily",
}

// Override replaces the schedule or enablement of one task.
type Override struct {
	Schedule string
	Enabled  *bool
}

// Table builds tasks and applies overrides by name.
type Table struct {
	overrides map[string]Override
	tasks     []Task
	err       error
}

// NewTable starts an empty task table.
func NewTable(overrides map[string]Override) *Table {
	return &Table{overrides: overrides}
}

// Add appends a task running at spec unless overridden. The first
// error is kept and returned by Tasks.
func (t *Table) Add(name, spec string, pausable bool, enabled func() bool, run func(ctx context.Context) error) {
	if t.err != nil {
		return
	}
	if o, ok := t.overrides[name]; ok {
		if o.Schedule != "" {
			spec = o.Schedule
		}
		if o.Enabled != nil {
			on := *o.Enabled
			base := enabled
			enabled = func() bool { return on && (base == nil || base()) }
		}
	}
	if spec == "" {
		spec = DefaultSchedules[name]
	}
	if spec == "" {
		t.err = fmt.Errorf("task %s: no schedule", name)
		return
	}
	task, err := NewTask(name, spec, pausable, run)
	if err != nil {
		t.err = err
		return
	}
	task.Enabled = enabled
	t.tasks = append(t.tasks, task)
}

// Tasks returns the table, or the first error met while building it.
func (t *Table) Tasks() ([]Task, error) {
	if t.err != nil {
		return nil, t.err
	}
	for name := range t.overrides {
		if !t.has(name) {
			return nil, fmt.Errorf("%w: %s in scheduler overrides", ErrUnknownTask, name)
		}
	}
	return t.tasks, nil
}

func (t *Table) has(name string) bool {
	for _, task := range t.tasks {
		if task.Name == name {
			return true
		}
	}
	return false
}

// AddQueueTasks adds one pausable task per queue of m, in queue order,
// followed by the queue maintenance tasks.
func (t *Table) AddQueueTasks(m *queue.Manager) {
	for _, q := range m.Queues() {
		var enabled func() bool
		if q.Name() == queue.NameUpgrading {
			enabled = func() bool { return m.Settings().EnableUpgrading }
		}
		t.Add(q.Name(), "", true, enabled, func(ctx context.Context) error {
			return q.Process(ctx, m)
		})
	}
	t.Add(TaskQueueUpdate, "", false, nil, m.Update)
	t.Add(TaskReconcileDebrid, "", true, nil, m.ReconcileDebrid)
	t.Add(TaskResumeCheck, "", false, nil, m.ResumeCheck)
	t.Add(TaskHeartbeat, "", false, nil, m.Heartbeat)
}
