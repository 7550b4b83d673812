package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelq/internal/queue"
)

func noop(context.Context) error { return nil }

func TestTable_DefaultsAndOverrides(t *testing.T) {
	off := false
	table := NewTable(map[string]Override{
		TaskHeartbeat:       {Schedule: "@every 10m"},
		TaskReconcileDebrid: {Enabled: &off},
	})
	table.Add(TaskHeartbeat, "", false, nil, noop)
	table.Add(TaskReconcileDebrid, "", true, nil, noop)
	table.Add(TaskPurgeNotWanted, "0 4 * * *", false, nil, noop)

	tasks, err := table.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "@every 10m", tasks[0].Spec)
	assert.Nil(t, tasks[0].Enabled)
	require.NotNil(t, tasks[1].Enabled)
	assert.False(t, tasks[1].Enabled())
	assert.Equal(t, "0 4 * * *", tasks[2].Spec)
}

func TestTable_Errors(t *testing.T) {
	table := NewTable(nil)
	table.Add(TaskPurgeNotWanted, "", false, nil, noop)
	_, err := table.Tasks()
	assert.Error(t, err, "purge has no default schedule")

	table = NewTable(nil)
	table.Add(TaskHeartbeat, "not a schedule", false, nil, noop)
	_, err = table.Tasks()
	assert.Error(t, err)

	table = NewTable(map[string]Override{"nonexistent": {Schedule: "@every 1m"}})
	table.Add(TaskHeartbeat, "", false, nil, noop)
	_, err = table.Tasks()
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestTable_AddQueueTasks(t *testing.T) {
	m := queue.NewManager(queue.Deps{Logger: testLogger()})
	table := NewTable(nil)
	table.AddQueueTasks(m)
	tasks, err := table.Tasks()
	require.NoError(t, err)

	var names []string
	pausable := map[string]bool{}
	for _, task := range tasks {
		names = append(names, task.Name)
		pausable[task.Name] = task.Pausable
	}
	assert.Equal(t, []string{
		queue.NameWanted, queue.NameScraping, queue.NameAdding, queue.NameChecking,
		queue.NameSleeping, queue.NameUnreleased, queue.NamePendingUncached,
		queue.NameBlacklisted, queue.NameUpgrading,
		TaskQueueUpdate, TaskReconcileDebrid, TaskResumeCheck, TaskHeartbeat,
	}, names)
	assert.True(t, pausable[queue.NameWanted])
	assert.True(t, pausable[TaskReconcileDebrid])
	assert.False(t, pausable[TaskResumeCheck])
	assert.False(t, pausable[TaskQueueUpdate])

	for _, task := range tasks {
		if task.Name == queue.NameUpgrading {
			require.NotNil(t, task.Enabled)
			assert.False(t, task.Enabled(), "upgrading follows scraping.enable_upgrading")
		}
		assert.Equal(t, DefaultSchedules[task.Name], task.Spec)
	}
}
