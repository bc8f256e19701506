package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_SetStatusStampsCompletedAtOnce(t *testing.T) {
	task := &Task{Status: TaskStatusTodo}
	first := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	task.SetStatus(TaskStatusDone, first)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, first, *task.CompletedAt)

	task.SetStatus(TaskStatusInProgress, first.Add(time.Hour))
	task.SetStatus(TaskStatusDone, first.Add(48*time.Hour))

	assert.Equal(t, TaskStatusDone, task.Status)
	assert.Equal(t, first, *task.CompletedAt)
}

func TestTaskStatus_Valid(t *testing.T) {
	assert.True(t, TaskStatusPending.Valid())
	assert.True(t, TaskStatusCancelled.Valid())
	assert.False(t, TaskStatus("ARCHIVED").Valid())
	assert.True(t, TaskPriorityUrgent.Valid())
	assert.False(t, TaskPriority("").Valid())
}
