package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskKindWriteCode, AgentCodeWeaver, nil)

	require.NoError(t, task.Validate())
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.NotNil(t, task.Input)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Nil(t, task.CompletedAt)
	assert.False(t, task.IsTerminal())

	other := NewTask(TaskKindWriteCode, AgentCodeWeaver, nil)
	assert.NotEqual(t, task.ID, other.ID)
}

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr string
	}{
		{"valid", func(*Task) {}, ""},
		{"bad id", func(t *Task) { t.ID = "123" }, "invalid task ID"},
		{"bad kind", func(t *Task) { t.Kind = "paint" }, "invalid kind"},
		{"bad agent", func(t *Task) { t.AssignedAgent = "janitor" }, "invalid assigned agent"},
		{"bad status", func(t *Task) { t.Status = "paused" }, "invalid status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask(TaskKindReview, AgentProducer, nil)
			tt.mutate(task)

			err := task.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnums_Validate(t *testing.T) {
	for _, role := range AllAgents {
		assert.NoError(t, role.Validate())
	}
	assert.Error(t, AgentRole("Producer").Validate(), "roles are case sensitive")

	for _, kind := range AllEventKinds {
		assert.NoError(t, kind.Validate())
	}
	assert.Error(t, EventKind("task_update").Validate())
}

func TestIsTerminal(t *testing.T) {
	task := &Task{}
	for status, want := range map[TaskStatus]bool{
		TaskStatusPending:   false,
		TaskStatusRunning:   false,
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
	} {
		task.Status = status
		assert.Equal(t, want, task.IsTerminal(), status)
	}
}

func TestEvent_TaskID(t *testing.T) {
	assert.Equal(t, "abc", Event{Payload: map[string]any{"task_id": "abc"}}.TaskID())
	assert.Equal(t, "", Event{Payload: map[string]any{"category": "textures"}}.TaskID())
	assert.Equal(t, "", Event{}.TaskID())
}
