package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/google/uuid"
)

// GetTask retrieves a single mirrored task by ID and writes it as pretty-printed JSON.
// Returns TaskNotFoundError if the task was never relayed.
func GetTask(ctx context.Context, client *relay.Client, taskID string, w io.Writer) error {
	if _, err := uuid.Parse(taskID); err != nil {
		return fmt.Errorf("invalid task ID format: must be a valid UUID")
	}

	task, err := client.GetTask(ctx, taskID)
	if err != nil {
		if relay.IsNotFound(err) {
			return &TaskNotFoundError{TaskID: taskID}
		}
		return fmt.Errorf("failed to fetch task: %w", err)
	}

	if err := FormatSingleJSON(w, task); err != nil {
		return fmt.Errorf("failed to format task: %w", err)
	}

	return nil
}

// TaskNotFoundError reports a task ID missing from the relay.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task with ID '%s' not found", e.TaskID)
}

// IsNotFound returns true if the error is a TaskNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*TaskNotFoundError)
	return ok
}
