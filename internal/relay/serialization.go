package relay

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// Serialization helpers for converting between tasks and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Map payloads are
// JSON-encoded into single hash fields and timestamps are stored as Unix
// milliseconds.

// TaskToHash converts a Task to a Redis hash format.
func TaskToHash(t *blackboard.Task) (map[string]interface{}, error) {
	inputJSON, err := json.Marshal(t.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	outputJSON := ""
	if t.Output != nil {
		data, err := json.Marshal(t.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output: %w", err)
		}
		outputJSON = string(data)
	}

	var completedAtMs int64
	if t.CompletedAt != nil {
		completedAtMs = t.CompletedAt.UnixMilli()
	}

	hash := map[string]interface{}{
		"id":              t.ID,
		"kind":            string(t.Kind),
		"assigned_agent":  string(t.AssignedAgent),
		"status":          string(t.Status),
		"input":           string(inputJSON),
		"output":          outputJSON,
		"error":           t.Error,
		"created_at_ms":   t.CreatedAt.UnixMilli(),
		"completed_at_ms": completedAtMs,
	}

	return hash, nil
}

// HashToTask converts a Redis hash to a Task.
func HashToTask(hash map[string]string) (*blackboard.Task, error) {
	var input map[string]any
	if inputJSON := hash["input"]; inputJSON != "" {
		if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
	}
	if input == nil {
		input = map[string]any{}
	}

	var output map[string]any
	if outputJSON := hash["output"]; outputJSON != "" {
		if err := json.Unmarshal([]byte(outputJSON), &output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	task := &blackboard.Task{
		ID:            hash["id"],
		Kind:          blackboard.TaskKind(hash["kind"]),
		AssignedAgent: blackboard.AgentRole(hash["assigned_agent"]),
		Status:        blackboard.TaskStatus(hash["status"]),
		Input:         input,
		Output:        output,
		Error:         hash["error"],
		CreatedAt:     time.UnixMilli(createdAtMs),
	}

	if completedAtMs, _ := strconv.ParseInt(hash["completed_at_ms"], 10, 64); completedAtMs > 0 {
		completedAt := time.UnixMilli(completedAtMs)
		task.CompletedAt = &completedAt
	}

	return task, nil
}
