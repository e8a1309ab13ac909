// Package blackboard provides the shared coordination structure for the OiiLike
// agent roles. The blackboard is the single point of truth through which
// agents exchange tasks, resource references, and status, instead of calling
// each other directly.
//
// All state is in memory and lives for the lifetime of the Blackboard value.
package blackboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentRole identifies a logical worker role that consumes tasks routed to it.
type AgentRole string

const (
	// AgentProducer plans work and accepts the final result
	AgentProducer AgentRole = "producer"

	// AgentVoidShaper produces non-code assets such as textures
	AgentVoidShaper AgentRole = "voidshaper"

	// AgentCodeWeaver writes and repairs scripts
	AgentCodeWeaver AgentRole = "codeweaver"

	// AgentInquisitor runs tests and quality checks
	AgentInquisitor AgentRole = "inquisitor"
)

// AllAgents lists the built-in agent roles in their canonical order.
var AllAgents = []AgentRole{AgentProducer, AgentVoidShaper, AgentCodeWeaver, AgentInquisitor}

// TaskKind is the enumerated type of work a task describes.
type TaskKind string

const (
	TaskKindGenerateImage TaskKind = "generate_image"
	TaskKindWriteCode     TaskKind = "write_code"
	TaskKindRunTest       TaskKind = "run_test"
	TaskKindReview        TaskKind = "review"
)

// TaskStatus defines the lifecycle state of a task.
// Tasks move pending → running → completed, or running → failed.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting to be claimed
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusRunning indicates an agent has claimed the task
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted indicates the task finished with an output
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the claiming agent gave up on the task
	TaskStatusFailed TaskStatus = "failed"
)

// AgentState is the coarse activity status of an agent role.
type AgentState string

const (
	AgentStateIdle AgentState = "idle"
	AgentStateBusy AgentState = "busy"
)

// EventKind identifies the state change recorded by an Event.
type EventKind string

const (
	EventTaskPublished   EventKind = "task_publish"
	EventTaskClaimed     EventKind = "task_claim"
	EventTaskCompleted   EventKind = "task_complete"
	EventTaskFailed      EventKind = "task_fail"
	EventResourceUpdated EventKind = "resource_update"
)

// AllEventKinds lists every event kind the blackboard emits.
var AllEventKinds = []EventKind{
	EventTaskPublished, EventTaskClaimed, EventTaskCompleted, EventTaskFailed, EventResourceUpdated,
}

// Default resource categories established when no WithCategories option is given.
const (
	CategoryTextures    = "textures"
	CategoryScripts     = "scripts"
	CategoryTestResults = "test_results"
)

// DefaultCategories is the resource category set used by New when none are configured.
var DefaultCategories = []string{CategoryTextures, CategoryScripts, CategoryTestResults}

// Task is a unit of work routed to a single agent role.
// Input is owned by the task and never modified by the blackboard.
// Output is set exactly once, when the task completes.
type Task struct {
	ID            string         `json:"id"`             // UUID, assigned at creation
	Kind          TaskKind       `json:"kind"`           // Type of work
	AssignedAgent AgentRole      `json:"assigned_agent"` // Role the task is routed to
	Input         map[string]any `json:"input"`          // Opaque payload
	Status        TaskStatus     `json:"status"`
	Output        map[string]any `json:"output,omitempty"`       // Set on completion
	Error         string         `json:"error,omitempty"`        // Failure reason, set on failure
	CreatedAt     time.Time      `json:"created_at"`             // Stamped by NewTask or Publish
	CompletedAt   *time.Time     `json:"completed_at,omitempty"` // Nil until terminal
}

// NewTask creates a pending task with a fresh UUID.
func NewTask(kind TaskKind, agent AgentRole, input map[string]any) *Task {
	if input == nil {
		input = map[string]any{}
	}
	return &Task{
		ID:            uuid.New().String(),
		Kind:          kind,
		AssignedAgent: agent,
		Input:         input,
		Status:        TaskStatusPending,
		CreatedAt:     time.Now(),
	}
}

// IsTerminal reports whether the task has reached completed or failed.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Event is an immutable record of a blackboard state change.
// Seq is the 1-based position of the event in the log.
type Event struct {
	Seq       int64          `json:"seq"`
	Kind      EventKind      `json:"kind"`
	Source    AgentRole      `json:"source"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// TaskID returns the task_id payload field, or "" for resource events.
func (e Event) TaskID() string {
	id, _ := e.Payload["task_id"].(string)
	return id
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid task ID: not a valid UUID")
	}

	if err := t.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}

	if err := t.AssignedAgent.Validate(); err != nil {
		return fmt.Errorf("invalid assigned agent: %w", err)
	}

	if err := t.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	return nil
}

// Validate checks if the AgentRole is a valid enum value.
func (r AgentRole) Validate() error {
	switch r {
	case AgentProducer, AgentVoidShaper, AgentCodeWeaver, AgentInquisitor:
		return nil
	default:
		return fmt.Errorf("unknown agent role: %q", r)
	}
}

// Validate checks if the TaskKind is a valid enum value.
func (k TaskKind) Validate() error {
	switch k {
	case TaskKindGenerateImage, TaskKindWriteCode, TaskKindRunTest, TaskKindReview:
		return nil
	default:
		return fmt.Errorf("unknown task kind: %q", k)
	}
}

// Validate checks if the TaskStatus is a valid enum value.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown task status: %q", s)
	}
}

// Validate checks if the EventKind is a valid enum value.
func (k EventKind) Validate() error {
	switch k {
	case EventTaskPublished, EventTaskClaimed, EventTaskCompleted, EventTaskFailed, EventResourceUpdated:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", k)
	}
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// cloneMap deep-copies nested maps and slices so callers never share the
// blackboard's payloads.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// clone returns a copy of the task safe to hand to callers.
func (t *Task) clone() Task {
	c := *t
	c.Input = cloneMap(t.Input)
	c.Output = cloneMap(t.Output)
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return c
}

func (e Event) clone() Event {
	e.Payload = cloneMap(e.Payload)
	return e
}
