package blackboard

import "errors"

var (
	// ErrNotFound is returned when a task id is not tracked by the blackboard.
	ErrNotFound = errors.New("task not found")

	// ErrNoTask is returned by Claim when no pending task is routed to the agent.
	// It is not a failure: callers retry or wait for a publish notification.
	ErrNoTask = errors.New("no task available")

	// ErrNotRunning is returned by Complete and Fail for tasks that are not running.
	// The call has no effect on the task.
	ErrNotRunning = errors.New("task is not running")

	// ErrInvalidCategory is returned by UpdateResource for unregistered categories.
	ErrInvalidCategory = errors.New("unknown resource category")

	// ErrUnknownAgent is returned for agent roles not registered on the blackboard.
	ErrUnknownAgent = errors.New("unknown agent role")

	// ErrDuplicateTask is returned by Publish when the task id is already tracked.
	ErrDuplicateTask = errors.New("task already published")

	// ErrInvalidTask is returned by Publish when the task fails validation.
	ErrInvalidTask = errors.New("invalid task")

	// ErrConcurrencyViolation signals an internal bucket inconsistency.
	// It indicates a programming error, not a recoverable condition.
	ErrConcurrencyViolation = errors.New("blackboard consistency violation")
)

// IsNotFound returns true if err reports a missing task or an empty claim.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoTask)
}
