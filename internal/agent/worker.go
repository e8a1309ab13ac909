package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// Handler performs the work a task describes and returns its output.
// A returned error fails the task with the error text as reason.
type Handler func(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error)

const defaultPollInterval = 500 * time.Millisecond

// Worker is the claim loop for one agent role.
// It wakes on task_publish events routed to its role and falls back to
// polling, so a missed wake-up only delays work by one poll interval.
type Worker struct {
	role         blackboard.AgentRole
	name         string
	board        *blackboard.Blackboard
	handler      Handler
	pollInterval time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often the worker retries Claim without a wake-up.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithName sets the worker name used in log lines.
func WithName(name string) WorkerOption {
	return func(w *Worker) {
		w.name = name
	}
}

// NewWorker creates a worker that claims tasks for role and runs handler on them.
func NewWorker(board *blackboard.Blackboard, role blackboard.AgentRole, handler Handler, opts ...WorkerOption) *Worker {
	w := &Worker{
		role:         role,
		name:         string(role),
		board:        board,
		handler:      handler,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Role returns the agent role this worker claims for.
func (w *Worker) Role() blackboard.AgentRole {
	return w.role
}

// Run claims and executes tasks until ctx is cancelled.
// Returns nil on cancellation and an error only for unrecoverable claim failures.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("[Worker:%s] Starting", w.name)
	defer log.Printf("[Worker:%s] Exited cleanly", w.name)

	sub := w.board.Subscribe(ctx, blackboard.EventTaskPublished)
	defer sub.Close()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if agent, _ := e.Payload["agent"].(string); agent != string(w.role) {
				continue
			}
		}
	}
}

// drain claims and executes tasks until none are pending for the role.
func (w *Worker) drain(ctx context.Context) error {
	for {
		task, err := w.board.Claim(ctx, w.role)
		if err != nil {
			if blackboard.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("claim failed for %s: %w", w.role, err)
		}

		w.execute(ctx, task)
	}
}

// execute runs the handler and records the outcome on the blackboard.
// The terminal transition uses a context detached from cancellation so a
// shutdown mid-task still leaves the task completed or failed.
func (w *Worker) execute(ctx context.Context, task blackboard.Task) {
	log.Printf("[Worker:%s] Executing task %s (%s)", w.name, task.ID, task.Kind)

	output, err := w.safeHandle(ctx, task)
	finishCtx := context.WithoutCancel(ctx)

	if err != nil {
		log.Printf("[Worker:%s] Task %s failed: %v", w.name, task.ID, err)
		if _, ferr := w.board.Fail(finishCtx, task.ID, err.Error()); ferr != nil {
			log.Printf("[Worker:%s] Failed to record failure for %s: %v", w.name, task.ID, ferr)
		}
		return
	}

	if _, cerr := w.board.Complete(finishCtx, task.ID, output); cerr != nil {
		log.Printf("[Worker:%s] Failed to complete task %s: %v", w.name, task.ID, cerr)
	}
}

func (w *Worker) safeHandle(ctx context.Context, task blackboard.Task) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if w.handler == nil {
		return nil, fmt.Errorf("no handler registered for %s", w.role)
	}
	return w.handler(ctx, task, w.board)
}
