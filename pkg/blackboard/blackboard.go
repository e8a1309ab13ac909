package blackboard

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"
)

// Observer receives counters for blackboard activity. Implementations must be
// cheap and non-blocking since they are called while the blackboard lock is held.
type Observer interface {
	TaskPublished(kind TaskKind)
	TaskClaimed(agent AgentRole)
	TaskCompleted(agent AgentRole)
	TaskFailed(agent AgentRole)
	ResourceUpdated(category string)
	QueueDepth(pending, running int)
}

// Blackboard is the shared, concurrency-safe coordination state for a set of
// agent roles. It owns a task queue, a resource store, per-agent status, an
// append-only event log, and the subscriptions fed from that log.
//
// A single RWMutex guards all state. Mutations hold the write lock for the
// whole transition, so the event log order is a valid linearization of the
// mutating calls. Subscribers are fed inside the critical section through
// non-blocking queues and drained outside it.
type Blackboard struct {
	mu sync.RWMutex

	tasks    map[string]*Task       // every tracked task by id
	pending  map[AgentRole][]string // per-agent FIFO of pending task ids
	running  map[string]struct{}    // ids of running tasks
	terminal []string               // completed and failed ids, in completion order

	pendingCount   int
	completedCount int
	failedCount    int
	runningByAgent map[AgentRole]int

	agents     []AgentRole
	categories []string
	resources  map[string]map[string]string
	shared     map[string]any

	events []Event
	subs   []*Subscription

	now      func() time.Time
	logger   *log.Logger
	observer Observer
}

// Option configures a Blackboard at construction.
type Option func(*Blackboard)

// WithCategories replaces the default resource categories.
func WithCategories(categories ...string) Option {
	return func(b *Blackboard) {
		b.categories = append([]string(nil), categories...)
	}
}

// WithAgents restricts the blackboard to the given agent roles.
func WithAgents(agents ...AgentRole) Option {
	return func(b *Blackboard) {
		b.agents = append([]AgentRole(nil), agents...)
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Blackboard) {
		b.now = now
	}
}

// WithLogger sets the logger used for operational messages.
func WithLogger(logger *log.Logger) Option {
	return func(b *Blackboard) {
		b.logger = logger
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(b *Blackboard) {
		b.observer = o
	}
}

// WithContext seeds the shared context bag. Keys override the defaults.
func WithContext(values map[string]any) Option {
	return func(b *Blackboard) {
		for k, v := range values {
			b.shared[k] = cloneValue(v)
		}
	}
}

// New creates an empty blackboard.
// Without options it registers all built-in agents and the default categories.
func New(opts ...Option) *Blackboard {
	b := &Blackboard{
		tasks:          make(map[string]*Task),
		pending:        make(map[AgentRole][]string),
		running:        make(map[string]struct{}),
		runningByAgent: make(map[AgentRole]int),
		agents:         append([]AgentRole(nil), AllAgents...),
		categories:     append([]string(nil), DefaultCategories...),
		shared: map[string]any{
			"original_request": "",
			"project_type":     "godot",
			"preferences":      map[string]any{},
		},
		now:    time.Now,
		logger: log.New(io.Discard, "", 0),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.resources = make(map[string]map[string]string, len(b.categories))
	for _, category := range b.categories {
		b.resources[category] = make(map[string]string)
	}
	for _, agent := range b.agents {
		b.runningByAgent[agent] = 0
	}

	return b
}

// Agents returns the registered agent roles.
func (b *Blackboard) Agents() []AgentRole {
	return append([]AgentRole(nil), b.agents...)
}

// Categories returns the registered resource categories.
func (b *Blackboard) Categories() []string {
	return append([]string(nil), b.categories...)
}

// Publish adds a pending task to the queue of its assigned agent.
// The blackboard keeps its own copy; later changes to t are not observed.
func (b *Blackboard) Publish(ctx context.Context, t *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidTask)
	}

	stored := t.clone()
	if stored.Status == "" {
		stored.Status = TaskStatusPending
	}
	if err := stored.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if stored.Status != TaskStatusPending {
		return fmt.Errorf("%w: status must be pending, got %s", ErrInvalidTask, stored.Status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isAgentLocked(stored.AssignedAgent) {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, stored.AssignedAgent)
	}
	if _, exists := b.tasks[stored.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, stored.ID)
	}

	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = b.now()
	}
	stored.Output = nil
	stored.CompletedAt = nil

	b.tasks[stored.ID] = &stored
	b.pending[stored.AssignedAgent] = append(b.pending[stored.AssignedAgent], stored.ID)
	b.pendingCount++

	b.appendEventLocked(EventTaskPublished, AgentProducer, map[string]any{
		"task_id":   stored.ID,
		"task_kind": string(stored.Kind),
		"agent":     string(stored.AssignedAgent),
	})

	if b.observer != nil {
		b.observer.TaskPublished(stored.Kind)
		b.observer.QueueDepth(b.pendingCount, len(b.running))
	}
	b.logger.Printf("[Blackboard] Published task %s (%s) for %s", stored.ID, stored.Kind, stored.AssignedAgent)

	return nil
}

// Claim moves the oldest pending task routed to agent into the running state.
// Returns ErrNoTask when nothing is pending for the agent. Under concurrent
// callers each pending task is returned to exactly one of them.
func (b *Blackboard) Claim(ctx context.Context, agent AgentRole) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isAgentLocked(agent) {
		return Task{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
	}

	queue := b.pending[agent]
	if len(queue) == 0 {
		return Task{}, ErrNoTask
	}

	id := queue[0]
	queue[0] = ""
	b.pending[agent] = queue[1:]
	if len(b.pending[agent]) == 0 {
		delete(b.pending, agent)
	}
	b.pendingCount--

	task, ok := b.tasks[id]
	if !ok || task.Status != TaskStatusPending {
		return Task{}, fmt.Errorf("%w: pending queue holds task %s outside the pending bucket", ErrConcurrencyViolation, id)
	}

	task.Status = TaskStatusRunning
	b.running[id] = struct{}{}
	b.runningByAgent[agent]++

	b.appendEventLocked(EventTaskClaimed, agent, map[string]any{
		"task_id": id,
	})

	if b.observer != nil {
		b.observer.TaskClaimed(agent)
		b.observer.QueueDepth(b.pendingCount, len(b.running))
	}
	b.logger.Printf("[Blackboard] Task %s claimed by %s", id, agent)

	return task.clone(), nil
}

// Complete moves a running task to completed and records its output.
// Unknown ids return ErrNotFound; tasks that are not running return
// ErrNotRunning and are left untouched, so repeated calls are harmless.
func (b *Blackboard) Complete(ctx context.Context, taskID string, output map[string]any) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	task, err := b.finishLocked(taskID, TaskStatusCompleted)
	if err != nil {
		return Task{}, err
	}
	task.Output = cloneMap(output)
	if task.Output == nil {
		task.Output = map[string]any{}
	}
	b.completedCount++

	b.appendEventLocked(EventTaskCompleted, task.AssignedAgent, map[string]any{
		"task_id": task.ID,
		"output":  cloneMap(task.Output),
	})

	if b.observer != nil {
		b.observer.TaskCompleted(task.AssignedAgent)
		b.observer.QueueDepth(b.pendingCount, len(b.running))
	}
	b.logger.Printf("[Blackboard] Task %s completed by %s", task.ID, task.AssignedAgent)

	return task.clone(), nil
}

// Fail moves a running task to failed with the given reason.
// It follows the same rules as Complete.
func (b *Blackboard) Fail(ctx context.Context, taskID string, reason string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	task, err := b.finishLocked(taskID, TaskStatusFailed)
	if err != nil {
		return Task{}, err
	}
	task.Error = reason
	b.failedCount++

	b.appendEventLocked(EventTaskFailed, task.AssignedAgent, map[string]any{
		"task_id": task.ID,
		"reason":  reason,
	})

	if b.observer != nil {
		b.observer.TaskFailed(task.AssignedAgent)
		b.observer.QueueDepth(b.pendingCount, len(b.running))
	}
	b.logger.Printf("[Blackboard] Task %s failed on %s: %s", task.ID, task.AssignedAgent, reason)

	return task.clone(), nil
}

// finishLocked performs the running → terminal bucket move shared by Complete and Fail.
func (b *Blackboard) finishLocked(taskID string, status TaskStatus) (*Task, error) {
	task, ok := b.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	_, isRunning := b.running[taskID]
	if task.Status != TaskStatusRunning {
		if isRunning {
			return nil, fmt.Errorf("%w: task %s in running bucket with status %s", ErrConcurrencyViolation, taskID, task.Status)
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRunning, taskID, task.Status)
	}
	if !isRunning {
		return nil, fmt.Errorf("%w: running task %s missing from running bucket", ErrConcurrencyViolation, taskID)
	}

	delete(b.running, taskID)
	b.terminal = append(b.terminal, taskID)
	if b.runningByAgent[task.AssignedAgent] > 0 {
		b.runningByAgent[task.AssignedAgent]--
	}

	completedAt := b.now()
	task.Status = status
	task.CompletedAt = &completedAt

	return task, nil
}

// UpdateResource stores value under (category, name), attributing the
// change to the producer role.
func (b *Blackboard) UpdateResource(ctx context.Context, category, name, value string) error {
	return b.UpdateResourceAs(ctx, AgentProducer, category, name, value)
}

// UpdateResourceAs stores value under (category, name) on behalf of source.
// Writing an unregistered category returns ErrInvalidCategory and changes nothing.
func (b *Blackboard) UpdateResourceAs(ctx context.Context, source AgentRole, category, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bucket, ok := b.resources[category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	bucket[name] = value

	b.appendEventLocked(EventResourceUpdated, source, map[string]any{
		"category": category,
		"name":     name,
		"value":    value,
	})

	if b.observer != nil {
		b.observer.ResourceUpdated(category)
	}
	b.logger.Printf("[Blackboard] Resource %s/%s updated by %s", category, name, source)

	return nil
}

// GetResource returns the current value stored under (category, name).
func (b *Blackboard) GetResource(category, name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.resources[category][name]
	return value, ok
}

// PendingFor returns a snapshot of the pending tasks routed to agent, oldest first.
func (b *Blackboard) PendingFor(agent AgentRole) []Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	queue := b.pending[agent]
	out := make([]Task, 0, len(queue))
	for _, id := range queue {
		out = append(out, b.tasks[id].clone())
	}
	return out
}

// Task returns a snapshot of a tracked task.
func (b *Blackboard) Task(taskID string) (Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	task, ok := b.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return task.clone(), true
}

// AgentStatus returns the current state of a registered agent.
func (b *Blackboard) AgentStatus(agent AgentRole) (AgentState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count, ok := b.runningByAgent[agent]
	if !ok {
		return "", false
	}
	return agentState(count), true
}

// Events returns a copy of the full event log.
func (b *Blackboard) Events() []Event {
	return b.EventsSince(0)
}

// EventsSince returns the events with Seq greater than seq.
func (b *Blackboard) EventsSince(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if seq < 0 {
		seq = 0
	}
	if seq >= int64(len(b.events)) {
		return []Event{}
	}
	out := make([]Event, 0, int64(len(b.events))-seq)
	for _, e := range b.events[seq:] {
		out = append(out, e.clone())
	}
	return out
}

// Context returns the value stored under key in the shared context.
func (b *Blackboard) Context(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.shared[key]
	return cloneValue(v), ok
}

// SetContext stores value under key in the shared context. Last write wins.
func (b *Blackboard) SetContext(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.shared[key] = cloneValue(value)
}

// ContextSnapshot returns a copy of the shared context.
func (b *Blackboard) ContextSnapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return cloneMap(b.shared)
}

// Summary reports bucket counts, resource names per category, and agent states.
func (b *Blackboard) Summary() Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Summary{
		Tasks: TaskCounts{
			Pending:   b.pendingCount,
			Running:   len(b.running),
			Completed: b.completedCount,
			Failed:    b.failedCount,
		},
		Resources:   make(map[string][]string, len(b.resources)),
		AgentStatus: make(map[AgentRole]AgentState, len(b.runningByAgent)),
		EventCount:  int64(len(b.events)),
	}

	for category, items := range b.resources {
		names := make([]string, 0, len(items))
		for name := range items {
			names = append(names, name)
		}
		sort.Strings(names)
		s.Resources[category] = names
	}

	for agent, count := range b.runningByAgent {
		s.AgentStatus[agent] = agentState(count)
	}

	return s
}

// appendEventLocked records an event and feeds matching subscriptions.
// Caller must hold the write lock.
func (b *Blackboard) appendEventLocked(kind EventKind, source AgentRole, payload map[string]any) {
	e := Event{
		Seq:       int64(len(b.events)) + 1,
		Kind:      kind,
		Source:    source,
		Payload:   payload,
		Timestamp: b.now(),
	}
	b.events = append(b.events, e)

	for _, sub := range b.subs {
		sub.enqueue(e.clone())
	}
}

func (b *Blackboard) isAgentLocked(agent AgentRole) bool {
	_, ok := b.runningByAgent[agent]
	return ok
}

func agentState(running int) AgentState {
	if running > 0 {
		return AgentStateBusy
	}
	return AgentStateIdle
}

// checkInvariants verifies that every tracked task sits in exactly one bucket
// matching its status. Used by tests after concurrent workloads.
func (b *Blackboard) checkInvariants() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]int, len(b.tasks))
	pending := 0
	for agent, queue := range b.pending {
		for _, id := range queue {
			seen[id]++
			pending++
			task := b.tasks[id]
			if task == nil || task.Status != TaskStatusPending || task.AssignedAgent != agent {
				return fmt.Errorf("%w: bad pending entry %s", ErrConcurrencyViolation, id)
			}
		}
	}
	if pending != b.pendingCount {
		return fmt.Errorf("%w: pending count %d != %d", ErrConcurrencyViolation, b.pendingCount, pending)
	}

	perAgent := make(map[AgentRole]int)
	for id := range b.running {
		seen[id]++
		task := b.tasks[id]
		if task == nil || task.Status != TaskStatusRunning {
			return fmt.Errorf("%w: bad running entry %s", ErrConcurrencyViolation, id)
		}
		perAgent[task.AssignedAgent]++
	}
	for agent, count := range b.runningByAgent {
		if perAgent[agent] != count {
			return fmt.Errorf("%w: agent %s running count %d != %d", ErrConcurrencyViolation, agent, count, perAgent[agent])
		}
	}

	for _, id := range b.terminal {
		seen[id]++
		task := b.tasks[id]
		if task == nil || !task.IsTerminal() {
			return fmt.Errorf("%w: bad terminal entry %s", ErrConcurrencyViolation, id)
		}
	}

	for id := range b.tasks {
		if seen[id] != 1 {
			return fmt.Errorf("%w: task %s appears in %d buckets", ErrConcurrencyViolation, id, seen[id])
		}
	}

	return nil
}
