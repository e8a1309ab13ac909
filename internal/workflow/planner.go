// Package workflow turns user requests into chains of blackboard tasks.
//
// A request starts as a texture task for the voidshaper and a script task for
// the codeweaver. When the script is written the planner asks the inquisitor
// to test it, and once both the texture and the test result are in, the
// producer reviews the work. The planner only reacts to blackboard events; it
// never calls an agent directly.
package workflow

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a submitted request.
type RequestStatus string

const (
	RequestStatusRunning  RequestStatus = "running"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusFailed   RequestStatus = "failed"
)

// Request is a snapshot of a submitted user request.
type Request struct {
	ID     string        `json:"id"`
	Text   string        `json:"text"`
	Name   string        `json:"name"`
	Status RequestStatus `json:"status"`
	Tasks  []string      `json:"tasks"`
	Reason string        `json:"reason,omitempty"`
}

type request struct {
	Request
	textureDone  bool
	testsDone    bool
	testsPassed  bool
	reviewQueued bool
	code         string
	done         chan struct{}
}

// Planner publishes the task chain for each request and advances it as tasks finish.
type Planner struct {
	board *blackboard.Blackboard

	mu       sync.Mutex
	requests map[string]*request
	byTask   map[string]string // task id → request id
	ready    chan struct{}
}

// NewPlanner creates a planner publishing to board. Call Run before Submit.
func NewPlanner(board *blackboard.Blackboard) *Planner {
	return &Planner{
		board:    board,
		requests: make(map[string]*request),
		byTask:   make(map[string]string),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to task completions.
func (p *Planner) Ready() <-chan struct{} {
	return p.ready
}

// Run follows task completions and failures until ctx is cancelled.
func (p *Planner) Run(ctx context.Context) error {
	sub := p.board.Subscribe(ctx, blackboard.EventTaskCompleted, blackboard.EventTaskFailed)
	defer sub.Close()
	close(p.ready)

	log.Printf("[Planner] Following task completions")

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			p.handle(ctx, e)
		}
	}
}

// Submit records text as the original request and publishes its first tasks.
// name identifies the asset the request is about and defaults to "asset".
func (p *Planner) Submit(ctx context.Context, text, name string) (Request, error) {
	if text == "" {
		return Request{}, fmt.Errorf("request text cannot be empty")
	}
	if name == "" {
		name = "asset"
	}

	req := &request{
		Request: Request{
			ID:     uuid.New().String(),
			Text:   text,
			Name:   name,
			Status: RequestStatusRunning,
		},
		done: make(chan struct{}),
	}

	p.board.SetContext("original_request", text)

	texture := blackboard.NewTask(blackboard.TaskKindGenerateImage, blackboard.AgentVoidShaper, map[string]any{
		"prompt":     fmt.Sprintf("Generate a texture for: %s", text),
		"name":       name,
		"request_id": req.ID,
	})
	code := blackboard.NewTask(blackboard.TaskKindWriteCode, blackboard.AgentCodeWeaver, map[string]any{
		"requirement": text,
		"name":        name,
		"request_id":  req.ID,
	})

	p.mu.Lock()
	p.requests[req.ID] = req
	p.mu.Unlock()

	for _, task := range []*blackboard.Task{texture, code} {
		if err := p.publish(ctx, req, task); err != nil {
			p.finish(req.ID, RequestStatusFailed, err.Error())
			return p.snapshot(req), err
		}
	}

	log.Printf("[Planner] Request %s submitted: %q", req.ID, text)
	return p.snapshot(req), nil
}

// Get returns a snapshot of a submitted request.
func (p *Planner) Get(requestID string) (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok {
		return Request{}, false
	}
	return p.snapshotLocked(req), true
}

// Wait blocks until the request is approved or failed, or ctx ends.
func (p *Planner) Wait(ctx context.Context, requestID string) (Request, error) {
	p.mu.Lock()
	req, ok := p.requests[requestID]
	p.mu.Unlock()
	if !ok {
		return Request{}, fmt.Errorf("unknown request: %s", requestID)
	}

	select {
	case <-ctx.Done():
		return p.snapshot(req), ctx.Err()
	case <-req.done:
		return p.snapshot(req), nil
	}
}

func (p *Planner) publish(ctx context.Context, req *request, task *blackboard.Task) error {
	p.mu.Lock()
	p.byTask[task.ID] = req.ID
	req.Tasks = append(req.Tasks, task.ID)
	p.mu.Unlock()

	if err := p.board.Publish(ctx, task); err != nil {
		return fmt.Errorf("failed to publish %s task: %w", task.Kind, err)
	}
	return nil
}

func (p *Planner) handle(ctx context.Context, e blackboard.Event) {
	taskID := e.TaskID()

	p.mu.Lock()
	reqID, ok := p.byTask[taskID]
	var req *request
	if ok {
		req = p.requests[reqID]
	}
	p.mu.Unlock()
	if req == nil {
		return
	}

	task, ok := p.board.Task(taskID)
	if !ok {
		return
	}

	if e.Kind == blackboard.EventTaskFailed {
		p.finish(reqID, RequestStatusFailed, fmt.Sprintf("%s task %s failed: %s", task.Kind, task.ID, task.Error))
		return
	}

	var next *blackboard.Task

	p.mu.Lock()
	if req.Status != RequestStatusRunning {
		p.mu.Unlock()
		return
	}
	switch task.Kind {
	case blackboard.TaskKindGenerateImage:
		req.textureDone = true
	case blackboard.TaskKindWriteCode:
		req.code, _ = task.Output["code"].(string)
		next = blackboard.NewTask(blackboard.TaskKindRunTest, blackboard.AgentInquisitor, map[string]any{
			"code":       req.code,
			"name":       req.Name,
			"request_id": req.ID,
		})
	case blackboard.TaskKindRunTest:
		req.testsDone = true
		req.testsPassed, _ = task.Output["passed"].(bool)
	case blackboard.TaskKindReview:
		p.mu.Unlock()
		p.finish(reqID, RequestStatusApproved, "")
		return
	}
	if next == nil && req.textureDone && req.testsDone && !req.reviewQueued {
		req.reviewQueued = true
		next = blackboard.NewTask(blackboard.TaskKindReview, blackboard.AgentProducer, map[string]any{
			"tests_passed": req.testsPassed,
			"name":         req.Name,
			"request_id":   req.ID,
		})
	}
	p.mu.Unlock()

	if next != nil {
		if err := p.publish(ctx, req, next); err != nil {
			log.Printf("[Planner] Request %s: %v", req.ID, err)
			p.finish(reqID, RequestStatusFailed, err.Error())
		}
	}
}

func (p *Planner) finish(requestID string, status RequestStatus, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[requestID]
	if !ok || req.Status != RequestStatusRunning {
		return
	}
	req.Status = status
	req.Reason = reason
	close(req.done)

	log.Printf("[Planner] Request %s %s", requestID, status)
}

func (p *Planner) snapshot(req *request) Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(req)
}

func (p *Planner) snapshotLocked(req *request) Request {
	out := req.Request
	out.Tasks = append([]string(nil), req.Tasks...)
	return out
}
