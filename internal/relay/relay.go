package relay

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// flushTimeout bounds how long shutdown waits for unforwarded events.
const flushTimeout = 2 * time.Second

// ErrorRecorder counts relay failures. Satisfied by the metrics package.
type ErrorRecorder interface {
	RelayError(stage string)
}

// Relay forwards blackboard events to Redis for external observers.
// It is the only component that turns blackboard events into outbound
// messages; forwarding failures are logged and counted but never reported
// back to the blackboard.
type Relay struct {
	board  *blackboard.Blackboard
	client *Client
	errors ErrorRecorder
	ready  chan struct{}
}

// New creates a relay from board to the Redis space behind client.
// recorder may be nil.
func New(board *blackboard.Blackboard, client *Client, recorder ErrorRecorder) *Relay {
	return &Relay{
		board:  board,
		client: client,
		errors: recorder,
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the relay's blackboard subscription is registered.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run forwards the blackboard's existing log, then every new event, until ctx
// is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.board.SubscribeFrom(ctx, 0)
	defer sub.Close()
	close(r.ready)

	log.Printf("[Relay] Forwarding blackboard events to %s", EventsChannel(r.client.Space()))

	// Seed the summary so status readers see the space before the first event
	if err := r.client.SaveSummary(ctx, r.board.Summary()); err != nil {
		r.recordError("summary", err)
	}

	var lastSeq int64
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Relay] Shutting down...")
			r.flush(ctx, lastSeq)
			return nil

		case e, ok := <-sub.Events():
			if !ok {
				r.flush(ctx, lastSeq)
				return nil
			}
			r.Forward(ctx, e)
			lastSeq = e.Seq
		}
	}
}

// flush forwards events logged after lastSeq that the subscription had not
// delivered yet, so a clean shutdown leaves Redis in step with the board.
func (r *Relay) flush(ctx context.Context, lastSeq int64) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	pending := r.board.EventsSince(lastSeq)
	for _, e := range pending {
		if flushCtx.Err() != nil {
			r.recordError("flush", flushCtx.Err())
			return
		}
		r.Forward(flushCtx, e)
	}
	if len(pending) > 0 {
		log.Printf("[Relay] Flushed %d events on shutdown", len(pending))
	}
}

// Forward mirrors a single event: task state, event log, summary, then Pub/Sub.
// Each step is attempted even if an earlier one fails.
func (r *Relay) Forward(ctx context.Context, e blackboard.Event) {
	if taskID := e.TaskID(); taskID != "" {
		if task, ok := r.board.Task(taskID); ok {
			if err := r.client.SaveTask(ctx, &task); err != nil {
				r.recordError("task", err)
			}
		}
	}

	if err := r.client.AppendEvent(ctx, e); err != nil {
		r.recordError("log", err)
	}

	if err := r.client.SaveSummary(ctx, r.board.Summary()); err != nil {
		r.recordError("summary", err)
	}

	if err := r.client.PublishEvent(ctx, e); err != nil {
		r.recordError("publish", err)
	}

	r.logEvent("event_relayed", map[string]interface{}{
		"seq":    e.Seq,
		"kind":   e.Kind,
		"source": e.Source,
	})
}

func (r *Relay) recordError(stage string, err error) {
	if r.errors != nil {
		r.errors.RelayError(stage)
	}
	r.logEvent("relay_error", map[string]interface{}{
		"level": "error",
		"stage": stage,
		"error": err.Error(),
	})
}

// logEvent writes a structured JSON log line.
func (r *Relay) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if _, ok := data["level"]; !ok {
		data["level"] = "info"
	}
	data["component"] = "relay"
	data["event_type"] = eventType
	data["space"] = r.client.Space()

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Relay] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
