// Package watch renders blackboard events as they happen.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fangligamedev/OiiLike/internal/filter"
	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// OutputFormat selects how streamed events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps and emojis
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON, one event per line
	OutputFormatJSON OutputFormat = "json"
)

// formatter writes a single event.
type formatter interface {
	FormatEvent(e blackboard.Event) error
}

func newFormatter(format OutputFormat, w io.Writer) (formatter, error) {
	switch format {
	case OutputFormatDefault, "":
		return &defaultFormatter{writer: w}, nil
	case OutputFormatJSON:
		return &jsonFormatter{encoder: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// StreamActivity follows the relay's events channel for the client's space
// and writes each event matching filters to w until ctx is cancelled.
func StreamActivity(ctx context.Context, client *relay.Client, format OutputFormat, filters *filter.Criteria, w io.Writer) error {
	f, err := newFormatter(format, w)
	if err != nil {
		return err
	}

	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}
	defer sub.Close()

	if format != OutputFormatJSON {
		fmt.Fprintf(w, "Watching space '%s' (Ctrl+C to stop)\n", client.Space())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Errors():
			if ok {
				log.Printf("[Watch] Skipping event: %v", err)
			}
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if filters != nil && !filters.Matches(e) {
				continue
			}
			if err := f.FormatEvent(e); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
	}
}

// StreamBoard writes events from an in-process blackboard, starting with the
// events already in its log.
func StreamBoard(ctx context.Context, board *blackboard.Blackboard, format OutputFormat, filters *filter.Criteria, w io.Writer) error {
	f, err := newFormatter(format, w)
	if err != nil {
		return err
	}

	sub := board.SubscribeFrom(ctx, 0)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if filters != nil && !filters.Matches(e) {
				continue
			}
			if err := f.FormatEvent(e); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
	}
}

// PollForTerminal polls the relay until the task is completed or failed.
// Returns the terminal task or an error if timeout occurs.
func PollForTerminal(ctx context.Context, client *relay.Client, taskID string, timeout time.Duration) (*blackboard.Task, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for task %s after %v", taskID, timeout)

		case <-ticker.C:
			task, err := client.GetTask(ctx, taskID)
			if err != nil {
				if relay.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query task: %w", err)
			}
			if task.IsTerminal() {
				return task, nil
			}
		}
	}
}

type defaultFormatter struct {
	writer io.Writer
}

func (f *defaultFormatter) FormatEvent(e blackboard.Event) error {
	ts := e.Timestamp.Format("15:04:05")
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", ts, describe(e))
	return err
}

// describe renders the one-line human description of an event.
func describe(e blackboard.Event) string {
	switch e.Kind {
	case blackboard.EventTaskPublished:
		return fmt.Sprintf("📋 Task published: %v for %v, id=%s", e.Payload["task_kind"], e.Payload["agent"], e.TaskID())
	case blackboard.EventTaskClaimed:
		return fmt.Sprintf("⏳ Task claimed: by=%s, id=%s", e.Source, e.TaskID())
	case blackboard.EventTaskCompleted:
		return fmt.Sprintf("✅ Task completed: by=%s, id=%s", e.Source, e.TaskID())
	case blackboard.EventTaskFailed:
		return fmt.Sprintf("❌ Task failed: by=%s, id=%s, reason=%v", e.Source, e.TaskID(), e.Payload["reason"])
	case blackboard.EventResourceUpdated:
		return fmt.Sprintf("✨ Resource updated: %v/%v = %v (by=%s)", e.Payload["category"], e.Payload["name"], e.Payload["value"], e.Source)
	default:
		return fmt.Sprintf("🔔 %s: by=%s", e.Kind, e.Source)
	}
}

type jsonFormatter struct {
	encoder *json.Encoder
}

func (f *jsonFormatter) FormatEvent(e blackboard.Event) error {
	return f.encoder.Encode(e)
}
