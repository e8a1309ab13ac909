// Package hoard reads the event log and tasks that the relay mirrors to Redis.
package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/fangligamedev/OiiLike/internal/filter"
	"github.com/fangligamedev/OiiLike/internal/relay"
)

// OutputFormat specifies how to format the event list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated details
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete events as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ListEvents reads the mirrored event log for the client's space and writes
// the events matching filters to w in log order. fromSeq skips earlier events.
func ListEvents(ctx context.Context, client *relay.Client, fromSeq int64, format OutputFormat, filters *filter.Criteria, w io.Writer) error {
	events, err := client.ListEvents(ctx, fromSeq, 0)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	events = filters.Apply(events)

	switch format {
	case OutputFormatDefault:
		FormatTable(w, events, client.Space())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, events); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
