package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// FormatTable writes events as a formatted table to the provided writer.
// The table includes columns: SEQ, KIND, SOURCE, TASK, AGE, and DETAIL (truncated).
// Returns the number of events formatted.
func FormatTable(w io.Writer, events []blackboard.Event, space string) int {
	if len(events) == 0 {
		fmt.Fprintf(w, "No events found for space '%s'\n", space)
		return 0
	}

	fmt.Fprintf(w, "Events for space '%s':\n\n", space)

	fmt.Fprintf(w, "%-5s %-16s %-11s %-9s %-8s %s\n",
		"SEQ", "KIND", "SOURCE", "TASK", "AGE", "DETAIL")
	fmt.Fprintf(w, "%-5s %-16s %-11s %-9s %-8s %s\n",
		"-----", "----------------", "-----------", "---------", "--------", "----------------------------------------")

	for _, e := range events {
		fmt.Fprintf(w, "%-5d %-16s %-11s %-9s %-8s %s\n",
			e.Seq,
			e.Kind,
			formatSource(e.Source),
			formatID(e.TaskID()),
			formatAge(e.Timestamp),
			formatDetail(e),
		)
	}

	countMsg := "event"
	if len(events) != 1 {
		countMsg = "events"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(events), countMsg)

	return len(events)
}

// FormatJSONL writes events as line-delimited JSON (JSONL) to the provided writer.
// Each event is written as a single JSON object on its own line.
func FormatJSONL(w io.Writer, events []blackboard.Event) error {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single task as pretty-printed JSON to the provided writer.
func FormatSingleJSON(w io.Writer, task *blackboard.Task) error {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// formatID truncates a task ID to its first 8 characters. Empty IDs return "-".
func formatID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatSource(source blackboard.AgentRole) string {
	if source == "" {
		return "-"
	}
	return string(source)
}

// formatDetail summarises the event payload in at most 40 characters.
func formatDetail(e blackboard.Event) string {
	var detail string
	switch e.Kind {
	case blackboard.EventResourceUpdated:
		detail = fmt.Sprintf("%v/%v = %v", e.Payload["category"], e.Payload["name"], e.Payload["value"])
	case blackboard.EventTaskPublished:
		detail = fmt.Sprintf("%v → %v", e.Payload["task_kind"], e.Payload["agent"])
	default:
		detail = formatPayloadKeys(e.Payload)
	}

	detail = strings.TrimSpace(strings.SplitN(detail, "\n", 2)[0])
	if detail == "" {
		return "-"
	}
	if len(detail) > 40 {
		return detail[:37] + "..."
	}
	return detail
}

// formatPayloadKeys renders payload fields other than task_id as k=v pairs.
func formatPayloadKeys(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != "task_id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return strings.Join(parts, " ")
}

// formatAge shows the event time relative to now, like "2m ago".
func formatAge(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}

	diff := time.Since(ts)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
