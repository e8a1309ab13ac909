package filter

import (
	"path/filepath"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
)

// Criteria defines filtering criteria for blackboard events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	KindGlob         string // Glob pattern for event kind, empty = no filter
	Agent            string // Exact match for event source, empty = no filter
	TaskID           string // Exact match for payload task_id, empty = no filter
}

// Matches returns true if the event matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(e blackboard.Event) bool {
	ts := e.Timestamp.UnixMilli()
	if c.SinceTimestampMs > 0 && ts < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && ts > c.UntilTimestampMs {
		return false
	}

	if c.KindGlob != "" {
		matched, err := filepath.Match(c.KindGlob, string(e.Kind))
		if err != nil || !matched {
			return false
		}
	}

	if c.Agent != "" && string(e.Source) != c.Agent {
		return false
	}

	if c.TaskID != "" && e.TaskID() != c.TaskID {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.KindGlob != "" ||
		c.Agent != "" ||
		c.TaskID != ""
}

// Apply returns the events that match c, preserving order.
func (c *Criteria) Apply(events []blackboard.Event) []blackboard.Event {
	if c == nil || !c.HasFilters() {
		return events
	}

	out := make([]blackboard.Event, 0, len(events))
	for _, e := range events {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
