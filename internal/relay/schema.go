package relay

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by space name so several
// coordination spaces can share one Redis server.
//
// Key pattern: oii:{space}:{entity}[:{id}]
// Channel pattern: oii:{space}:events

// TaskKey returns the Redis key for a mirrored task hash.
// Pattern: oii:{space}:task:{task_id}
func TaskKey(space, taskID string) string {
	return fmt.Sprintf("oii:%s:task:%s", space, taskID)
}

// TaskKeyPrefix returns the key prefix shared by every task hash of a space.
// Pattern: oii:{space}:task:
func TaskKeyPrefix(space string) string {
	return fmt.Sprintf("oii:%s:task:", space)
}

// EventLogKey returns the Redis key for the event log ZSET.
// Members are event JSON, scores are event sequence numbers.
// Pattern: oii:{space}:event_log
func EventLogKey(space string) string {
	return fmt.Sprintf("oii:%s:event_log", space)
}

// SummaryKey returns the Redis key holding the latest summary JSON.
// Pattern: oii:{space}:summary
func SummaryKey(space string) string {
	return fmt.Sprintf("oii:%s:summary", space)
}

// EventsChannel returns the Pub/Sub channel name for blackboard events.
// Pattern: oii:{space}:events
func EventsChannel(space string) string {
	return fmt.Sprintf("oii:%s:events", space)
}
