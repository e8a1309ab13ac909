package relay

// Event log scoring
//
// The event log is stored as a ZSET where:
// - Key: oii:{space}:event_log
// - Members: event JSON
// - Score: the event sequence number (as float64)
//
// Re-adding an event is idempotent and range reads by sequence are cheap.

// EventScore converts an event sequence number to a Redis ZSET score.
func EventScore(seq int64) float64 {
	return float64(seq)
}

// SeqFromScore converts a Redis ZSET score back to an event sequence number.
func SeqFromScore(score float64) int64 {
	return int64(score)
}
