package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/redis/go-redis/v9"
)

// Client provides space-scoped Redis operations for mirroring blackboard activity.
// All keys and channels are automatically namespaced with the space name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb   *redis.Client
	space string
}

// NewClient creates a new relay client for the specified space.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - space: coordination space identifier (must not be empty)
//
// Returns an error if space is empty.
func NewClient(redisOpts *redis.Options, space string) (*Client, error) {
	if space == "" {
		return nil, fmt.Errorf("space name cannot be empty")
	}

	return &Client{
		rdb:   redis.NewClient(redisOpts),
		space: space,
	}, nil
}

// Space returns the space name this client is scoped to.
func (c *Client) Space() string {
	return c.space
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SaveTask writes the current state of a task as a Redis hash.
// Later saves of the same task replace every field.
func (c *Client) SaveTask(ctx context.Context, t *blackboard.Task) error {
	hash, err := TaskToHash(t)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	key := TaskKey(c.space, t.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write task to Redis: %w", err)
	}

	return nil
}

// GetTask retrieves a mirrored task by ID.
// Returns (nil, redis.Nil) if the task doesn't exist.
func (c *Client) GetTask(ctx context.Context, taskID string) (*blackboard.Task, error) {
	key := TaskKey(c.space, taskID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task from Redis: %w", err)
	}

	// HGetAll returns an empty map for missing keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	task, err := HashToTask(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize task: %w", err)
	}

	return task, nil
}

// ScanTaskIDs returns the IDs of mirrored tasks starting with prefix.
// Uses SCAN so large spaces do not block the server.
func (c *Client) ScanTaskIDs(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := TaskKeyPrefix(c.space)
	iter := c.rdb.Scan(ctx, 0, keyPrefix+prefix+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan task keys: %w", err)
	}

	return ids, nil
}

// AppendEvent adds an event to the space's event log.
// Uses ZADD with score=seq so re-adding the same event is a no-op.
func (c *Client) AppendEvent(ctx context.Context, e blackboard.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	z := redis.Z{
		Score:  EventScore(e.Seq),
		Member: string(data),
	}
	if err := c.rdb.ZAdd(ctx, EventLogKey(c.space), z).Err(); err != nil {
		return fmt.Errorf("failed to append event to log: %w", err)
	}

	return nil
}

// ListEvents returns mirrored events with fromSeq <= seq <= toSeq, in order.
// A toSeq of 0 means no upper bound.
func (c *Client) ListEvents(ctx context.Context, fromSeq, toSeq int64) ([]blackboard.Event, error) {
	maxScore := "+inf"
	if toSeq > 0 {
		maxScore = fmt.Sprintf("%d", toSeq)
	}

	members, err := c.rdb.ZRangeByScore(ctx, EventLogKey(c.space), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", fromSeq),
		Max: maxScore,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	events := make([]blackboard.Event, 0, len(members))
	for _, member := range members {
		var e blackboard.Event
		if err := json.Unmarshal([]byte(member), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, e)
	}

	return events, nil
}

// LastSeq returns the highest mirrored event sequence number, or 0 for an empty log.
func (c *Client) LastSeq(ctx context.Context) (int64, error) {
	top, err := c.rdb.ZRevRangeWithScores(ctx, EventLogKey(c.space), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read event log: %w", err)
	}
	if len(top) == 0 {
		return 0, nil
	}
	return SeqFromScore(top[0].Score), nil
}

// SaveSummary stores the latest blackboard summary as JSON.
func (c *Client) SaveSummary(ctx context.Context, s blackboard.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := c.rdb.Set(ctx, SummaryKey(c.space), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write summary to Redis: %w", err)
	}

	return nil
}

// GetSummary retrieves the latest mirrored summary.
// Returns (nil, redis.Nil) if no summary was stored yet.
func (c *Client) GetSummary(ctx context.Context) (*blackboard.Summary, error) {
	data, err := c.rdb.Get(ctx, SummaryKey(c.space)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read summary from Redis: %w", err)
	}

	var s blackboard.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}

	return &s, nil
}

// PublishEvent publishes the event JSON on the space's events channel.
func (c *Client) PublishEvent(ctx context.Context, e blackboard.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.rdb.Publish(ctx, EventsChannel(c.space), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// EventSubscription represents an active Pub/Sub subscription to relayed events.
// Caller must call Close() when done to clean up resources.
type EventSubscription struct {
	events <-chan blackboard.Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of relayed events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *EventSubscription) Events() <-chan blackboard.Event {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - malformed messages are skipped.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to relayed blackboard events for this space.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a subscriber that falls behind may miss events, and should
// fall back to ListEvents for a complete history.
func (c *Client) SubscribeEvents(ctx context.Context) (*EventSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.space))

	// Wait for subscription confirmation so no publish is missed after return
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to events channel: %w", err)
	}

	eventsChan := make(chan blackboard.Event, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var e blackboard.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- e:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
