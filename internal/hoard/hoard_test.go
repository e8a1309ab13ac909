package hoard

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fangligamedev/OiiLike/internal/filter"
	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *relay.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := relay.NewClient(&redis.Options{Addr: mr.Addr()}, "test-space")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func seedEvents(t *testing.T, client *relay.Client) string {
	t.Helper()
	ctx := context.Background()
	taskID := uuid.New().String()
	now := time.Now()

	events := []blackboard.Event{
		{Seq: 1, Kind: blackboard.EventTaskPublished, Source: blackboard.AgentProducer, Timestamp: now,
			Payload: map[string]any{"task_id": taskID, "task_kind": "generate_image", "agent": "voidshaper"}},
		{Seq: 2, Kind: blackboard.EventTaskClaimed, Source: blackboard.AgentVoidShaper, Timestamp: now,
			Payload: map[string]any{"task_id": taskID}},
		{Seq: 3, Kind: blackboard.EventResourceUpdated, Source: blackboard.AgentVoidShaper, Timestamp: now,
			Payload: map[string]any{"category": "textures", "name": "player", "value": "res://assets/player.png"}},
		{Seq: 4, Kind: blackboard.EventTaskCompleted, Source: blackboard.AgentVoidShaper, Timestamp: now,
			Payload: map[string]any{"task_id": taskID}},
	}
	for _, e := range events {
		require.NoError(t, client.AppendEvent(ctx, e))
	}
	return taskID
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("empty log prints notice", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		require.NoError(t, ListEvents(ctx, client, 0, OutputFormatDefault, nil, &buf))
		assert.Contains(t, buf.String(), "No events found for space 'test-space'")
	})

	t.Run("table output lists events in order", func(t *testing.T) {
		client := setupClient(t)
		taskID := seedEvents(t, client)

		var buf bytes.Buffer
		require.NoError(t, ListEvents(ctx, client, 0, OutputFormatDefault, nil, &buf))

		out := buf.String()
		assert.Contains(t, out, "Events for space 'test-space'")
		assert.Contains(t, out, taskID[:8])
		assert.Contains(t, out, "generate_image → voidshaper")
		assert.Contains(t, out, "4 events found")
		assert.Less(t, strings.Index(out, "task_publish"), strings.Index(out, "task_complete"))
	})

	t.Run("jsonl output is one event per line", func(t *testing.T) {
		client := setupClient(t)
		seedEvents(t, client)

		var buf bytes.Buffer
		require.NoError(t, ListEvents(ctx, client, 0, OutputFormatJSONL, nil, &buf))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		for i, line := range lines {
			var e blackboard.Event
			require.NoError(t, json.Unmarshal([]byte(line), &e))
			assert.Equal(t, int64(i+1), e.Seq)
		}
	})

	t.Run("fromSeq and filters narrow output", func(t *testing.T) {
		client := setupClient(t)
		seedEvents(t, client)

		var buf bytes.Buffer
		err := ListEvents(ctx, client, 2, OutputFormatJSONL, &filter.Criteria{KindGlob: "task_*"}, &buf)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, 2)
	})

	t.Run("unknown format", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		err := ListEvents(ctx, client, 0, OutputFormat("xml"), nil, &buf)
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestGetTask(t *testing.T) {
	ctx := context.Background()

	t.Run("prints task as JSON", func(t *testing.T) {
		client := setupClient(t)
		task := blackboard.NewTask(blackboard.TaskKindWriteCode, blackboard.AgentCodeWeaver, map[string]any{"name": "player"})
		require.NoError(t, client.SaveTask(ctx, task))

		var buf bytes.Buffer
		require.NoError(t, GetTask(ctx, client, task.ID, &buf))

		var got blackboard.Task
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, blackboard.TaskKindWriteCode, got.Kind)
	})

	t.Run("invalid ID", func(t *testing.T) {
		client := setupClient(t)
		err := GetTask(ctx, client, "not-a-uuid", &bytes.Buffer{})
		assert.ErrorContains(t, err, "invalid task ID format")
	})

	t.Run("missing task", func(t *testing.T) {
		client := setupClient(t)
		err := GetTask(ctx, client, uuid.New().String(), &bytes.Buffer{})
		assert.True(t, IsNotFound(err))
	})
}

func TestFormatDetail(t *testing.T) {
	t.Run("truncates long details", func(t *testing.T) {
		e := blackboard.Event{Kind: blackboard.EventTaskFailed, Payload: map[string]any{
			"task_id": "x",
			"reason":  strings.Repeat("a", 80),
		}}
		got := formatDetail(e)
		assert.Len(t, got, 40)
		assert.True(t, strings.HasSuffix(got, "..."))
	})

	t.Run("empty payload shows dash", func(t *testing.T) {
		e := blackboard.Event{Kind: blackboard.EventTaskClaimed, Payload: map[string]any{"task_id": "x"}}
		assert.Equal(t, "-", formatDetail(e))
	})
}
