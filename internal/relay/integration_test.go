//go:build integration

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/fangligamedev/OiiLike/internal/testutil"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelay_AgainstRealRedis(t *testing.T) {
	client, err := NewClient(testutil.RedisOptions(t), "integration")
	require.NoError(t, err)
	defer client.Close()

	board := blackboard.New()
	r := New(board, client, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- r.Run(runCtx) }()
	<-r.Ready()

	external, err := client.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer external.Close()

	task := blackboard.NewTask(blackboard.TaskKindWriteCode, blackboard.AgentCodeWeaver, map[string]any{"name": "player"})
	require.NoError(t, board.Publish(ctx, task))
	_, err = board.Claim(ctx, blackboard.AgentCodeWeaver)
	require.NoError(t, err)
	_, err = board.Fail(ctx, task.ID, "compiler exploded")
	require.NoError(t, err)

	for want := int64(1); want <= 3; want++ {
		select {
		case e := <-external.Events():
			assert.Equal(t, want, e.Seq)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for event %d", want)
		}
	}

	stop()
	require.NoError(t, <-done)

	mirrored, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, blackboard.TaskStatusFailed, mirrored.Status)
	assert.Equal(t, "compiler exploded", mirrored.Error)

	ids, err := client.ScanTaskIDs(ctx, task.ID[:6])
	require.NoError(t, err)
	assert.Contains(t, ids, task.ID)

	last, err := client.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}
