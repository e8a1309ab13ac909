package blackboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSubscribe_DeliversInLogOrder(t *testing.T) {
	ctx := context.Background()
	b := New()
	sub := b.Subscribe(ctx)
	defer sub.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, b.UpdateResource(ctx, CategoryTextures, fmt.Sprintf("t%d", i), "v"))
	}

	for i := 0; i < 50; i++ {
		e := receive(t, sub)
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestSubscribe_FiltersKinds(t *testing.T) {
	ctx := context.Background()
	b := New()
	sub := b.Subscribe(ctx, EventTaskCompleted)
	defer sub.Close()

	publishN(t, b, AgentProducer, TaskKindReview, 1)
	claimed, err := b.Claim(ctx, AgentProducer)
	require.NoError(t, err)
	_, err = b.Complete(ctx, claimed.ID, nil)
	require.NoError(t, err)

	e := receive(t, sub)
	assert.Equal(t, EventTaskCompleted, e.Kind)
	assert.Equal(t, claimed.ID, e.TaskID())
	assert.Equal(t, 0, sub.Backlog())
}

func TestSubscribe_SlowConsumerNeverBlocksOrDrops(t *testing.T) {
	ctx := context.Background()
	b := New()
	sub := b.Subscribe(ctx)
	defer sub.Close()

	// Nobody is reading: mutations must still complete
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.UpdateResource(ctx, CategoryScripts, fmt.Sprintf("s%d", i), "v")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mutations blocked on an idle subscriber")
	}

	for i := 0; i < 500; i++ {
		assert.Equal(t, int64(i+1), receive(t, sub).Seq)
	}
}

func TestSubscribe_HandlerMayReenter(t *testing.T) {
	ctx := context.Background()
	b := New()
	sub := b.Subscribe(ctx, EventTaskPublished)
	defer sub.Close()

	publishN(t, b, AgentVoidShaper, TaskKindGenerateImage, 1)

	// React to the publish by calling back into the blackboard
	e := receive(t, sub)
	claimed, err := b.Claim(ctx, AgentVoidShaper)
	require.NoError(t, err)
	assert.Equal(t, e.TaskID(), claimed.ID)

	_, err = b.Complete(ctx, claimed.ID, nil)
	require.NoError(t, err)
	publishN(t, b, AgentVoidShaper, TaskKindGenerateImage, 1)

	next := receive(t, sub)
	assert.Equal(t, EventTaskPublished, next.Kind)
	assert.Greater(t, next.Seq, e.Seq)
}

func TestSubscribe_CloseAndCancel(t *testing.T) {
	t.Run("close ends the stream and unsubscribes", func(t *testing.T) {
		b := New()
		sub := b.Subscribe(context.Background())
		assert.Equal(t, 1, b.Subscribers())

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close(), "close is idempotent")

		_, ok := <-sub.Events()
		assert.False(t, ok)
		assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

		// Mutations after close are unaffected
		assert.NoError(t, b.UpdateResource(context.Background(), CategoryTextures, "x", "y"))
	})

	t.Run("context cancellation ends the stream", func(t *testing.T) {
		b := New()
		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)

		cancel()
		_, ok := <-sub.Events()
		assert.False(t, ok)
		assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	})
}

func TestSubscribeFrom_ReplaysWithoutGap(t *testing.T) {
	ctx := context.Background()
	b := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.UpdateResource(ctx, CategoryTextures, fmt.Sprintf("t%d", i), "v"))
	}

	sub := b.SubscribeFrom(ctx, 1)
	defer sub.Close()

	require.NoError(t, b.UpdateResource(ctx, CategoryTextures, "live", "v"))

	for _, want := range []int64{2, 3, 4} {
		assert.Equal(t, want, receive(t, sub).Seq)
	}
}

func TestSubscribeFrom_ZeroReplaysEverything(t *testing.T) {
	ctx := context.Background()
	b := New()
	publishN(t, b, AgentProducer, TaskKindReview, 2)

	sub := b.SubscribeFrom(ctx, 0, EventTaskPublished)
	defer sub.Close()

	assert.Equal(t, int64(1), receive(t, sub).Seq)
	assert.Equal(t, int64(2), receive(t, sub).Seq)
}
