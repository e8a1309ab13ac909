package metrics

import (
	"context"
	"testing"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObservesBoard(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	board := blackboard.New(blackboard.WithObserver(m))
	ctx := context.Background()

	ok := blackboard.NewTask(blackboard.TaskKindGenerateImage, blackboard.AgentVoidShaper, nil)
	bad := blackboard.NewTask(blackboard.TaskKindWriteCode, blackboard.AgentCodeWeaver, nil)
	waiting := blackboard.NewTask(blackboard.TaskKindReview, blackboard.AgentProducer, nil)
	for _, task := range []*blackboard.Task{ok, bad, waiting} {
		require.NoError(t, board.Publish(ctx, task))
	}

	_, err := board.Claim(ctx, blackboard.AgentVoidShaper)
	require.NoError(t, err)
	_, err = board.Claim(ctx, blackboard.AgentCodeWeaver)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksPending))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksRunning))

	_, err = board.Complete(ctx, ok.ID, nil)
	require.NoError(t, err)
	_, err = board.Fail(ctx, bad.ID, "nope")
	require.NoError(t, err)
	require.NoError(t, board.UpdateResource(ctx, blackboard.CategoryScripts, "player", "res://player.gd"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksPublished.WithLabelValues("generate_image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksClaimed.WithLabelValues("voidshaper")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksCompleted.WithLabelValues("voidshaper")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksFailed.WithLabelValues("codeweaver")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resourceUpdates.WithLabelValues("scripts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksPending))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tasksRunning))
}

func TestMetrics_RelayErrors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RelayError("publish")
	m.RelayError("publish")
	m.RelayError("log")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.relayErrors.WithLabelValues("publish")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayErrors.WithLabelValues("log")))
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.TaskPublished(blackboard.TaskKindRunTest)
	second.TaskPublished(blackboard.TaskKindRunTest)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.tasksPublished.WithLabelValues("run_test")))
	assert.Equal(t, 1, testutil.CollectAndCount(first.tasksPublished))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TaskPublished(blackboard.TaskKindReview)
		m.QueueDepth(1, 2)
		m.RelayError("task")
	})
}
