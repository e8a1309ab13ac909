package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fangligamedev/OiiLike/internal/agent"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSpace runs a planner and one worker per handler until the test ends.
func startSpace(t *testing.T, handlers map[blackboard.AgentRole]agent.Handler) (*blackboard.Blackboard, *Planner) {
	t.Helper()

	board := blackboard.New()
	planner := NewPlanner(board)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go planner.Run(ctx)
	for role, h := range handlers {
		go agent.NewWorker(board, role, h, agent.WithPollInterval(20*time.Millisecond)).Run(ctx)
	}
	<-planner.Ready()

	return board, planner
}

func builtinHandlers(t *testing.T) map[blackboard.AgentRole]agent.Handler {
	handlers := make(map[blackboard.AgentRole]agent.Handler)
	for _, role := range blackboard.AllAgents {
		h, err := agent.HandlerFor(role, 0)
		require.NoError(t, err)
		handlers[role] = h
	}
	return handlers
}

func TestPlanner_RequestIsApproved(t *testing.T) {
	board, planner := startSpace(t, builtinHandlers(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := planner.Submit(ctx, "a bouncing ball", "ball")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusRunning, req.Status)
	assert.Len(t, req.Tasks, 2)

	final, err := planner.Wait(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusApproved, final.Status)
	assert.Empty(t, final.Reason)
	assert.Len(t, final.Tasks, 4, "texture, code, test and review")

	summary := board.Summary()
	assert.Equal(t, 4, summary.Tasks.Completed)
	assert.True(t, summary.Drained())
	assert.Equal(t, []string{"ball"}, summary.Resources[blackboard.CategoryTextures])
	assert.Equal(t, []string{"ball"}, summary.Resources[blackboard.CategoryScripts])
	assert.Equal(t, []string{"ball"}, summary.Resources[blackboard.CategoryTestResults])

	original, ok := board.Context("original_request")
	require.True(t, ok)
	assert.Equal(t, "a bouncing ball", original)

	got, ok := planner.Get(req.ID)
	require.True(t, ok)
	assert.Equal(t, RequestStatusApproved, got.Status)
}

func TestPlanner_ReviewWaitsForTexture(t *testing.T) {
	handlers := builtinHandlers(t)
	textures := make(chan struct{})
	image := handlers[blackboard.AgentVoidShaper]
	handlers[blackboard.AgentVoidShaper] = func(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
		select {
		case <-textures:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return image(ctx, task, board)
	}
	board, planner := startSpace(t, handlers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := planner.Submit(ctx, "a crate", "crate")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return board.Summary().Tasks.Completed == 2
	}, 2*time.Second, 10*time.Millisecond, "code and test finish first")
	assert.Empty(t, board.PendingFor(blackboard.AgentProducer))

	close(textures)

	final, err := planner.Wait(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusApproved, final.Status)
}

func TestPlanner_FailedTaskFailsRequest(t *testing.T) {
	handlers := builtinHandlers(t)
	handlers[blackboard.AgentCodeWeaver] = func(ctx context.Context, task blackboard.Task, _ *blackboard.Blackboard) (map[string]any, error) {
		return nil, assert.AnError
	}
	_, planner := startSpace(t, handlers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := planner.Submit(ctx, "a door", "door")
	require.NoError(t, err)

	final, err := planner.Wait(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusFailed, final.Status)
	assert.Contains(t, final.Reason, "write_code task")
	assert.Contains(t, final.Reason, assert.AnError.Error())
}

func TestPlanner_SubmitValidation(t *testing.T) {
	_, planner := startSpace(t, nil)

	_, err := planner.Submit(context.Background(), "", "x")
	assert.ErrorContains(t, err, "cannot be empty")

	req, err := planner.Submit(context.Background(), "something", "")
	require.NoError(t, err)
	assert.Equal(t, "asset", req.Name)

	_, err = planner.Wait(context.Background(), "missing")
	assert.ErrorContains(t, err, "unknown request")

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = planner.Wait(waitCtx, req.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlanner_FailedRequestPublishesNoMoreTasks(t *testing.T) {
	handlers := builtinHandlers(t)
	delete(handlers, blackboard.AgentInquisitor)
	handlers[blackboard.AgentVoidShaper] = func(ctx context.Context, task blackboard.Task, _ *blackboard.Blackboard) (map[string]any, error) {
		return nil, errors.New("no gpu")
	}
	written := make(chan struct{})
	code := handlers[blackboard.AgentCodeWeaver]
	handlers[blackboard.AgentCodeWeaver] = func(ctx context.Context, task blackboard.Task, board *blackboard.Blackboard) (map[string]any, error) {
		// finish only after the texture failure has been recorded
		select {
		case <-written:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return code(ctx, task, board)
	}
	board, planner := startSpace(t, handlers)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := planner.Submit(ctx, "a lamp", "lamp")
	require.NoError(t, err)

	final, err := planner.Wait(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestStatusFailed, final.Status)
	assert.Contains(t, final.Reason, "no gpu")

	close(written)
	require.Eventually(t, func() bool {
		s := board.Summary()
		return s.Tasks.Completed == 1 && s.Tasks.Failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the planner handles the completion asynchronously
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, board.PendingFor(blackboard.AgentInquisitor))
	assert.True(t, board.Summary().Drained())

	got, ok := planner.Get(req.ID)
	require.True(t, ok)
	assert.Len(t, got.Tasks, 2)
}
