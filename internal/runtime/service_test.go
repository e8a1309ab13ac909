package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fangligamedev/OiiLike/internal/config"
	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/fangligamedev/OiiLike/internal/workflow"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.OiiConfig {
	t.Helper()
	cfg := config.Default()
	for name, a := range cfg.Agents {
		a.PollInterval = "20ms"
		cfg.Agents[name] = a
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

// start runs svc until the test ends and waits for it to be ready.
func start(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
		svc.Close()
	})

	readyCtx, readyCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readyCancel()
	require.NoError(t, svc.WaitReady(readyCtx))
}

func TestNew_BuildsWorkersPerRole(t *testing.T) {
	cfg := testConfig(t)
	voidshaper := cfg.Agents["voidshaper"]
	voidshaper.Workers = 3
	cfg.Agents["voidshaper"] = voidshaper

	disabled := false
	inquisitor := cfg.Agents["inquisitor"]
	inquisitor.Enabled = &disabled
	cfg.Agents["inquisitor"] = inquisitor

	svc, err := New(cfg, WithoutHTTP())
	require.NoError(t, err)

	assert.Equal(t, 5, svc.Workers(), "1 producer, 3 voidshapers, 1 codeweaver")
	assert.Nil(t, svc.Health())
	assert.ElementsMatch(t, blackboard.AllAgents, svc.Board().Agents())

	project, ok := svc.Board().Context("project_type")
	require.True(t, ok)
	assert.Equal(t, "godot", project)
}

func TestNew_RejectsBadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Relay.Enabled = true
	cfg.Relay.RedisURL = "not a url"

	_, err := New(cfg, WithoutHTTP())
	assert.ErrorContains(t, err, "invalid relay.redis_url")
}

func TestService_RunsRequestToApproval(t *testing.T) {
	svc, err := New(testConfig(t), WithoutHTTP())
	require.NoError(t, err)
	start(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := svc.Submit(ctx, "a bouncing ball", "ball")
	require.NoError(t, err)

	final, err := svc.Planner().Wait(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.RequestStatusApproved, final.Status)
	assert.Equal(t, 4, svc.Board().Summary().Tasks.Completed)
}

func TestService_MirrorsToRelay(t *testing.T) {
	mr := miniredis.RunT(t)

	svc, err := New(testConfig(t), WithoutHTTP(), WithRedisOptions(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	start(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := svc.Submit(ctx, "a crate", "crate")
	require.NoError(t, err)
	_, err = svc.Planner().Wait(ctx, req.ID)
	require.NoError(t, err)

	client, err := relay.NewClient(&redis.Options{Addr: mr.Addr()}, "default")
	require.NoError(t, err)
	defer client.Close()

	want := int64(len(svc.Board().Events()))
	require.Eventually(t, func() bool {
		last, err := client.LastSeq(ctx)
		return err == nil && last == want
	}, 2*time.Second, 20*time.Millisecond)

	summary, err := client.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Tasks.Completed)
}

func TestService_RunFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	svc, err := New(testConfig(t), WithoutHTTP(), WithRedisOptions(&redis.Options{Addr: addr}))
	require.NoError(t, err)
	defer svc.Close()

	err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "relay Redis not accessible")
}

func TestService_HealthServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Health.Addr = "127.0.0.1:0"

	svc, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.Health())
	start(t, svc)

	assert.NotEqual(t, "127.0.0.1:0", svc.Health().Addr())
}
