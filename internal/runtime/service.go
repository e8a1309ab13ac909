// Package runtime wires a blackboard, its agent workers, the request planner,
// the optional Redis relay, and the health server into one process.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fangligamedev/OiiLike/internal/agent"
	"github.com/fangligamedev/OiiLike/internal/config"
	"github.com/fangligamedev/OiiLike/internal/health"
	"github.com/fangligamedev/OiiLike/internal/metrics"
	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/fangligamedev/OiiLike/internal/workflow"
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Service owns every component of a running space.
type Service struct {
	cfg      *config.OiiConfig
	board    *blackboard.Blackboard
	planner  *workflow.Planner
	workers  []*agent.Worker
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	relayClient *relay.Client
	relay       *relay.Relay
	health      *health.Server
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	verbose     bool
	redisOpts   *redis.Options
	disableHTTP bool
}

// WithVerbose logs every blackboard transition to stderr.
func WithVerbose(v bool) Option {
	return func(o *serviceOptions) {
		o.verbose = v
	}
}

// WithRedisOptions overrides the relay connection parsed from the config.
func WithRedisOptions(opts *redis.Options) Option {
	return func(o *serviceOptions) {
		o.redisOpts = opts
	}
}

// WithoutHTTP disables the health server regardless of config.
func WithoutHTTP() Option {
	return func(o *serviceOptions) {
		o.disableHTTP = true
	}
}

// New builds a service from a validated configuration.
func New(cfg *config.OiiConfig, opts ...Option) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var boardLog io.Writer = io.Discard
	if o.verbose {
		boardLog = os.Stderr
	}

	board := blackboard.New(
		blackboard.WithAgents(cfg.Roles()...),
		blackboard.WithCategories(cfg.Resources.Categories...),
		blackboard.WithObserver(m),
		blackboard.WithLogger(log.New(boardLog, "", log.LstdFlags)),
		blackboard.WithContext(map[string]any{
			"project_type": cfg.Context.ProjectType,
			"preferences":  cfg.Context.Preferences,
		}),
	)

	s := &Service{
		cfg:      cfg,
		board:    board,
		planner:  workflow.NewPlanner(board),
		registry: registry,
		metrics:  m,
	}

	for _, role := range cfg.Roles() {
		agentCfg := cfg.Agents[string(role)]
		if !agentCfg.IsEnabled() {
			continue
		}

		handler, err := agent.HandlerFor(role, agentCfg.Delay())
		if err != nil {
			return nil, err
		}

		for i := 0; i < agentCfg.Workers; i++ {
			s.workers = append(s.workers, agent.NewWorker(board, role, handler,
				agent.WithPollInterval(agentCfg.PollEvery()),
				agent.WithName(fmt.Sprintf("%s-%d", role, i+1)),
			))
		}
	}

	if cfg.Relay.Enabled || o.redisOpts != nil {
		redisOpts := o.redisOpts
		if redisOpts == nil {
			parsed, err := redis.ParseURL(cfg.Relay.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("invalid relay.redis_url: %w", err)
			}
			redisOpts = parsed
		}

		client, err := relay.NewClient(redisOpts, cfg.Space)
		if err != nil {
			return nil, fmt.Errorf("failed to create relay client: %w", err)
		}
		s.relayClient = client
		s.relay = relay.New(board, client, m)
	}

	if !o.disableHTTP && cfg.Health.Addr != "" {
		var pinger health.Pinger
		if s.relayClient != nil {
			pinger = s.relayClient
		}
		s.health = health.NewServer(cfg.Health.Addr, board, pinger, registry)
	}

	return s, nil
}

// Board returns the service's blackboard.
func (s *Service) Board() *blackboard.Blackboard {
	return s.board
}

// Planner returns the service's request planner.
func (s *Service) Planner() *workflow.Planner {
	return s.planner
}

// Workers returns the number of configured workers.
func (s *Service) Workers() int {
	return len(s.workers)
}

// Health returns the health server, or nil when HTTP is disabled.
func (s *Service) Health() *health.Server {
	return s.health
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. The relay's Redis connection is verified before anything starts.
func (s *Service) Run(ctx context.Context) error {
	if s.relayClient != nil {
		if err := s.relayClient.Ping(ctx); err != nil {
			return fmt.Errorf("relay Redis not accessible: %w", err)
		}
	}

	if s.health != nil {
		if err := s.health.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.health.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("[Runtime] Space '%s' starting with %d workers", s.cfg.Space, len(s.workers))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.planner.Run(gctx)
	})

	if s.relay != nil {
		g.Go(func() error {
			return s.relay.Run(gctx)
		})
	}

	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	err := g.Wait()
	log.Printf("[Runtime] Space '%s' stopped", s.cfg.Space)
	return err
}

// WaitReady blocks until the planner and relay are subscribed to the blackboard.
func (s *Service) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.planner.Ready():
	}

	if s.relay != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.relay.Ready():
		}
	}

	return nil
}

// Submit forwards a user request to the planner.
func (s *Service) Submit(ctx context.Context, text, name string) (workflow.Request, error) {
	return s.planner.Submit(ctx, text, name)
}

// Close releases the relay connection. Implements io.Closer.
func (s *Service) Close() error {
	if s.relayClient != nil {
		return s.relayClient.Close()
	}
	return nil
}
