package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fangligamedev/OiiLike/internal/config"
	"github.com/fangligamedev/OiiLike/internal/printer"
	"github.com/fangligamedev/OiiLike/internal/relay"
	"github.com/redis/go-redis/v9"
)

// loadConfig reads --config, falling back to defaults when the file is
// missing, then applies --space and --redis-url.
func loadConfig() (*config.OiiConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, printer.ErrorWithContext(
				"invalid configuration",
				err.Error(),
				map[string]string{"Config": configPath},
				[]string{"Fix the file, or regenerate it:\n  oiilike init --force"},
			)
		}
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	if spaceName != "" {
		cfg.Space = spaceName
	}
	if redisURL != "" {
		cfg.Relay.Enabled = true
		cfg.Relay.RedisURL = redisURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}

// connectRelay opens a relay client for the configured space and verifies Redis.
func connectRelay(ctx context.Context) (*relay.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if !cfg.Relay.Enabled {
		return nil, printer.Error(
			"relay not configured",
			"This command reads events mirrored to Redis, but no relay is configured.",
			[]string{
				"Set the Redis URL:\n  export REDIS_URL=redis://localhost:6379",
				"Or pass it directly:\n  oiilike <command> --redis-url redis://localhost:6379",
			},
		)
	}

	redisOpts, err := redis.ParseURL(cfg.Relay.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := relay.NewClient(redisOpts, cfg.Space)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Relay.RedisURL),
			map[string]string{"Space": cfg.Space},
			[]string{"Check that Redis is running and REDIS_URL is correct"},
		)
	}

	return client, nil
}
