package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in the working directory.
const DefaultFileName = "oiilike.yml"

const (
	defaultSpace        = "default"
	defaultHealthAddr   = ":8080"
	defaultPollInterval = 500 * time.Millisecond
	defaultProjectType  = "godot"
)

var spaceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// OiiConfig represents the top-level oiilike.yml configuration
type OiiConfig struct {
	Version   string                 `yaml:"version"`
	Space     string                 `yaml:"space"`
	Agents    map[string]AgentConfig `yaml:"agents"`
	Resources *ResourcesConfig       `yaml:"resources,omitempty"`
	Relay     *RelayConfig           `yaml:"relay,omitempty"`
	Health    *HealthConfig          `yaml:"health,omitempty"`
	Context   *ContextConfig         `yaml:"context,omitempty"`
}

// AgentConfig configures the workers for one agent role
type AgentConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty"`       // Default: true
	Workers      int    `yaml:"workers,omitempty"`       // Concurrent workers for the role, default 1
	PollInterval string `yaml:"poll_interval,omitempty"` // Go duration, default 500ms
	WorkDelay    string `yaml:"work_delay,omitempty"`    // Simulated work time per task, default 0
}

// ResourcesConfig lists the resource categories the blackboard accepts
type ResourcesConfig struct {
	Categories []string `yaml:"categories"`
}

// RelayConfig controls mirroring of blackboard events to Redis
type RelayConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url,omitempty"` // Overridden by REDIS_URL
}

// HealthConfig controls the HTTP health/metrics server
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"` // Empty disables the server
}

// ContextConfig seeds the blackboard's shared context
type ContextConfig struct {
	ProjectType string         `yaml:"project_type,omitempty"`
	Preferences map[string]any `yaml:"preferences,omitempty"`
}

// Default returns the configuration written by `oiilike init`.
func Default() *OiiConfig {
	agents := make(map[string]AgentConfig, len(blackboard.AllAgents))
	for _, role := range blackboard.AllAgents {
		agents[string(role)] = AgentConfig{Workers: 1, PollInterval: defaultPollInterval.String()}
	}

	return &OiiConfig{
		Version: "1.0",
		Space:   defaultSpace,
		Agents:  agents,
		Resources: &ResourcesConfig{
			Categories: append([]string(nil), blackboard.DefaultCategories...),
		},
		Relay: &RelayConfig{
			Enabled:  false,
			RedisURL: "redis://localhost:6379",
		},
		Health: &HealthConfig{Addr: defaultHealthAddr},
		Context: &ContextConfig{
			ProjectType: defaultProjectType,
			Preferences: map[string]any{},
		},
	}
}

// Validate performs strict validation on the configuration and applies defaults
func (c *OiiConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Space == "" {
		c.Space = defaultSpace
	}
	if !spaceNamePattern.MatchString(c.Space) {
		return fmt.Errorf("invalid space name '%s': must be lowercase alphanumeric with '-' or '_'", c.Space)
	}

	// Required: at least one agent
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	for name, agent := range c.Agents {
		if err := agent.Validate(name); err != nil {
			return err
		}
		if agent.Workers == 0 {
			agent.Workers = 1
		}
		if agent.PollInterval == "" {
			agent.PollInterval = defaultPollInterval.String()
		}
		c.Agents[name] = agent
	}

	if c.Resources == nil || len(c.Resources.Categories) == 0 {
		c.Resources = &ResourcesConfig{Categories: append([]string(nil), blackboard.DefaultCategories...)}
	}
	seen := make(map[string]bool, len(c.Resources.Categories))
	for _, category := range c.Resources.Categories {
		if category == "" {
			return fmt.Errorf("resources.categories: empty category name")
		}
		if seen[category] {
			return fmt.Errorf("resources.categories: duplicate category '%s'", category)
		}
		seen[category] = true
	}

	if c.Relay == nil {
		c.Relay = &RelayConfig{}
	}
	if c.Relay.Enabled && c.Relay.RedisURL == "" {
		return fmt.Errorf("relay.redis_url is required when relay is enabled")
	}

	if c.Health == nil {
		c.Health = &HealthConfig{Addr: defaultHealthAddr}
	}

	if c.Context == nil {
		c.Context = &ContextConfig{}
	}
	if c.Context.ProjectType == "" {
		c.Context.ProjectType = defaultProjectType
	}
	if c.Context.Preferences == nil {
		c.Context.Preferences = map[string]any{}
	}

	return nil
}

// Validate performs validation on a single agent configuration
func (a *AgentConfig) Validate(name string) error {
	if err := blackboard.AgentRole(name).Validate(); err != nil {
		return fmt.Errorf("agent '%s': %w", name, err)
	}

	if a.Workers < 0 {
		return fmt.Errorf("agent '%s': workers cannot be negative, got %d", name, a.Workers)
	}

	if a.PollInterval != "" {
		d, err := time.ParseDuration(a.PollInterval)
		if err != nil {
			return fmt.Errorf("agent '%s': invalid poll_interval: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("agent '%s': poll_interval must be positive, got %s", name, a.PollInterval)
		}
	}

	if a.WorkDelay != "" {
		d, err := time.ParseDuration(a.WorkDelay)
		if err != nil {
			return fmt.Errorf("agent '%s': invalid work_delay: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("agent '%s': work_delay must be >= 0, got %s", name, a.WorkDelay)
		}
	}

	return nil
}

// IsEnabled reports whether workers should run for this agent.
func (a AgentConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// PollEvery returns the parsed poll interval. Call after Validate.
func (a AgentConfig) PollEvery() time.Duration {
	d, err := time.ParseDuration(a.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}

// Delay returns the parsed work delay. Call after Validate.
func (a AgentConfig) Delay() time.Duration {
	if a.WorkDelay == "" {
		return 0
	}
	d, _ := time.ParseDuration(a.WorkDelay)
	return d
}

// Roles returns the configured agent roles.
func (c *OiiConfig) Roles() []blackboard.AgentRole {
	roles := make([]blackboard.AgentRole, 0, len(c.Agents))
	for _, role := range blackboard.AllAgents {
		if _, ok := c.Agents[string(role)]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// ApplyEnv overrides file values with environment variables.
// REDIS_URL enables the relay; OII_SPACE selects the space.
func (c *OiiConfig) ApplyEnv() {
	if space := os.Getenv("OII_SPACE"); space != "" {
		c.Space = space
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if c.Relay == nil {
			c.Relay = &RelayConfig{}
		}
		c.Relay.RedisURL = redisURL
		c.Relay.Enabled = true
	}
}

// Load reads oiilike.yml from the specified path, applies environment
// overrides, and validates the result
func Load(path string) (*OiiConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*OiiConfig, error) {
	var config OiiConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Marshal encodes the configuration as YAML.
func (c *OiiConfig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return data, nil
}
