package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/retinue/internal/companion"
	"github.com/dyluth/retinue/internal/timespec"
	"github.com/dyluth/retinue/pkg/wire"
)

// Transport kinds
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportWS     = "ws"
)

// Defaults applied by Validate
const (
	DefaultRedisURL    = "redis://localhost:6379"
	DefaultRelayURL    = "http://localhost:8070"
	DefaultBrokerImage = "redis:7-alpine"
	DefaultHealthAddr  = ":8080"
	DefaultAutoRelease = "22:00"
	DefaultStartTime   = "06:00"
	DefaultTickRate    = "100ms"
	DefaultTimeStep    = "7s"
	defaultMaxPerPeer  = 1
	supportedVersion   = "1.0"
)

// RetinueConfig represents the top-level retinue.yml configuration
type RetinueConfig struct {
	Version string `yaml:"version"`
	Session string `yaml:"session"`

	AutoReleaseAt string `yaml:"auto_release_at,omitempty"` // "22:00"
	StartTime     string `yaml:"start_time,omitempty"`      // "06:00"
	Exclusive     bool   `yaml:"exclusive,omitempty"`
	MaxPerPeer    *int   `yaml:"max_per_peer,omitempty"` // default = 1
	Capacity      int    `yaml:"capacity,omitempty"`     // 0 = one slot per companion
	BlackoutDays  []int  `yaml:"blackout_days,omitempty"`

	TickRate string `yaml:"tick_rate,omitempty"` // real time per world tick
	TimeStep string `yaml:"time_step,omitempty"` // real time per ten game minutes

	ContentDir string      `yaml:"content_dir,omitempty"`
	Companions []Companion `yaml:"companions"`

	Transport *TransportConfig `yaml:"transport,omitempty"`
	Broker    *BrokerConfig    `yaml:"broker,omitempty"`
	Health    *HealthConfig    `yaml:"health,omitempty"`

	autoReleaseAt int
	startTime     int
	tickInterval  time.Duration
	timeStep      time.Duration
}

// Companion represents a single recruitable companion
type Companion struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`
	Home string `yaml:"home,omitempty"` // location the body returns to
}

// TransportConfig specifies how peers reach each other
type TransportConfig struct {
	Kind     string `yaml:"kind"` // memory, redis or ws
	RedisURL string `yaml:"redis_url,omitempty"`
	RelayURL string `yaml:"relay_url,omitempty"`
}

// BrokerConfig overrides the docker-managed Redis broker
type BrokerConfig struct {
	Image string `yaml:"image,omitempty"`
	Port  int    `yaml:"port,omitempty"` // 0 = next free port from 6379
}

// HealthConfig specifies the health and metrics listener
type HealthConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Validate performs strict validation on the configuration and applies defaults
func (c *RetinueConfig) Validate() error {
	// Required: version
	if c.Version != supportedVersion {
		return fmt.Errorf("unsupported version: %s (expected: %s)", c.Version, supportedVersion)
	}

	// Required: session
	if c.Session == "" {
		return fmt.Errorf("session is required")
	}

	// Required: at least one companion
	if len(c.Companions) == 0 {
		return fmt.Errorf("no companions defined")
	}

	seen := make(map[string]bool, len(c.Companions))
	for i := range c.Companions {
		comp := &c.Companions[i]
		if comp.ID == "" {
			return fmt.Errorf("companion %d: id is required", i)
		}
		if seen[comp.ID] {
			return fmt.Errorf("duplicate companion id '%s'", comp.ID)
		}
		seen[comp.ID] = true
		if comp.Name == "" {
			comp.Name = comp.ID
		}
	}

	var err error
	if c.AutoReleaseAt == "" {
		c.AutoReleaseAt = DefaultAutoRelease
	}
	if c.autoReleaseAt, err = timespec.ParseClock(c.AutoReleaseAt); err != nil {
		return fmt.Errorf("auto_release_at: %w", err)
	}

	if c.StartTime == "" {
		c.StartTime = DefaultStartTime
	}
	if c.startTime, err = timespec.ParseClock(c.StartTime); err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	if c.startTime >= c.autoReleaseAt {
		return fmt.Errorf("start_time %s must be before auto_release_at %s", c.StartTime, c.AutoReleaseAt)
	}

	if c.MaxPerPeer == nil {
		n := defaultMaxPerPeer
		c.MaxPerPeer = &n
	}
	if *c.MaxPerPeer < 1 {
		return fmt.Errorf("max_per_peer must be >= 1, got %d", *c.MaxPerPeer)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0 (0 = one per companion), got %d", c.Capacity)
	}
	for _, d := range c.BlackoutDays {
		if d < 1 {
			return fmt.Errorf("blackout_days: day %d must be >= 1", d)
		}
	}

	if c.TickRate == "" {
		c.TickRate = DefaultTickRate
	}
	if c.tickInterval, err = timespec.ParseInterval(c.TickRate); err != nil {
		return fmt.Errorf("tick_rate: %w", err)
	}
	if c.TimeStep == "" {
		c.TimeStep = DefaultTimeStep
	}
	if c.timeStep, err = timespec.ParseInterval(c.TimeStep); err != nil {
		return fmt.Errorf("time_step: %w", err)
	}

	if c.ContentDir != "" {
		if info, err := os.Stat(c.ContentDir); err != nil || !info.IsDir() {
			return fmt.Errorf("content_dir does not exist: %s", c.ContentDir)
		}
	}

	if c.Transport == nil {
		c.Transport = &TransportConfig{}
	}
	if err := c.Transport.validate(); err != nil {
		return err
	}

	if c.Broker == nil {
		c.Broker = &BrokerConfig{}
	}
	if c.Broker.Image == "" {
		c.Broker.Image = DefaultBrokerImage
	}
	if c.Broker.Port < 0 || c.Broker.Port > 65535 {
		return fmt.Errorf("broker.port out of range: %d", c.Broker.Port)
	}

	if c.Health == nil {
		c.Health = &HealthConfig{}
	}
	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}

	return nil
}

func (t *TransportConfig) validate() error {
	if t.Kind == "" {
		t.Kind = TransportRedis
	}
	switch t.Kind {
	case TransportMemory:
	case TransportRedis:
		if t.RedisURL == "" {
			t.RedisURL = DefaultRedisURL
		}
	case TransportWS:
		if t.RelayURL == "" {
			t.RelayURL = DefaultRelayURL
		}
	default:
		return fmt.Errorf("invalid transport.kind: %s (must be 'memory', 'redis' or 'ws')", t.Kind)
	}
	return nil
}

// Rules returns the recruitment rules. Validate must have succeeded.
func (c *RetinueConfig) Rules() companion.Rules {
	rules := companion.DefaultRules()
	rules.AutoReleaseAt = c.autoReleaseAt
	rules.Exclusive = c.Exclusive
	rules.Capacity = c.Capacity
	rules.BlackoutDays = c.BlackoutDays
	if c.MaxPerPeer != nil {
		rules.MaxPerPeer = *c.MaxPerPeer
	}
	return rules
}

// StartClock returns the time of day (HHMM) each session day starts at.
func (c *RetinueConfig) StartClock() int { return c.startTime }

// TickInterval returns the parsed tick_rate.
func (c *RetinueConfig) TickInterval() time.Duration { return c.tickInterval }

// TimeStepInterval returns the parsed time_step.
func (c *RetinueConfig) TimeStepInterval() time.Duration { return c.timeStep }

// Lookup returns the companion with the given id.
func (c *RetinueConfig) Lookup(id wire.EntityID) (Companion, bool) {
	for _, comp := range c.Companions {
		if comp.ID == string(id) {
			return comp, true
		}
	}
	return Companion{}, false
}

// Load reads and validates retinue.yml from the specified path
func Load(path string) (*RetinueConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config RetinueConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
