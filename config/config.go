// Package config loads the teamflow configuration from defaults, an
// optional YAML file, and TEAMFLOW_-prefixed environment variables, in that
// precedence order. It also supports hot reload of the tunable fields via
// a polling file watcher.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/teamflow-ai/teamflow/types"
)

// Config is the complete teamflow configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" env:"SERVER"`
	Formation   FormationConfig   `yaml:"formation" env:"FORMATION"`
	Negotiation NegotiationConfig `yaml:"negotiation" env:"NEGOTIATION"`
	Coordinator CoordinatorConfig `yaml:"coordinator" env:"COORDINATOR"`
	Pool        PoolConfig        `yaml:"pool" env:"POOL"`
	Redis       RedisConfig       `yaml:"redis" env:"REDIS"`
	Database    DatabaseConfig    `yaml:"database" env:"DATABASE"`
	Log         LogConfig         `yaml:"log" env:"LOG"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// FormationConfig tunes the team formation scorer.
type FormationConfig struct {
	// CapabilityMatchThreshold rejects candidates scoring below it.
	CapabilityMatchThreshold float64 `yaml:"capability_match_threshold" env:"CAPABILITY_MATCH_THRESHOLD"`
	PerformanceWeight        float64 `yaml:"performance_weight" env:"PERFORMANCE_WEIGHT"`
	SpecializationWeight     float64 `yaml:"specialization_weight" env:"SPECIALIZATION_WEIGHT"`
}

// NegotiationConfig tunes the negotiation engine.
type NegotiationConfig struct {
	// DefaultStrategy applies when a negotiation carries no stored
	// strategy and the resolver names none.
	DefaultStrategy string        `yaml:"default_strategy" env:"DEFAULT_STRATEGY"`
	PreferenceTTL   time.Duration `yaml:"preference_ttl" env:"PREFERENCE_TTL"`
}

// CoordinatorConfig tunes problem-solving coordination.
type CoordinatorConfig struct {
	SubtaskTimeout      time.Duration `yaml:"subtask_timeout" env:"SUBTASK_TIMEOUT"`
	MaxSubtasksPerAgent int           `yaml:"max_subtasks_per_agent" env:"MAX_SUBTASKS_PER_AGENT"`
}

// PoolConfig bounds the shared worker pool.
type PoolConfig struct {
	CoreWorkers int           `yaml:"core_workers" env:"CORE_WORKERS"`
	MaxWorkers  int           `yaml:"max_workers" env:"MAX_WORKERS"`
	QueueSize   int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

// RedisConfig configures the shared cache. An empty Addr selects the
// in-process cache instead.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// DatabaseConfig configures persistence. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"`
	DSN             string        `yaml:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// Default returns the reference defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9091,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Formation: FormationConfig{
			CapabilityMatchThreshold: 0.75,
			PerformanceWeight:        0.6,
			SpecializationWeight:     0.4,
		},
		Negotiation: NegotiationConfig{
			DefaultStrategy: string(types.StrategyCompromise),
			PreferenceTTL:   5 * time.Minute,
		},
		Coordinator: CoordinatorConfig{
			SubtaskTimeout:      300 * time.Second,
			MaxSubtasksPerAgent: 5,
		},
		Pool: PoolConfig{
			CoreWorkers: 10,
			MaxWorkers:  50,
			QueueSize:   100,
			IdleTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:         "",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "server.http_port out of range")
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "server.metrics_port out of range")
	}
	if t := c.Formation.CapabilityMatchThreshold; t < 0 || t > 1 {
		errs = append(errs, "formation.capability_match_threshold must be in [0, 1]")
	}
	if c.Formation.PerformanceWeight < 0 {
		errs = append(errs, "formation.performance_weight must not be negative")
	}
	if c.Formation.SpecializationWeight < 0 {
		errs = append(errs, "formation.specialization_weight must not be negative")
	}
	if s := types.ResolutionStrategy(c.Negotiation.DefaultStrategy); !s.Valid() {
		errs = append(errs, fmt.Sprintf("negotiation.default_strategy %q unknown", c.Negotiation.DefaultStrategy))
	}
	if c.Coordinator.SubtaskTimeout <= 0 {
		errs = append(errs, "coordinator.subtask_timeout must be positive")
	}
	if c.Coordinator.MaxSubtasksPerAgent <= 0 {
		errs = append(errs, "coordinator.max_subtasks_per_agent must be positive")
	}
	if c.Pool.CoreWorkers <= 0 || c.Pool.MaxWorkers < c.Pool.CoreWorkers {
		errs = append(errs, "pool bounds invalid: need 0 < core_workers <= max_workers")
	}
	if c.Pool.QueueSize < 0 {
		errs = append(errs, "pool.queue_size must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
