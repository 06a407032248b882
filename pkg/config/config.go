// Package config provides configuration loading for the journey worker.
//
// Values come from an optional YAML file; every field the file leaves at its zero
// value is filled from Default. Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const (
	QueueProviderMemory = "memory"
	QueueProviderRedis  = "redis"

	EventBusProviderGoChannel = "gochannel"
	EventBusProviderKafka     = "kafka"
)

type ServerConfig struct {
	Port int `yaml:"port"`
}

type QueueConfig struct {
	Provider    string        `yaml:"provider"`
	Name        string        `yaml:"name"`
	RedisURL    string        `yaml:"redis_url"`
	Concurrency int           `yaml:"concurrency"`
	Attempts    int           `yaml:"attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

type PersistenceConfig struct {
	// DatabaseURL is a postgres:// URL or a file:// directory.
	DatabaseURL string `yaml:"database_url"`
}

type EventBusConfig struct {
	Provider     string `yaml:"provider"`
	KafkaBrokers string `yaml:"kafka_brokers"`
}

type EngineConfig struct {
	// MaxNodeExecutions limits workflow size; 0 allows any size.
	MaxNodeExecutions int           `yaml:"max_node_executions"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type Config struct {
	LogLevel    string            `yaml:"log_level"`
	PluginsPath string            `yaml:"plugins_path"`
	Server      ServerConfig      `yaml:"server"`
	Queue       QueueConfig       `yaml:"queue"`
	Persistence PersistenceConfig `yaml:"persistence"`
	EventBus    EventBusConfig    `yaml:"event_bus"`
	Engine      EngineConfig      `yaml:"engine"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		LogLevel:    "info",
		PluginsPath: "./plugins",
		Server:      ServerConfig{Port: 9091},
		Queue: QueueConfig{
			Provider:    QueueProviderMemory,
			Name:        "workflows",
			Concurrency: 1,
			Attempts:    1,
			Backoff:     time.Second,
		},
		Persistence: PersistenceConfig{DatabaseURL: "file://./data"},
		EventBus:    EventBusConfig{Provider: EventBusProviderGoChannel},
		Engine:      EngineConfig{HTTPTimeout: 30 * time.Second},
		Tracing:     TracingConfig{ServiceName: "journey-worker"},
	}
}

// Load reads the YAML file at path and fills unset fields from Default. An empty
// path returns Default.
func Load(path string) (*Config, error) {
	cfg := Config{}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is an operator-supplied flag
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks provider names and numeric limits.
func (c *Config) Validate() error {
	if !slices.Contains([]string{QueueProviderMemory, QueueProviderRedis}, c.Queue.Provider) {
		return fmt.Errorf("unsupported queue provider %q", c.Queue.Provider)
	}

	if c.Queue.Provider == QueueProviderRedis && c.Queue.RedisURL == "" {
		return fmt.Errorf("queue.redis_url is required for the %s provider", QueueProviderRedis)
	}

	if !slices.Contains([]string{EventBusProviderGoChannel, EventBusProviderKafka}, c.EventBus.Provider) {
		return fmt.Errorf("unsupported event bus provider %q", c.EventBus.Provider)
	}

	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1, got %d", c.Queue.Concurrency)
	}

	if c.Engine.MaxNodeExecutions < 0 {
		return fmt.Errorf("engine.max_node_executions must not be negative, got %d", c.Engine.MaxNodeExecutions)
	}

	return nil
}
