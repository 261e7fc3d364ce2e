// Package config loads the daemon configuration from a YAML or JSON file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Config is the daemon configuration.
type Config struct {
	// Name identifies the instance in logs and traces.
	Name string `json:"name" yaml:"name"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	Server      Server      `json:"server" yaml:"server"`
	Queue       Queue       `json:"queue" yaml:"queue"`
	Executor    Executor    `json:"executor" yaml:"executor"`
	Credentials Credentials `json:"credentials" yaml:"credentials"`
	Tracing     Tracing     `json:"tracing" yaml:"tracing"`

	// Workflows lists definition files activated at startup.
	Workflows []string `json:"workflows,omitempty" yaml:"workflows,omitempty"`
}

// Server configures the HTTP trigger endpoints.
type Server struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Queue configures the job queue.
type Queue struct {
	Workers  int `json:"workers" yaml:"workers"`
	Capacity int `json:"capacity" yaml:"capacity"`
}

// Executor configures the workflow executor.
type Executor struct {
	// NodeTimeoutSeconds bounds a single node execution.
	NodeTimeoutSeconds float64 `json:"node_timeout_seconds" yaml:"node_timeout_seconds"`

	// HistoryLimit caps retained terminal executions.
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`
}

// NodeTimeout returns the node timeout as a duration.
func (e Executor) NodeTimeout() time.Duration {
	return time.Duration(e.NodeTimeoutSeconds * float64(time.Second))
}

// Credentials holds the third-party API credentials node handlers fall back
// to when a node's config carries none. Placeholder values select the
// handlers' mock paths.
type Credentials struct {
	TelegramBotToken     string `json:"telegram_bot_token" yaml:"telegram_bot_token"`
	InstagramAccessToken string `json:"instagram_access_token" yaml:"instagram_access_token"`
	AnthropicAPIKey      string `json:"anthropic_api_key" yaml:"anthropic_api_key"`
}

// Tracing configures OpenTelemetry span export.
type Tracing struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"output_file,omitempty" yaml:"output_file,omitempty"`
}

// Default returns the configuration used when a field is unset.
func Default() Config {
	return Config{
		Name:     "relay",
		LogLevel: "info",
		Server:   Server{Addr: ":8090"},
		Queue:    Queue{Workers: 4, Capacity: 256},
		Executor: Executor{NodeTimeoutSeconds: 60, HistoryLimit: 200},
	}
}

// Load reads a configuration file, fills unset fields from Default, and
// validates the result. The extension selects the format.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid config JSON: %w", err)
		}
	case ".yml", ".yaml":
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("invalid config YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", filepath.Ext(path))
	}
	defaults := Default()
	if err := mergo.Merge(&cfg, defaults); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive")
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.Executor.NodeTimeoutSeconds <= 0 {
		return fmt.Errorf("executor node timeout must be positive")
	}
	if c.Executor.HistoryLimit <= 0 {
		return fmt.Errorf("executor history limit must be positive")
	}
	return nil
}
