// Package config provides configuration loading and management for Foreman.
// Invalid values are rejected when the configuration is built, never during
// task processing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Error reports an invalid configuration value.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Config is the complete Foreman configuration.
type Config struct {
	Quality QualityConfig `yaml:"quality"`
	Engine  EngineConfig  `yaml:"engine"`
	NATS    NATSConfig    `yaml:"nats"`
	Model   ModelConfig   `yaml:"model"`
}

// QualityConfig configures the quality gate and consensus acceptance.
type QualityConfig struct {
	// Threshold is the minimum score an artifact must reach to pass.
	Threshold float64 `yaml:"threshold"`
	// ConsensusThreshold is the minimum score for consensus acceptance.
	ConsensusThreshold float64 `yaml:"consensus_threshold"`
	// ConsensusRequired globally enables consensus defaults on tasks.
	ConsensusRequired bool `yaml:"consensus_required"`
	// AutoValidation runs the quality gate on every generated artifact.
	AutoValidation bool `yaml:"auto_validation"`
}

// EngineConfig configures workflow execution.
type EngineConfig struct {
	// SpecsDriven iterates tasks in fixed phase order instead of insertion order.
	SpecsDriven bool `yaml:"specs_driven"`
	// MaxAgents bounds agents per task.
	MaxAgents int `yaml:"max_agents"`
	// MaxConcurrent bounds simultaneous content-production calls per phase.
	MaxConcurrent int `yaml:"max_concurrent"`
	// GenerateTimeout bounds each content-production call.
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
	// MaxRetries is the regeneration budget after a failed validation.
	// Zero disables retries, matching single-shot semantics.
	MaxRetries int `yaml:"max_retries"`
	// BackoffBase is the base delay before a regeneration retry.
	BackoffBase time.Duration `yaml:"backoff_base"`
	// BackoffMultiplier is the exponential backoff multiplier.
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server).
	URL string `yaml:"url"`
	// Embedded indicates whether to start an embedded NATS server.
	Embedded bool `yaml:"embedded"`
}

// ModelConfig configures the LLM used for content production.
type ModelConfig struct {
	// Provider selects the registered provider ("openai", "ollama").
	Provider string `yaml:"provider"`
	// Name is the model to request.
	Name string `yaml:"name"`
	// Endpoint is the API base URL.
	Endpoint string `yaml:"endpoint"`
	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Quality: QualityConfig{
			Threshold:          0.80,
			ConsensusThreshold: 0.70,
			ConsensusRequired:  true,
			AutoValidation:     true,
		},
		Engine: EngineConfig{
			SpecsDriven:       true,
			MaxAgents:         4,
			MaxConcurrent:     2,
			GenerateTimeout:   2 * time.Minute,
			MaxRetries:        0,
			BackoffBase:       5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Model: ModelConfig{
			Provider:    "ollama",
			Name:        "qwen2.5-coder:32b",
			Endpoint:    "http://localhost:11434/v1",
			Temperature: 0.2,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 1 {
		return &Error{Field: "quality.threshold", Message: "must be between 0 and 1"}
	}
	if c.Quality.ConsensusThreshold < 0 || c.Quality.ConsensusThreshold > 1 {
		return &Error{Field: "quality.consensus_threshold", Message: "must be between 0 and 1"}
	}
	if c.Engine.MaxAgents <= 0 {
		return &Error{Field: "engine.max_agents", Message: "must be positive"}
	}
	if c.Engine.MaxConcurrent <= 0 {
		return &Error{Field: "engine.max_concurrent", Message: "must be positive"}
	}
	if c.Engine.GenerateTimeout <= 0 {
		return &Error{Field: "engine.generate_timeout", Message: "must be positive"}
	}
	if c.Engine.MaxRetries < 0 {
		return &Error{Field: "engine.max_retries", Message: "must not be negative"}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return &Error{Field: "model.temperature", Message: "must be between 0 and 1"}
	}
	return nil
}

// Merge overlays non-zero fields from other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Quality.Threshold != 0 {
		c.Quality.Threshold = other.Quality.Threshold
	}
	if other.Quality.ConsensusThreshold != 0 {
		c.Quality.ConsensusThreshold = other.Quality.ConsensusThreshold
	}
	c.Quality.ConsensusRequired = other.Quality.ConsensusRequired
	c.Quality.AutoValidation = other.Quality.AutoValidation
	c.Engine.SpecsDriven = other.Engine.SpecsDriven
	if other.Engine.MaxAgents != 0 {
		c.Engine.MaxAgents = other.Engine.MaxAgents
	}
	if other.Engine.MaxConcurrent != 0 {
		c.Engine.MaxConcurrent = other.Engine.MaxConcurrent
	}
	if other.Engine.GenerateTimeout != 0 {
		c.Engine.GenerateTimeout = other.Engine.GenerateTimeout
	}
	if other.Engine.MaxRetries != 0 {
		c.Engine.MaxRetries = other.Engine.MaxRetries
	}
	if other.Engine.BackoffBase != 0 {
		c.Engine.BackoffBase = other.Engine.BackoffBase
	}
	if other.Engine.BackoffMultiplier != 0 {
		c.Engine.BackoffMultiplier = other.Engine.BackoffMultiplier
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	c.NATS.Embedded = other.NATS.Embedded
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
}

// LoadFromFile loads configuration from a YAML file on top of defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
