// Package config handles configuration loading for dispatch.
// It supports a project-level .dispatch.yaml, environment variable
// overrides, and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for dispatch.
type Config struct {
	Events  EventsConfig  `mapstructure:"events"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Matcher MatcherConfig `mapstructure:"matcher"`
	State   StateConfig   `mapstructure:"state"`
	Spool   SpoolConfig   `mapstructure:"spool"`
	Workers []WorkerEntry `mapstructure:"workers"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// BufferSize is the capacity of the event channel.
	BufferSize int `mapstructure:"buffer_size"`
}

// RetryConfig holds the automatic retry policy for failed tasks.
type RetryConfig struct {
	// Enabled turns automatic retry on.
	Enabled bool `mapstructure:"enabled"`
	// MaxAttempts is the total number of pending entries allowed per
	// task, counting the first.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// MatcherConfig holds capability matcher policy settings.
type MatcherConfig struct {
	// EmptyRequiredScore is the score for tasks requiring no
	// capabilities.
	EmptyRequiredScore float64 `mapstructure:"empty_required_score"`
}

// StateConfig holds persistence settings.
type StateConfig struct {
	// Path is the SQLite database file location.
	Path string `mapstructure:"path"`
}

// SpoolConfig holds spool directory ingestion settings.
type SpoolConfig struct {
	// Dir is the directory watched for task YAML files.
	Dir string `mapstructure:"dir"`
}

// WorkerEntry describes one worker registered by the run command.
type WorkerEntry struct {
	// ID is the worker identifier.
	ID string `mapstructure:"id"`
	// Capabilities lists the worker's declared skills.
	Capabilities []string `mapstructure:"capabilities"`
}

// setDefaults installs the built-in defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("events.buffer_size", 256)
	v.SetDefault("retry.enabled", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("matcher.empty_required_score", 1.0)
	v.SetDefault("state.path", ".dispatch/state.db")
	v.SetDefault("spool.dir", ".dispatch/spool")
}

// Load loads configuration from the project config file and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (DISPATCH_*)
// 2. Project config (.dispatch.yaml in the current directory)
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".dispatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
