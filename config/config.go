package config

import (
	"fmt"
	"strings"

	"github.com/promptmesh/contextcore/contextstore"
	"github.com/promptmesh/contextcore/memory"
)

// Config is the complete module configuration.
type Config struct {
	// Context configures the per-session context store and optimizer.
	Context contextstore.Config `yaml:"context"`

	// Memory configures the long-term memory store.
	Memory memory.Config `yaml:"memory"`

	// MemoryBackend selects the durable record store.
	MemoryBackend memory.BackendConfig `yaml:"memory_backend"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format: json or console.
	Format string `yaml:"format"`
	// Development enables caller annotation and console-friendly output.
	Development bool `yaml:"development"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Context: contextstore.DefaultConfig(),
		Memory:  memory.DefaultConfig(),
		MemoryBackend: memory.BackendConfig{
			Backend: "sqlite",
			DSN:     "contextcore.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the stores would reject.
func (c *Config) Validate() error {
	var errs []string

	if c.Context.MaxItems <= 0 {
		errs = append(errs, "context.max_items must be positive")
	}
	if c.Context.MaxBudget <= 0 {
		errs = append(errs, "context.max_budget must be positive")
	}
	if c.Context.DedupThreshold <= 0 || c.Context.DedupThreshold > 1 {
		errs = append(errs, "context.dedup_threshold must be in (0,1]")
	}
	if c.Context.DecayHalfLife < 0 {
		errs = append(errs, "context.decay_half_life must not be negative")
	}

	if c.Memory.MaxMemories <= 0 {
		errs = append(errs, "memory.max_memories must be positive")
	}
	if c.Memory.DefaultMinRelevance < 0 || c.Memory.DefaultMinRelevance > 1 {
		errs = append(errs, "memory.default_min_relevance must be in [0,1]")
	}
	if c.Memory.DefaultMaxResults <= 0 {
		errs = append(errs, "memory.default_max_results must be positive")
	}

	if c.MemoryBackend.Backend == "" {
		errs = append(errs, "memory_backend.backend is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
