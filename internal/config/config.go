// Package config loads and validates the maestro configuration:
// defaults, a .maestro.yaml file, and MAESTRO_* environment variables,
// in ascending precedence.
package config

import (
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Index     IndexConfig     `mapstructure:"index"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Consensus ConsensusConfig `mapstructure:"consensus"`
	API       APIConfig       `mapstructure:"api"`
	Agents    []AgentConfig   `mapstructure:"agents"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // auto, text, json
}

// StoreConfig configures the sqlite store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// IndexConfig configures the context indexer.
type IndexConfig struct {
	Root           string        `mapstructure:"root"`
	MaxChunkTokens int           `mapstructure:"max_chunk_tokens"`
	Parallelism    int           `mapstructure:"parallelism"`
	ProgressPath   string        `mapstructure:"progress_path"`
	WatchDebounce  time.Duration `mapstructure:"watch_debounce"`
	IgnoreGlobs    []string      `mapstructure:"ignore_globs"`
}

// RoutingConfig configures the strategy picker and agent selector.
type RoutingConfig struct {
	DirectiveConfidence float64 `mapstructure:"directive_confidence"`
	HighRisk            int     `mapstructure:"high_risk"`
	ArchComplexity      int     `mapstructure:"arch_complexity"`
	TopK                int     `mapstructure:"top_k"`
}

// ConsensusConfig configures the consensus executor.
type ConsensusConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// APIConfig configures the HTTP query surface.
type APIConfig struct {
	Addr            string `mapstructure:"addr"`
	EventRingSize   int    `mapstructure:"event_ring_size"`
	EventBufferSize int    `mapstructure:"event_buffer_size"`
}

// AgentConfig declares one agent in the roster. The registry is rebuilt
// from the full roster on reconfiguration; there is no partial update.
type AgentConfig struct {
	ID           string            `mapstructure:"id"`
	Type         string            `mapstructure:"type"`
	DisplayName  string            `mapstructure:"display_name"`
	Capabilities []string          `mapstructure:"capabilities"`
	Strengths    []string          `mapstructure:"strengths"`
	Config       map[string]string `mapstructure:"config"`
}
