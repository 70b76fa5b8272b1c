package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maestro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigFile(writeConfig(t, "")).Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ".maestro/maestro.db", cfg.Store.Path)
	assert.Equal(t, 512, cfg.Index.MaxChunkTokens)
	assert.Equal(t, 250*time.Millisecond, cfg.Index.WatchDebounce)
	assert.Equal(t, 0.6, cfg.Routing.DirectiveConfidence)
	assert.Equal(t, 7, cfg.Routing.HighRisk)
	assert.Equal(t, 2*time.Minute, cfg.Consensus.Timeout)
	assert.Equal(t, "127.0.0.1:8735", cfg.API.Addr)
}

func TestLoad_FileOverridesAndRoster(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
routing:
  high_risk: 8
consensus:
  timeout: 45s
agents:
  - id: coder
    type: llm
    display_name: Coder
    capabilities: [code-generation, debugging]
    strengths: [go, sql]
  - id: reviewer
    capabilities: [review]
`)
	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Routing.HighRisk)
	assert.Equal(t, 45*time.Second, cfg.Consensus.Timeout)

	roster := cfg.Roster()
	require.Len(t, roster, 2)
	assert.Equal(t, "coder", string(roster[0].ID))
	assert.Len(t, roster[0].Capabilities, 2)
	// Untyped agents default to llm and start online.
	assert.Equal(t, "llm", string(roster[1].Type))
	assert.Equal(t, "online", string(roster[1].Status))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MAESTRO_LOG_LEVEL", "warn")
	cfg, err := NewLoader().WithConfigFile(writeConfig(t, "")).Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad risk", "routing:\n  high_risk: 11\n", "routing.high_risk"},
		{"bad confidence", "routing:\n  directive_confidence: 1.5\n", "directive_confidence"},
		{"zero timeout", "consensus:\n  timeout: 0s\n", "consensus.timeout"},
		{"dup agent", "agents:\n  - id: a\n    capabilities: [review]\n  - id: a\n    capabilities: [review]\n", "duplicate id"},
		{"no caps", "agents:\n  - id: a\n", "capability"},
		{"bad cap", "agents:\n  - id: a\n    capabilities: [cooking]\n", "unknown capability"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().WithConfigFile(writeConfig(t, tc.yaml)).Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
