package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads configuration from defaults, file, and environment.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a loader with a fresh viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New(), envPrefix: "MAESTRO"}
}

// NewLoaderWithViper creates a loader over an existing viper instance,
// so CLI flag bindings participate in precedence.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v, envPrefix: "MAESTRO"}
}

// WithConfigFile pins an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Load reads configuration. Precedence, highest first: bound CLI flags,
// MAESTRO_* environment variables, .maestro.yaml (cwd, then
// ~/.config/maestro), defaults.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".maestro")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "maestro"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("store.path", ".maestro/maestro.db")

	l.v.SetDefault("index.root", ".")
	l.v.SetDefault("index.max_chunk_tokens", 512)
	l.v.SetDefault("index.parallelism", 4)
	l.v.SetDefault("index.progress_path", ".maestro/index-progress.json")
	l.v.SetDefault("index.watch_debounce", "250ms")

	l.v.SetDefault("routing.directive_confidence", 0.6)
	l.v.SetDefault("routing.high_risk", 7)
	l.v.SetDefault("routing.arch_complexity", 7)
	l.v.SetDefault("routing.top_k", 3)

	l.v.SetDefault("consensus.timeout", "2m")

	l.v.SetDefault("api.addr", "127.0.0.1:8735")
	l.v.SetDefault("api.event_ring_size", 256)
	l.v.SetDefault("api.event_buffer_size", 256)
}
