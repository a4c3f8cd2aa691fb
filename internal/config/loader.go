package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
	mu         sync.Mutex
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "AUTOPILOT",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance, so
// cmd/autopilot can share the instance its persistent flags are bound to.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "AUTOPILOT",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
//  1. CLI flags (set via viper.BindPFlag)
//  2. Environment variables (AUTOPILOT_*)
//  3. Project config (.autopilot/config.yaml)
//  4. Global config (~/.config/autopilot/config.yaml)
//  5. Built-in defaults (DefaultConfigYAML)
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.v.SetConfigType("yaml")
	if err := l.v.MergeConfig(strings.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("merging default config: %w", err)
	}

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.AddConfigPath(".autopilot")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "autopilot"))
		}
	}

	if err := l.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// UnmarshalExact rejects unknown keys, so a mistyped section name in
	// .autopilot/config.yaml fails startup instead of being silently ignored.
	var cfg Config
	if err := l.v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate loads configuration and validates it, returning a
// ValidationErrors on any failure so callers can report every problem at
// once rather than failing on the first.
func (l *Loader) LoadAndValidate() (*Config, error) {
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
