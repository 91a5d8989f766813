package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alucardeht/typegate/internal/watcher"
)

// RefPolicy selects when forward references are resolved.
type RefPolicy string

const (
	RefEager RefPolicy = "eager"
	RefLazy  RefPolicy = "lazy"
)

// CheckConfig describes check strictness. It is a plain comparable
// value: two configs are the same cache key iff they are equal.
type CheckConfig struct {
	Sampling bool      `yaml:"sampling"`
	RefMode  RefPolicy `yaml:"forward_refs"`
}

func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		Sampling: true,
		RefMode:  RefLazy,
	}
}

// Key returns the configuration's contribution to the memoization
// cache key.
func (c CheckConfig) Key() string {
	return fmt.Sprintf("sampling=%t,refs=%s", c.Sampling, c.RefMode)
}

// ParseCheckOptions builds a CheckConfig from loose option pairs.
// Unknown option names and malformed values are rejected here, never
// at compile time.
func ParseCheckOptions(opts map[string]string) (CheckConfig, error) {
	cfg := DefaultCheckConfig()
	for name, value := range opts {
		switch name {
		case "sampling":
			switch value {
			case "enabled", "true":
				cfg.Sampling = true
			case "disabled", "false":
				cfg.Sampling = false
			default:
				return cfg, fmt.Errorf("invalid sampling value %q", value)
			}
		case "forward_refs":
			switch RefPolicy(value) {
			case RefEager, RefLazy:
				cfg.RefMode = RefPolicy(value)
			default:
				return cfg, fmt.Errorf("invalid forward_refs value %q", value)
			}
		default:
			return cfg, fmt.Errorf("unrecognized check option %q", name)
		}
	}
	return cfg, nil
}

// Config is the daemon and CLI configuration.
type Config struct {
	SocketPath   string                `yaml:"socket_path"`
	DatabasePath string                `yaml:"database_path"`
	LogLevel     string                `yaml:"log_level"`
	Check        CheckConfig           `yaml:"check"`
	Watcher      watcher.WatcherConfig `yaml:"watcher"`
}

func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	tgDir := filepath.Join(homeDir, ".typegate")

	return &Config{
		SocketPath:   filepath.Join(tgDir, "daemon.sock"),
		DatabasePath: filepath.Join(tgDir, "specs.db"),
		LogLevel:     "info",
		Check:        DefaultCheckConfig(),
		Watcher: watcher.WatcherConfig{
			Enabled:        false,
			DebounceWindow: 300 * time.Millisecond,
			MaxBatchSize:   100,
			IgnorePatterns: []string{
				"**/.git/**",
				"**/node_modules/**",
				"**/vendor/**",
			},
		},
	}
}

// LoadFile overlays a YAML configuration file onto the defaults.
// Decoding is strict: unknown fields are rejected.
func LoadFile(path string) (*Config, error) {
	cfg := Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Check.RefMode != RefEager && c.Check.RefMode != RefLazy {
		return fmt.Errorf("invalid forward_refs policy %q", c.Check.RefMode)
	}
	for _, rule := range c.Watcher.Rules {
		if rule.Pattern == "" || rule.Spec == "" {
			return fmt.Errorf("watcher rule requires both pattern and spec")
		}
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	homeDir, _ := os.UserHomeDir()
	tgDir := filepath.Join(homeDir, ".typegate")
	return os.MkdirAll(tgDir, 0700)
}
