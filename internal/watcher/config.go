package watcher

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule binds a glob pattern to the name of a stored specification.
// Files matching the pattern are revalidated against that
// specification whenever they change.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Spec    string `yaml:"spec"`
}

type WatcherConfig struct {
	Enabled        bool          `yaml:"enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
	WatchHidden    bool          `yaml:"watch_hidden"`
	Rules          []Rule        `yaml:"rules"`
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Enabled:        true,
		DebounceWindow: 300 * time.Millisecond,
		MaxBatchSize:   100,
		IgnorePatterns: []string{
			"**/.git/**",
			"**/node_modules/**",
			"**/dist/**",
			"**/build/**",
			"**/vendor/**",
		},
		WatchHidden: false,
	}
}

// RuleFor returns the first rule whose pattern matches the path, or
// nil when no rule applies. Rule order in the configuration is
// precedence order.
func (c WatcherConfig) RuleFor(path string) *Rule {
	for i := range c.Rules {
		if match, _ := doublestar.Match(c.Rules[i].Pattern, path); match {
			return &c.Rules[i]
		}
	}
	return nil
}
