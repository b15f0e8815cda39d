// Package config loads planlineage configuration from defaults, a YAML
// file, PLANLINEAGE_ environment variables and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// Config holds the resolved configuration.
type Config struct {
	// EngineVersion selects the plan decoder, e.g. "3.4".
	EngineVersion string `koanf:"engine_version"`
	// SkipParsingPermanentViews reports permanent views as tables instead
	// of expanding them.
	SkipParsingPermanentViews bool   `koanf:"skip_parsing_permanent_views"`
	DefaultCatalog            string `koanf:"default_catalog"`
	MaxPlanDepth              int    `koanf:"max_plan_depth"`
	StatePath                 string `koanf:"state_path"`
	Output                    string `koanf:"output"` // text, json, yaml
	Verbose                   bool   `koanf:"verbose"`
	LogLevel                  string `koanf:"log_level"`
	// WatchDebounce is the quiet period the watch command waits after a
	// plan file changes, e.g. "250ms".
	WatchDebounce time.Duration `koanf:"watch_debounce"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("invalid output %q: expected %s, %s or %s", c.Output, OutputText, OutputJSON, OutputYAML)
	}
	if c.MaxPlanDepth <= 0 {
		return fmt.Errorf("max_plan_depth must be positive, got %d", c.MaxPlanDepth)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch_debounce must not be negative, got %s", c.WatchDebounce)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if strings.TrimSpace(c.EngineVersion) == "" {
		return fmt.Errorf("engine_version is required")
	}
	return nil
}

// Level returns the configured log level. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// AnalyzerOptions builds lineage options from the configuration.
func (c *Config) AnalyzerOptions(logger *slog.Logger) lineage.Options {
	return lineage.Options{
		SkipParsingPermanentViews: c.SkipParsingPermanentViews,
		DefaultCatalog:            c.DefaultCatalog,
		MaxDepth:                  c.MaxPlanDepth,
		Logger:                    logger,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}
