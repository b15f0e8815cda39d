package config

import (
	"time"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// Default configuration values.
const (
	DefaultEngineVersion = "3.4"
	DefaultStateFile     = ".planlineage/state.db"
	DefaultLogLevel      = "warn"
	DefaultWatchDebounce = 100 * time.Millisecond

	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func defaults() map[string]any {
	return map[string]any{
		"engine_version":               DefaultEngineVersion,
		"skip_parsing_permanent_views": false,
		"default_catalog":              "",
		"max_plan_depth":               lineage.DefaultMaxDepth,
		"state_path":                   DefaultStateFile,
		"output":                       OutputText,
		"verbose":                      false,
		"log_level":                    DefaultLogLevel,
		"watch_debounce":               DefaultWatchDebounce,
	}
}
