package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("engine-version", "", "")
	fs.String("state", "", "")
	fs.String("default-catalog", "", "")
	fs.Bool("skip-parsing-permanent-views", false, "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultEngineVersion, cfg.EngineVersion)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, OutputText, cfg.Output)
	assert.Equal(t, lineage.DefaultMaxDepth, cfg.MaxPlanDepth)
	assert.False(t, cfg.SkipParsingPermanentViews)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
engine_version: "3.2"
default_catalog: spark_catalog
skip_parsing_permanent_views: true
state_path: from-file.db
output: json
max_plan_depth: 64
watch_debounce: 2s
`)

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, ConfigFileName, cfg.ConfigFile)
		assert.Equal(t, "3.2", cfg.EngineVersion)
		assert.Equal(t, "spark_catalog", cfg.DefaultCatalog)
		assert.True(t, cfg.SkipParsingPermanentViews)
		assert.Equal(t, 64, cfg.MaxPlanDepth)
		assert.Equal(t, OutputJSON, cfg.Output)
		assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("PLANLINEAGE_STATE_PATH", "from-env.db")
		t.Setenv("PLANLINEAGE_MAX_PLAN_DEPTH", "128")
		t.Setenv("PLANLINEAGE_WATCH_DEBOUNCE", "250ms")
		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env.db", cfg.StatePath)
		assert.Equal(t, 128, cfg.MaxPlanDepth)
		assert.Equal(t, 250*time.Millisecond, cfg.WatchDebounce)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("PLANLINEAGE_STATE_PATH", "from-env.db")
		flags := newFlags(t, "--state", "from-flag.db", "-o", "text", "--skip-parsing-permanent-views=false")
		cfg, err := Load("", flags)
		require.NoError(t, err)
		assert.Equal(t, "from-flag.db", cfg.StatePath)
		assert.Equal(t, OutputText, cfg.Output)
		assert.False(t, cfg.SkipParsingPermanentViews)
		assert.Equal(t, "3.2", cfg.EngineVersion, "unset flags must not override the file")
	})
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, t.TempDir(), "engine_version: \"3.1\"\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "3.1", cfg.EngineVersion)
	assert.Equal(t, path, cfg.ConfigFile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "output", body: "output: xml\n"},
		{name: "depth", body: "max_plan_depth: 0\n"},
		{name: "log level", body: "log_level: loud\n"},
		{name: "debounce", body: "watch_debounce: -1s\n"},
		{name: "engine version", body: "engine_version: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeConfig(t, dir, tt.body)
			_, err := Load("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestConfig_Level(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	cfg.Verbose = true
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestConfig_AnalyzerOptions(t *testing.T) {
	cfg := &Config{SkipParsingPermanentViews: true, DefaultCatalog: "spark_catalog", MaxPlanDepth: 10}
	opts := cfg.AnalyzerOptions(nil)
	assert.Equal(t, lineage.Options{SkipParsingPermanentViews: true, DefaultCatalog: "spark_catalog", MaxDepth: 10}, opts)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	assert.Same(t, logger, GetLogger(WithLogger(context.Background(), logger)))
}

func TestFromContext(t *testing.T) {
	fallback := FromContext(context.Background())
	require.NoError(t, fallback.Validate())

	cfg := &Config{EngineVersion: "3.1"}
	assert.Same(t, cfg, FromContext(WithConfig(context.Background(), cfg)))
}
