package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.False(t, cfg.Strict)
	assert.Equal(t, 100.0, cfg.Costs.Limit)
	assert.Equal(t, 50*time.Millisecond, cfg.Tick.Period)
	assert.Equal(t, 4, cfg.Tick.AsyncWorkers)
	assert.Equal(t, int64(8), cfg.Scanner.Radius)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "50ms", cfg.Settings()["tick"].(map[string]any)["period"])
}

func TestLoadCUEFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
strict: true
blacklist: {
	providers: ["blocks.Scanner#scan"]
	modules: ["laser"]
	types: ["blocks."]
}
costs: regen: 2.5
tick: period: "100ms"
scanner: radius: 4
log: level: "debug"
`)

	cfg, used, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.True(t, cfg.Strict)
	assert.Equal(t, []string{"blocks.Scanner#scan"}, cfg.Blacklist.Providers)
	assert.Equal(t, []string{"laser"}, cfg.Blacklist.Modules)
	assert.Equal(t, []string{"blocks."}, cfg.Blacklist.Types)
	assert.Equal(t, 2.5, cfg.Costs.Regen)
	assert.Equal(t, 100.0, cfg.Costs.Initial, "unset keys keep defaults")
	assert.Equal(t, 100*time.Millisecond, cfg.Tick.Period)
	assert.Equal(t, int64(4), cfg.Scanner.Radius)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFindsFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "debug: true\n")
	t.Chdir(dir)

	cfg, used, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, FileName, used)
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "verbose: true\n",
		"wrong type":   "strict: \"yes\"\n",
		"radius range": "scanner: radius: 100\n",
		"log level":    "log: level: \"trace\"\n",
		"period":       "tick: period: \"soon\"\n",
		"syntax":       "strict: {\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), body)
			_, _, err := Load(LoadOptions{Path: path})
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "nope.cue")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadEnvironmentAndOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CAPDISPATCH_SCANNER_RADIUS", "3")
	t.Setenv("CAPDISPATCH_DEBUG", "true")
	t.Setenv("CAPDISPATCH_BLACKLIST_MODULES", "laser,sensor")

	cfg, _, err := Load(LoadOptions{Overrides: map[string]any{"debug": false, "log.level": "warn"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cfg.Scanner.Radius)
	assert.False(t, cfg.Debug, "overrides beat the environment")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"laser", "sensor"}, cfg.Blacklist.Modules)
}

func TestLoadValidatesCombinedSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := Load(LoadOptions{Overrides: map[string]any{
		"costs.initial":      500,
		"tick.async_workers": 0,
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "costs.initial (500) exceeds costs.limit (100)")
	assert.Contains(t, err.Error(), "tick.async_workers must be at least 1")
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "debug: false\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, LoadOptions{Path: path}, nil, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher time to register before writing.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		writeConfig(t, dir, "debug: true\n")
		select {
		case cfg := <-changes:
			assert.True(t, cfg.Debug)
			cancel()
			require.NoError(t, <-done)
			return
		case <-ticker.C:
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatchRequiresPath(t *testing.T) {
	err := Watch(context.Background(), LoadOptions{}, nil, func(*Config) {})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "config path required"))
}
