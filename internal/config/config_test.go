// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JonasGessner/instancehook/internal/config"
	"github.com/JonasGessner/instancehook/internal/plog"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	logger := plog.NewLogger(plog.Debug, os.Stderr, nil)
	cfg, err := config.New(logger)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := newTestConfig(t)
	require.Equal(t, plog.Error, cfg.LogLevel())
	require.False(t, cfg.Disabled())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("INSTANCEHOOK_LOG_LEVEL", "debug")
	t.Setenv("INSTANCEHOOK_DISABLE", "1")

	cfg := newTestConfig(t)
	require.Equal(t, plog.Debug, cfg.LogLevel())
	require.True(t, cfg.Disabled())
}

func TestUnknownLogLevelDisablesLogs(t *testing.T) {
	t.Setenv("INSTANCEHOOK_LOG_LEVEL", "oops")

	cfg := newTestConfig(t)
	require.Equal(t, plog.Disabled, cfg.LogLevel())
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "instancehook.yaml")
	require.NoError(t, os.WriteFile(file, []byte("log_level: info\n"), 0o644))
	t.Setenv("INSTANCEHOOK_CONFIG_FILE", file)

	cfg := newTestConfig(t)
	require.Equal(t, plog.Info, cfg.LogLevel())

	t.Run("environment variables take precedence", func(t *testing.T) {
		t.Setenv("INSTANCEHOOK_LOG_LEVEL", "debug")
		cfg := newTestConfig(t)
		require.Equal(t, plog.Debug, cfg.LogLevel())
	})
}
