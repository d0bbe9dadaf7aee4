package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/dump"
	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/server"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, server.DefaultServerConfig(), cfg.Server)
	assert.Equal(t, env.DefaultConfig(), cfg.Env)
	assert.Equal(t, dump.DefaultConfig(), cfg.Dump)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "football.yaml")
	file := `
log_level: debug
log_format: console
server:
  listen_addr: 0.0.0.0:9000
  max_envs: 8
  request_timeout: 2s
env:
  scenario: academy_empty_goal_close
  rewards: scoring,checkpoints
dump:
  write_goal_dumps: true
  logdir: ` + dir + `
`
	require.NoError(t, os.WriteFile(path, []byte(file), 0o644))
	t.Setenv("FOOTBALL_SERVER_MAX_ENVS", "16")
	t.Setenv("FOOTBALL_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.Equal(t, 16, cfg.Server.MaxEnvs)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Server.EnvIdleTimeout)
	assert.Equal(t, "academy_empty_goal_close", cfg.Env.Scenario)
	assert.Equal(t, "scoring,checkpoints", cfg.Env.Rewards)
	assert.Equal(t, 1, cfg.Env.LeftAgents)
	assert.True(t, cfg.Dump.GoalDumps)
	assert.Equal(t, dir, cfg.Dump.LogDir)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/football.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	t.Setenv("FOOTBALL_LOG_LEVEL", "loud")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("FOOTBALL_LOG_LEVEL", "info")
	t.Setenv("FOOTBALL_ENV_SCENARIO", "no_such_scenario")
	_, err = Load("")
	assert.ErrorIs(t, err, env.ErrInvalidConfig)
}
