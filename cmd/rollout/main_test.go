package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/dump"
	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/env/vector"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observability/log"
)

func TestRunWritesDumps(t *testing.T) {
	dir := t.TempDir()
	cfg := env.DefaultConfig()
	cfg.Scenario = "academy_empty_goal_close"

	require.NoError(t, run(context.Background(), cfg, options{episodes: 2, envs: 2, seed: 1, dumpDir: dir}, log.Nop()))

	store, err := dump.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	traces, err := store.Traces(context.Background(), "")
	require.NoError(t, err)
	episodes := 0
	for _, tr := range traces {
		if tr.Kind == dump.KindEpisode {
			episodes++
		}
	}
	assert.GreaterOrEqual(t, episodes, 2)
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := env.DefaultConfig()
	cfg.Scenario = "missing"
	assert.ErrorIs(t, run(context.Background(), cfg, options{episodes: 1, envs: 1}, log.Nop()), env.ErrInvalidConfig)

	cfg = env.DefaultConfig()
	assert.ErrorIs(t, run(context.Background(), cfg, options{episodes: 1, envs: 1, action: "tackle"}, log.Nop()), env.ErrBadAction)
}

func TestFixedActionPolicy(t *testing.T) {
	act, err := newPolicy("Shot")
	require.NoError(t, err)

	cfg := env.DefaultConfig()
	cfg.Scenario = "academy_3_vs_1_with_keeper"
	cfg.LeftAgents = 2
	v, err := vector.Make(context.Background(), cfg, 2, vector.WithEnvOptions(env.WithLogger(log.Nop())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	shot := int(models.ActionShot)
	assert.Equal(t, [][]int{{shot, shot}, {shot, shot}}, act(v))

	// shooting from close range scores, which ends every episode
	cfg = env.DefaultConfig()
	cfg.Scenario = "academy_empty_goal_close"
	require.NoError(t, run(context.Background(), cfg, options{episodes: 2, envs: 1, action: "shot"}, log.Nop()))
}
