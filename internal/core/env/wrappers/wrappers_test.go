package wrappers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/env/parallel"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observability/log"
)

func newParallel(t *testing.T, scenario string) *parallel.Env {
	t.Helper()
	cfg := env.DefaultConfig()
	cfg.Scenario = scenario
	e, err := env.Make(context.Background(), cfg, env.WithLogger(log.Nop()))
	require.NoError(t, err)
	p := parallel.New(e)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestOrderEnforcing(t *testing.T) {
	w := NewOrderEnforcing(newParallel(t, "academy_empty_goal"))

	_, err := w.Step(context.Background(), map[string]int{"player_0": 0})
	require.EqualError(t, err, "Environment must be reset before stepping")
	require.ErrorIs(t, err, ErrResetNeeded)

	_, _, err = w.Reset(context.Background(), nil)
	require.NoError(t, err)
	_, err = w.Step(context.Background(), map[string]int{"player_0": 0})
	require.NoError(t, err)
}

func TestAutoReset(t *testing.T) {
	w := NewAutoReset(NewOrderEnforcing(newParallel(t, "academy_empty_goal_close")))
	seed := int64(8)
	_, _, err := w.Reset(context.Background(), &seed)
	require.NoError(t, err)

	shot := map[string]int{"player_0": int(models.ActionShot)}
	var res parallel.Result
	for !res.Terminations["player_0"] {
		res, err = w.Step(context.Background(), shot)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, res.Infos["player_0"].Episode)
	assert.Empty(t, w.Agents())
	assert.Zero(t, w.Resets())

	res, err = w.Step(context.Background(), shot)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Resets())
	assert.Equal(t, 2, res.Infos["player_0"].Episode)
	assert.Equal(t, 1, res.Infos["player_0"].Step)
	assert.False(t, res.Terminations["player_0"])
	assert.Equal(t, []string{"player_0"}, w.Agents())
}
