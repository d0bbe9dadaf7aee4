package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observation"
	"github.com/zeusync/football/internal/core/observability/log"
)

func config(scenario string) env.Config {
	cfg := env.DefaultConfig()
	cfg.Scenario = scenario
	return cfg
}

func makeVector(t *testing.T, scenario string, n int) *Env {
	t.Helper()
	v, err := Make(context.Background(), config(scenario), n, WithEnvOptions(env.WithLogger(log.Nop())))
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestResetSeedsEachEnv(t *testing.T) {
	v := makeVector(t, "academy_run_to_score_with_keeper", 3)
	seed := int64(10)
	obs, infos, err := v.Reset(context.Background(), &seed)
	require.NoError(t, err)
	require.Len(t, obs, 3)

	for i := range 3 {
		single, err := env.Make(context.Background(), config("academy_run_to_score_with_keeper"), env.WithLogger(log.Nop()))
		require.NoError(t, err)
		s := seed + int64(i)
		want, info, err := single.Reset(context.Background(), &s)
		require.NoError(t, err)
		assert.Equal(t, observation.FingerprintAll(want), observation.FingerprintAll(obs[i]), "env %d", i)
		assert.Equal(t, info.EngineSeed, infos[i].EngineSeed)
		require.NoError(t, single.Close())
	}
}

func TestFinishedEnvsAutoReset(t *testing.T) {
	v := makeVector(t, "academy_empty_goal_close", 2)
	_, _, err := v.Reset(context.Background(), nil)
	require.NoError(t, err)

	shots := [][]int{{int(models.ActionShot)}, {int(models.ActionShot)}}
	var res Result
	for steps := 0; ; steps++ {
		require.Less(t, steps, 20)
		res, err = v.Step(context.Background(), shots)
		require.NoError(t, err)
		if res.Results[0].Done() {
			break
		}
	}
	for i, r := range res.Results {
		assert.True(t, r.Terminated, "env %d", i)
		assert.Equal(t, 1, r.Info.Episode)
		require.NotNil(t, res.Final[i])
		assert.NotEqual(t, observation.FingerprintAll(res.Final[i]), observation.FingerprintAll(r.Observations))
	}

	res, err = v.Step(context.Background(), [][]int{{0}, {0}})
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.Equal(t, 2, r.Info.Episode)
		assert.Equal(t, 1, r.Info.Step)
	}
	assert.Nil(t, res.Final[0])
}

func TestStepErrors(t *testing.T) {
	v := makeVector(t, "academy_empty_goal", 2)
	_, err := v.Step(context.Background(), [][]int{{0}})
	require.ErrorIs(t, err, env.ErrBadAction)

	_, err = v.Step(context.Background(), [][]int{{0}, {0}})
	require.ErrorIs(t, err, env.ErrNotReset)

	_, _, err = v.Reset(context.Background(), nil)
	require.NoError(t, err)
	_, err = v.Step(context.Background(), [][]int{{0}, {42}})
	require.ErrorIs(t, err, env.ErrBadAction)
	assert.Contains(t, err.Error(), "env 1")

	assert.Len(t, v.SampleActions(), 2)
	_, err = New(nil)
	require.ErrorIs(t, err, ErrNoEnvs)
}

func TestMakeOptions(t *testing.T) {
	v, err := Make(context.Background(), config("academy_empty_goal"), 3,
		WithConcurrency(1),
		WithInstancePrefix("batch"),
		WithEnvOptions(env.WithLogger(log.Nop()), env.WithInstanceID("shared")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })

	assert.Equal(t, 1, v.limit)
	for i := range v.Len() {
		assert.Equal(t, fmt.Sprintf("batch-%d", i), v.At(i).InstanceID())
	}

	_, _, err = v.Reset(context.Background(), nil)
	require.NoError(t, err)

	_, err = Make(context.Background(), config("academy_empty_goal"), 0)
	require.ErrorIs(t, err, ErrNoEnvs)
	_, err = Make(context.Background(), config("nope"), 2, WithEnvOptions(env.WithLogger(log.Nop())))
	require.ErrorIs(t, err, env.ErrInvalidConfig)
}

func TestMakeDefaultIDsAreDistinct(t *testing.T) {
	v := makeVector(t, "academy_empty_goal", 2)
	assert.NotEqual(t, v.At(0).InstanceID(), v.At(1).InstanceID())
}
