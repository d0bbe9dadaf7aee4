package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/models"
)

func TestBuiltinScenarios(t *testing.T) {
	names := Names()
	require.Contains(t, names, "academy_3_vs_1_with_keeper")
	require.Contains(t, names, "academy_empty_goal_close")

	for _, name := range names {
		s, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, s.Left, name)
		assert.Equal(t, DefaultGameDuration, s.GameDuration, name)
	}

	s, err := Lookup("academy_3_vs_1_with_keeper")
	require.NoError(t, err)
	assert.Len(t, s.Left, 4)
	assert.Len(t, s.Right, 2)
	assert.Equal(t, [2]float64{0.62, 0}, s.Ball)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("11_vs_11_stochastic")
	require.ErrorIs(t, err, ErrUnknownScenario)
}

func TestLookupReturnsCopy(t *testing.T) {
	a, err := Lookup("academy_empty_goal")
	require.NoError(t, err)
	a.Left[0].Position = [2]float64{9, 9}

	b, err := Lookup("academy_empty_goal")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{-1, 0}, b.Left[0].Position)
}

func TestControllableSkipsKeepers(t *testing.T) {
	s, err := Lookup("academy_3_vs_1_with_keeper")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 0}, s.Controllable(models.SideLeft))
	assert.Equal(t, []int{1, 0}, s.Controllable(models.SideRight))
}

func TestLoadYAML(t *testing.T) {
	const doc = `
scenarios:
  - name: custom_1_vs_0
    ball: [0.1, 0.0]
    left:
      - {position: [0.0, 0.0], role: cf}
`
	list, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, DefaultGameDuration, list[0].GameDuration)
	assert.Equal(t, []models.PlayerRole{models.RoleCentralFront}, Roles(list[0].Left))

	require.NoError(t, Register(list[0]))
	got, err := Lookup("custom_1_vs_0")
	require.NoError(t, err)
	assert.Equal(t, list[0].Ball, got.Ball)
}

func TestLoadYAMLRejectsBadRole(t *testing.T) {
	const doc = `
scenarios:
  - name: broken
    left:
      - {position: [0.0, 0.0], role: striker}
`
	_, err := LoadYAML(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrInvalidScenario)
}
