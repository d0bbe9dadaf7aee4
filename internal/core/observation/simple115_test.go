package observation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/models"
)

func TestSimple115V2BackfillsMissingPlayers(t *testing.T) {
	obs := snapshot(3, 1)
	vec, err := EncodeSimple115V2(obs, models.PlayerView{Active: 2})
	require.NoError(t, err)
	require.Len(t, vec, 115)

	// left positions: 3 real players then 8 padded
	assert.Equal(t, float32(obs.Left.Positions[0].X), vec[0])
	assert.Equal(t, float32(-1), vec[6])
	assert.Equal(t, float32(-1), vec[21])

	// right positions start after two 22-value blocks
	assert.Equal(t, float32(obs.Right.Positions[0].X), vec[44])
	assert.Equal(t, float32(-1), vec[46])

	tail := vec[88:]
	assert.Equal(t, []float32{0.5, -0.1, 0.2}, tail[0:3])
	assert.Equal(t, []float32{0, 1, 0}, tail[6:9])
	active := tail[9:20]
	assert.Equal(t, float32(1), active[2])
	ones, _ := countOnes(active)
	assert.Equal(t, 1, ones)
	assert.Equal(t, float32(1), tail[20+int(models.GameModeCorner)])
}

func TestSimple115V2RejectsOversizedTeams(t *testing.T) {
	_, err := EncodeSimple115V2(snapshot(12, 1), models.PlayerView{Active: 0})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestFingerprintAllIsOrderSensitive(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{3, 2, 1}
	assert.NotEqual(t, FingerprintAll([][]float32{a, b}), FingerprintAll([][]float32{b, a}))
	assert.Equal(t, FingerprintAll([][]float32{a, b}), FingerprintAll([][]float32{a, b}))
}
