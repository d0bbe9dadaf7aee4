package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/football/internal/core/models"
)

func sample() *models.Observation {
	obs := &models.Observation{
		Ball:            models.Vec3{X: 0.3, Y: -0.2, Z: 0.1},
		BallDirection:   models.Vec3{X: 0.01, Y: 0.02, Z: 0.03},
		BallOwnedTeam:   models.BallOwnerLeft,
		BallOwnedPlayer: 1,
		GameMode:        models.GameModeThrowIn,
		Score:           [2]int{2, 1},
		StepsLeft:       37,
		Left: models.Team{
			Positions:  []models.Vec2{{X: -1, Y: 0}, {X: 0.5, Y: 0.1}},
			Directions: []models.Vec2{{X: 0, Y: 0}, {X: 0.01, Y: -0.01}},
			Roles:      []models.PlayerRole{models.RoleGoalkeeper, models.RoleCentralFront},
		},
		Right: models.Team{
			Positions:  []models.Vec2{{X: 1, Y: 0}},
			Directions: []models.Vec2{{X: -0.02, Y: 0}},
		},
	}
	left := models.PlayerView{Active: 1}
	left.StickyActions[models.StickyTopRight] = true
	left.StickyActions[models.StickySprint] = true
	obs.LeftAgents = []models.PlayerView{left}
	return obs
}

func TestFlipObservation(t *testing.T) {
	obs := sample()
	flipped := FlipObservation(obs)

	assert.Equal(t, models.Vec3{X: -0.3, Y: 0.2, Z: 0.1}, flipped.Ball)
	assert.Equal(t, models.Vec3{X: -0.01, Y: -0.02, Z: 0.03}, flipped.BallDirection)
	assert.Equal(t, models.BallOwnerRight, flipped.BallOwnedTeam)
	assert.Equal(t, [2]int{1, 2}, flipped.Score)
	assert.Equal(t, models.GameModeThrowIn, flipped.GameMode)
	assert.Equal(t, 37, flipped.StepsLeft)

	require.Equal(t, 1, flipped.Left.Size())
	require.Equal(t, 2, flipped.Right.Size())
	assert.Equal(t, models.Vec2{X: -1, Y: 0}, flipped.Left.Positions[0])
	assert.Equal(t, models.Vec2{X: -0.5, Y: -0.1}, flipped.Right.Positions[1])
	assert.Equal(t, []models.PlayerRole{models.RoleGoalkeeper, models.RoleCentralFront}, flipped.Right.Roles)

	require.Len(t, flipped.RightAgents, 1)
	assert.True(t, flipped.RightAgents[0].StickyActions[models.StickyBottomLeft])
	assert.False(t, flipped.RightAgents[0].StickyActions[models.StickyTopRight])
	assert.True(t, flipped.RightAgents[0].StickyActions.Sprinting())

	// the source is untouched
	assert.Equal(t, models.Vec2{X: 0.5, Y: 0.1}, obs.Left.Positions[1])
}

func TestFlipIsInvolution(t *testing.T) {
	obs := sample()
	assert.Equal(t, obs, FlipObservation(FlipObservation(obs)))

	for a := models.Action(0); a < models.ActionCount; a++ {
		assert.Equal(t, a, FlipAction(FlipAction(a)), a.String())
	}
}

func TestFlipOwnershipNobody(t *testing.T) {
	obs := sample()
	obs.BallOwnedTeam = models.BallOwnerNone
	assert.Equal(t, models.BallOwnerNone, FlipObservation(obs).BallOwnedTeam)
}

func TestFlipActions(t *testing.T) {
	in := []models.Action{models.ActionLeft, models.ActionTopLeft, models.ActionShot, models.ActionBottom}
	want := []models.Action{models.ActionRight, models.ActionBottomRight, models.ActionShot, models.ActionTop}
	assert.Equal(t, want, FlipActions(in))
}
