package observation

import "github.com/zeusync/football/internal/core/models"

// Simple115V2 is the fixed 115-value layout sized for full 11 versus 11 games.
// Smaller teams are back-filled with -1 so the vector length never changes.
const Simple115V2 = "simple115v2"

const (
	simple115MaxPlayers = 11
	simple115Dim        = 115
)

// EncodeSimple115V2 builds the simple115v2 vector for the given player view.
func EncodeSimple115V2(obs *models.Observation, view models.PlayerView) ([]float32, error) {
	if err := validate(obs, view); err != nil {
		return nil, err
	}
	n1, n2 := obs.Left.Size(), obs.Right.Size()
	if n1 > simple115MaxPlayers || n2 > simple115MaxPlayers {
		return nil, stateError("simple115v2 supports at most 11 players per team", n1, n2, view.Active)
	}

	out := make([]float32, 0, simple115Dim)
	for _, block := range [][]models.Vec2{obs.Left.Positions, obs.Left.Directions, obs.Right.Positions, obs.Right.Directions} {
		for _, v := range block {
			out = appendVec2(out, v)
		}
		for i := len(block); i < simple115MaxPlayers; i++ {
			out = append(out, -1, -1)
		}
	}

	out = appendVec3(out, obs.Ball)
	out = appendVec3(out, obs.BallDirection)
	out = appendOneHot(out, 3, obs.BallOwnedTeam.OneHotIndex())
	out = appendOneHot(out, simple115MaxPlayers, view.Active)
	out = appendOneHot(out, models.GameModeCount, int(obs.GameMode))

	return out, nil
}
