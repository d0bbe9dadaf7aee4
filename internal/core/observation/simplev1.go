package observation

import "github.com/zeusync/football/internal/core/models"

// SimpleV1 is the compact per-player representation for cooperative academy
// scenarios. Everything is centred on the current player, then repeated in
// absolute coordinates so the global position is not lost.
const SimpleV1 = "simplev1"

// SimpleV1Dim returns the vector length for n1 left and n2 right players.
func SimpleV1Dim(n1, n2 int) int {
	return 7*n1 + 6*n2 + 18
}

// Block is a named slice of an encoded vector.
type Block struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Len    int    `json:"len"`
}

// SimpleV1Layout lists the blocks of a simplev1 vector in encoding order.
// The lengths always add up to SimpleV1Dim(n1, n2).
func SimpleV1Layout(n1, n2 int) []Block {
	others := n1 - 1
	sizes := []struct {
		name string
		n    int
	}{
		{"player_position", 2},
		{"player_direction", 2},
		{"player_status", 2},
		{"left_relative", others * 2},
		{"right_relative", n2 * 2},
		{"ball_relative", 2},
		{"left_positions", others * 2},
		{"left_directions", others * 2},
		{"right_positions", n2 * 2},
		{"right_directions", n2 * 2},
		{"ball_position", 3},
		{"ball_direction", 3},
		{"ball_owner", 3},
		{"game_mode", models.GameModeCount},
		{"active_player", n1},
	}

	blocks := make([]Block, len(sizes))
	offset := 0
	for i, s := range sizes {
		blocks[i] = Block{Name: s.name, Offset: offset, Len: s.n}
		offset += s.n
	}
	return blocks
}

// EncodeSimpleV1 builds the simplev1 vector of obs as seen by the left-team
// player view.Active. It is a pure function: the same inputs always produce
// bit-identical output, and a rejected snapshot yields no vector at all.
func EncodeSimpleV1(obs *models.Observation, view models.PlayerView) ([]float32, error) {
	if err := validate(obs, view); err != nil {
		return nil, err
	}

	left, right := obs.Left, obs.Right
	n1, n2 := left.Size(), right.Size()
	cur := view.Active
	me := left.Positions[cur]

	out := make([]float32, 0, SimpleV1Dim(n1, n2))

	out = appendVec2(out, me)
	out = appendVec2(out, left.Directions[cur])
	out = append(out, flag(view.StickyActions.Sprinting()), flag(view.StickyActions.Dribbling()))

	for i, p := range left.Positions {
		if i != cur {
			out = appendVec2(out, p.Sub(me))
		}
	}
	for _, p := range right.Positions {
		out = appendVec2(out, p.Sub(me))
	}
	out = appendVec2(out, obs.Ball.XY().Sub(me))

	for i, p := range left.Positions {
		if i != cur {
			out = appendVec2(out, p)
		}
	}
	for i, d := range left.Directions {
		if i != cur {
			out = appendVec2(out, d)
		}
	}
	for _, p := range right.Positions {
		out = appendVec2(out, p)
	}
	for _, d := range right.Directions {
		out = appendVec2(out, d)
	}

	out = appendVec3(out, obs.Ball)
	out = appendVec3(out, obs.BallDirection)
	out = appendOneHot(out, 3, obs.BallOwnedTeam.OneHotIndex())
	out = appendOneHot(out, models.GameModeCount, int(obs.GameMode))
	out = appendOneHot(out, n1, cur)

	return out, nil
}

func validate(obs *models.Observation, view models.PlayerView) error {
	if obs == nil {
		return stateError("nil observation", 0, 0, view.Active)
	}
	n1, n2 := obs.Left.Size(), obs.Right.Size()
	switch {
	case n1 < 1:
		return stateError("left team is empty", n1, n2, view.Active)
	case len(obs.Left.Directions) != n1:
		return stateError("left team directions do not match positions", n1, n2, view.Active)
	case len(obs.Right.Directions) != n2:
		return stateError("right team directions do not match positions", n1, n2, view.Active)
	case view.Active < 0 || view.Active >= n1:
		return stateError("active player out of range", n1, n2, view.Active)
	case !obs.GameMode.Valid():
		return stateError("unknown game mode "+obs.GameMode.String(), n1, n2, view.Active)
	case !obs.BallOwnedTeam.Valid():
		return stateError("unknown ball owner "+obs.BallOwnedTeam.String(), n1, n2, view.Active)
	}
	return nil
}

func appendVec2(out []float32, v models.Vec2) []float32 {
	return append(out, float32(v.X), float32(v.Y))
}

func appendVec3(out []float32, v models.Vec3) []float32 {
	return append(out, float32(v.X), float32(v.Y), float32(v.Z))
}

func appendOneHot(out []float32, size, idx int) []float32 {
	for i := 0; i < size; i++ {
		out = append(out, flag(i == idx))
	}
	return out
}

func flag(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
