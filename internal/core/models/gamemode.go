package models

import "fmt"

// GameMode is the discrete match state reported by the engine.
type GameMode int

// The order matches the engine's one-hot layout and must not change.
const (
	GameModeNormal GameMode = iota
	GameModeKickOff
	GameModeGoalKick
	GameModeFreeKick
	GameModeCorner
	GameModeThrowIn
	GameModePenalty
)

// GameModeCount is the size of the game mode one-hot block.
const GameModeCount = 7

func (m GameMode) Valid() bool { return m >= 0 && int(m) < GameModeCount }

func (m GameMode) String() string {
	switch m {
	case GameModeNormal:
		return "normal"
	case GameModeKickOff:
		return "kick_off"
	case GameModeGoalKick:
		return "goal_kick"
	case GameModeFreeKick:
		return "free_kick"
	case GameModeCorner:
		return "corner"
	case GameModeThrowIn:
		return "throw_in"
	case GameModePenalty:
		return "penalty"
	default:
		return fmt.Sprintf("game_mode(%d)", int(m))
	}
}

// BallOwner tells which team controls the ball.
type BallOwner int

const (
	BallOwnerNone  BallOwner = -1
	BallOwnerLeft  BallOwner = 0
	BallOwnerRight BallOwner = 1
)

func (o BallOwner) Valid() bool { return o >= BallOwnerNone && o <= BallOwnerRight }

// OneHotIndex maps the owner onto the {none, left, right} block.
func (o BallOwner) OneHotIndex() int { return int(o) + 1 }

// Opposite swaps left and right; nobody stays nobody.
func (o BallOwner) Opposite() BallOwner {
	if o == BallOwnerNone {
		return BallOwnerNone
	}
	return 1 - o
}

func (o BallOwner) String() string {
	switch o {
	case BallOwnerNone:
		return "none"
	case BallOwnerLeft:
		return "left"
	case BallOwnerRight:
		return "right"
	default:
		return fmt.Sprintf("ball_owner(%d)", int(o))
	}
}

// Side identifies the team an agent plays for.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}
