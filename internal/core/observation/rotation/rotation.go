// Package rotation mirrors observations and actions through the centre spot.
//
// Policies are trained to attack left to right. To let the same policy play
// for the right team, its observation is rotated by 180 degrees and the
// actions it picks are rotated back before they reach the engine.
package rotation

import "github.com/zeusync/football/internal/core/models"

// Point rotates a 2D point around the centre of the pitch.
func Point(p models.Vec2) models.Vec2 { return p.Neg() }

// Point3 rotates a 3D point around the vertical axis through the centre; height is kept.
func Point3(p models.Vec3) models.Vec3 { return models.Vec3{X: -p.X, Y: -p.Y, Z: p.Z} }

func points(ps []models.Vec2) []models.Vec2 {
	if ps == nil {
		return nil
	}
	out := make([]models.Vec2, len(ps))
	for i, p := range ps {
		out[i] = Point(p)
	}
	return out
}

func team(t models.Team) models.Team {
	out := t.Clone()
	out.Positions = points(t.Positions)
	out.Directions = points(t.Directions)
	return out
}

func views(vs []models.PlayerView) []models.PlayerView {
	if vs == nil {
		return nil
	}
	out := make([]models.PlayerView, len(vs))
	for i, v := range vs {
		out[i] = models.PlayerView{Active: v.Active, StickyActions: FlipStickyActions(v.StickyActions)}
	}
	return out
}

// FlipObservation returns the observation of the pitch rotated by 180 degrees.
// The teams swap sides, so the right team becomes the left one. The input is
// not modified.
func FlipObservation(obs *models.Observation) *models.Observation {
	return &models.Observation{
		Ball:            Point3(obs.Ball),
		BallDirection:   Point3(obs.BallDirection),
		BallRotation:    obs.BallRotation,
		BallOwnedTeam:   obs.BallOwnedTeam.Opposite(),
		BallOwnedPlayer: obs.BallOwnedPlayer,
		Left:            team(obs.Right),
		Right:           team(obs.Left),
		GameMode:        obs.GameMode,
		Score:           [2]int{obs.Score[1], obs.Score[0]},
		StepsLeft:       obs.StepsLeft,
		LeftAgents:      views(obs.RightAgents),
		RightAgents:     views(obs.LeftAgents),
	}
}

// FlipAction mirrors a directional action; every other action is unchanged.
func FlipAction(a models.Action) models.Action {
	switch a {
	case models.ActionLeft:
		return models.ActionRight
	case models.ActionTopLeft:
		return models.ActionBottomRight
	case models.ActionTop:
		return models.ActionBottom
	case models.ActionTopRight:
		return models.ActionBottomLeft
	case models.ActionRight:
		return models.ActionLeft
	case models.ActionBottomRight:
		return models.ActionTopLeft
	case models.ActionBottom:
		return models.ActionTop
	case models.ActionBottomLeft:
		return models.ActionTopRight
	default:
		return a
	}
}

// FlipActions mirrors every action of the slice into a new slice.
func FlipActions(actions []models.Action) []models.Action {
	out := make([]models.Action, len(actions))
	for i, a := range actions {
		out[i] = FlipAction(a)
	}
	return out
}

// FlipStickyActions remaps held sticky actions to what a player attacking the
// other way would hold.
func FlipStickyActions(s models.StickyActions) models.StickyActions {
	var out models.StickyActions
	for i := range s {
		src := models.StickyAction(i)
		dst := FlipAction(src.Action())
		out[stickyIndex(dst)] = s[i]
	}
	return out
}

func stickyIndex(a models.Action) int {
	switch a {
	case models.ActionSprint:
		return int(models.StickySprint)
	case models.ActionDribble:
		return int(models.StickyDribble)
	default:
		return int(a) - int(models.ActionLeft)
	}
}
