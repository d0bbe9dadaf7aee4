package models

// PlayerRole is the engine's tactical role for a player.
type PlayerRole int

const (
	RoleGoalkeeper PlayerRole = iota
	RoleCentreBack
	RoleLeftBack
	RoleRightBack
	RoleDefenceMidfield
	RoleCentralMidfield
	RoleLeftMidfield
	RoleRightMidfield
	RoleAttackMidfield
	RoleCentralFront
)

// Team is the per-player state of one side. All slices are ordered by player
// index and keep that order for the whole scenario, so an index is a stable
// player identity.
type Team struct {
	Positions        []Vec2       `json:"positions"`
	Directions       []Vec2       `json:"directions"`
	TiredFactor      []float64    `json:"tired_factor,omitempty"`
	Active           []bool       `json:"active,omitempty"`
	YellowCard       []bool       `json:"yellow_card,omitempty"`
	Roles            []PlayerRole `json:"roles,omitempty"`
	DesignatedPlayer int          `json:"designated_player"`
}

// Size is the number of players on the team.
func (t Team) Size() int { return len(t.Positions) }

// Clone returns a deep copy of the team.
func (t Team) Clone() Team {
	return Team{
		Positions:        append([]Vec2(nil), t.Positions...),
		Directions:       append([]Vec2(nil), t.Directions...),
		TiredFactor:      append([]float64(nil), t.TiredFactor...),
		Active:           append([]bool(nil), t.Active...),
		YellowCard:       append([]bool(nil), t.YellowCard...),
		Roles:            append([]PlayerRole(nil), t.Roles...),
		DesignatedPlayer: t.DesignatedPlayer,
	}
}

// PlayerView is what a single controlled player adds to the shared state: which
// team member it currently drives and which sticky actions are held.
type PlayerView struct {
	Active        int           `json:"active"`
	StickyActions StickyActions `json:"sticky_actions"`
}

// Observation is one raw snapshot of the simulation, shared by every agent.
type Observation struct {
	Ball            Vec3      `json:"ball"`
	BallDirection   Vec3      `json:"ball_direction"`
	BallRotation    Vec3      `json:"ball_rotation"`
	BallOwnedTeam   BallOwner `json:"ball_owned_team"`
	BallOwnedPlayer int       `json:"ball_owned_player"`

	Left  Team `json:"left_team"`
	Right Team `json:"right_team"`

	GameMode  GameMode `json:"game_mode"`
	Score     [2]int   `json:"score"`
	StepsLeft int      `json:"steps_left"`

	// Views of the players driven by agents, in agent order.
	LeftAgents  []PlayerView `json:"left_agent_controlled_player"`
	RightAgents []PlayerView `json:"right_agent_controlled_player"`
}

// Clone returns a deep copy of the observation.
func (o *Observation) Clone() *Observation {
	c := *o
	c.Left = o.Left.Clone()
	c.Right = o.Right.Clone()
	c.LeftAgents = append([]PlayerView(nil), o.LeftAgents...)
	c.RightAgents = append([]PlayerView(nil), o.RightAgents...)
	return &c
}

// Agents returns the views of the agents playing for the given side.
func (o *Observation) Agents(side Side) []PlayerView {
	if side == SideRight {
		return o.RightAgents
	}
	return o.LeftAgents
}
