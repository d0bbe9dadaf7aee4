// Package stub is a deterministic stand-in for the football engine.
//
// It moves players and the ball with trivial kinematics, enough to drive
// environments, encoders and rewards end to end without the real simulator.
// Equal seeds and equal action sequences always replay the same episode.
package stub

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/scenario"
)

type player struct {
	pos  models.Vec2
	vel  models.Vec2
	role models.PlayerRole
}

type kicker struct {
	side  models.Side
	idx   int
	steps int
}

// Engine simulates one scenario. It is not safe for concurrent use.
type Engine struct {
	sc       scenario.Scenario
	leftCtl  []int
	rightCtl []int

	rng         *rand.Rand
	left        []player
	right       []player
	leftSticky  []models.StickyActions
	rightSticky []models.StickyActions

	ball        models.Vec3
	ballVel     models.Vec3
	owner       models.BallOwner
	ownerPlayer int
	lastTeam    models.BallOwner
	kicker      kicker
	mode        models.GameMode
	score       [2]int
	stepsLeft   int

	started bool
	done    bool
	closed  bool
}

var _ engine.Engine = (*Engine)(nil)

// New builds a stub engine for the named scenario.
func New(cfg engine.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := scenario.Lookup(cfg.Scenario)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrInvalidConfig, err)
	}
	return NewFromScenario(sc, cfg.LeftAgents, cfg.RightAgents)
}

// NewFromScenario builds a stub engine for an already loaded scenario with
// the given number of agent-driven players per side.
func NewFromScenario(sc scenario.Scenario, leftAgents, rightAgents int) (*Engine, error) {
	if leftAgents < 0 || leftAgents > len(sc.Left) {
		return nil, fmt.Errorf("%w: %s has %d left players, %d requested", engine.ErrInvalidConfig, sc.Name, len(sc.Left), leftAgents)
	}
	if rightAgents < 0 || rightAgents > len(sc.Right) {
		return nil, fmt.Errorf("%w: %s has %d right players, %d requested", engine.ErrInvalidConfig, sc.Name, len(sc.Right), rightAgents)
	}
	return &Engine{
		sc:       sc,
		leftCtl:  sc.Controllable(models.SideLeft)[:leftAgents],
		rightCtl: sc.Controllable(models.SideRight)[:rightAgents],
	}, nil
}

// Scenario returns the simulated scenario.
func (e *Engine) Scenario() scenario.Scenario { return e.sc }

func (e *Engine) Reset(ctx context.Context, seed int64) (*models.Observation, error) {
	if e.closed {
		return nil, engine.ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.rng = rand.New(rand.NewSource(seed))
	e.leftSticky = make([]models.StickyActions, len(e.leftCtl))
	e.rightSticky = make([]models.StickyActions, len(e.rightCtl))
	e.score = [2]int{}
	e.stepsLeft = e.sc.GameDuration
	e.lastTeam = models.BallOwnerNone
	e.kickOff(models.Vec2{X: e.sc.Ball[0], Y: e.sc.Ball[1]}, models.GameModeNormal)
	e.started, e.done = true, false

	return e.observe(), nil
}

func (e *Engine) Step(ctx context.Context, left, right []models.Action) (*models.Observation, bool, error) {
	switch {
	case e.closed:
		return nil, false, engine.ErrEngineClosed
	case !e.started:
		return nil, false, engine.ErrNotReset
	case e.done:
		return nil, false, fmt.Errorf("%w: episode is over", engine.ErrNotReset)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := checkActions(left, len(e.leftCtl)); err != nil {
		return nil, false, fmt.Errorf("left: %w", err)
	}
	if err := checkActions(right, len(e.rightCtl)); err != nil {
		return nil, false, fmt.Errorf("right: %w", err)
	}

	// restarts last a single frame
	e.mode = models.GameModeNormal

	e.act(models.SideLeft, left)
	e.act(models.SideRight, right)
	e.moveFree(models.SideLeft)
	e.moveFree(models.SideRight)
	e.moveBall()
	e.contest()
	if e.kicker.steps > 0 {
		e.kicker.steps--
	}

	e.stepsLeft--
	e.done = e.referee() || e.stepsLeft <= 0
	return e.observe(), e.done, nil
}

// Close releases the engine. Further calls fail with engine.ErrEngineClosed.
func (e *Engine) Close() error {
	e.closed = true
	return nil
}

func checkActions(actions []models.Action, want int) error {
	if len(actions) != want {
		return fmt.Errorf("%w: got %d, want %d", engine.ErrBadActions, len(actions), want)
	}
	for _, a := range actions {
		if !a.Valid() {
			return fmt.Errorf("%w: %s", engine.ErrBadActions, a)
		}
	}
	return nil
}

func (e *Engine) kickOff(ball models.Vec2, mode models.GameMode) {
	e.left = place(e.sc.Left, false)
	e.right = place(e.sc.Right, true)
	e.ball = models.Vec3{X: ball.X, Y: ball.Y}
	e.ballVel = models.Vec3{}
	e.owner, e.ownerPlayer = models.BallOwnerNone, -1
	e.kicker = kicker{}
	e.mode = mode
	e.claim()
}

// place puts a team at its scenario positions. The right team is described in
// its own frame and gets rotated onto the pitch.
func place(team []scenario.Player, mirrored bool) []player {
	roles := scenario.Roles(team)
	out := make([]player, len(team))
	for i, p := range team {
		pos := models.Vec2{X: p.Position[0], Y: p.Position[1]}
		if mirrored {
			pos = pos.Neg()
		}
		out[i] = player{pos: pos, role: roles[i]}
	}
	return out
}

func (e *Engine) team(side models.Side) []player {
	if side == models.SideRight {
		return e.right
	}
	return e.left
}

func (e *Engine) controlled(side models.Side) ([]int, []models.StickyActions) {
	if side == models.SideRight {
		return e.rightCtl, e.rightSticky
	}
	return e.leftCtl, e.leftSticky
}

func owner(side models.Side) models.BallOwner {
	if side == models.SideRight {
		return models.BallOwnerRight
	}
	return models.BallOwnerLeft
}

// goal returns the centre of the goal the side attacks.
func goal(side models.Side) models.Vec2 {
	if side == models.SideRight {
		return models.Vec2{X: -PitchHalfLength}
	}
	return models.Vec2{X: PitchHalfLength}
}

func (e *Engine) act(side models.Side, actions []models.Action) {
	team := e.team(side)
	ctl, sticky := e.controlled(side)
	for i, a := range actions {
		idx := ctl[i]
		p := &team[idx]
		sticky[i].Apply(a)
		p.vel = velocity(sticky[i], p.vel)
		p.pos = clampReach(p.pos.Add(p.vel))

		if e.owner == owner(side) && e.ownerPlayer == idx {
			switch a {
			case models.ActionShot:
				e.kick(side, idx, goal(side).Sub(p.pos).Normalized().Scale(ShotSpeed), 0.005)
			case models.ActionShortPass:
				e.pass(side, idx, ShortPassSpeed, 0, false)
			case models.ActionLongPass:
				e.pass(side, idx, LongPassSpeed, 0, true)
			case models.ActionHighPass:
				e.pass(side, idx, LongPassSpeed, HighPassLift, true)
			}
			continue
		}
		if a == models.ActionSliding && e.owner == owner(side).Opposite() &&
			p.pos.Distance(e.ball.XY()) < SlideRadius && e.rng.Float64() < SlideChance {
			e.owner, e.ownerPlayer = models.BallOwnerNone, -1
			e.ballVel = models.Vec3{}
		}
	}
}

func velocity(s models.StickyActions, prev models.Vec2) models.Vec2 {
	dir, ok := s.Direction()
	if !ok {
		return prev.Scale(PlayerDamping)
	}
	speed := WalkSpeed
	switch {
	case s.Sprinting():
		speed = SprintSpeed
	case s.Dribbling():
		speed = DribbleSpeed
	}
	return dir.Scale(speed)
}

func clampReach(p models.Vec2) models.Vec2 {
	return models.Vec2{
		X: clamp(p.X, -MaxPlayerReach, MaxPlayerReach),
		Y: clamp(p.Y, -PitchHalfWidth-0.1, PitchHalfWidth+0.1),
	}
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func (e *Engine) kick(side models.Side, idx int, v models.Vec2, lift float64) {
	e.owner, e.ownerPlayer = models.BallOwnerNone, -1
	e.kicker = kicker{side: side, idx: idx, steps: KickCooldown}
	e.ballVel = models.Vec3{X: v.X, Y: v.Y, Z: lift}
}

// pass kicks the ball towards the nearest teammate, or the farthest one for
// long balls. Without teammates the ball goes towards the attacked goal.
func (e *Engine) pass(side models.Side, from int, speed, lift float64, long bool) {
	team := e.team(side)
	src := team[from].pos
	target, best := goal(side), -1.0
	for i, mate := range team {
		if i == from {
			continue
		}
		d := src.Distance(mate.pos)
		if best < 0 || (long && d > best) || (!long && d < best) {
			target, best = mate.pos, d
		}
	}
	e.kick(side, from, target.Sub(src).Normalized().Scale(speed), lift)
}

// moveFree moves the players no agent drives. Keepers shadow the ball along
// their line; right field players chase it; left field players hold position.
func (e *Engine) moveFree(side models.Side) {
	team := e.team(side)
	ctl, _ := e.controlled(side)
	ball := e.ball.XY()
	for i := range team {
		if slices.Contains(ctl, i) {
			continue
		}
		p := &team[i]
		switch {
		case p.role == models.RoleGoalkeeper:
			dy := clamp(clamp(ball.Y, -GoalHalfWidth, GoalHalfWidth)-p.pos.Y, -KeeperSpeed, KeeperSpeed)
			p.vel = models.Vec2{Y: dy}
		case side == models.SideRight:
			step := DriftSpeed * (0.75 + 0.5*e.rng.Float64())
			p.vel = ball.Sub(p.pos).Normalized().Scale(math.Min(step, p.pos.Distance(ball)))
		default:
			p.vel = p.vel.Scale(PlayerDamping)
		}
		p.pos = clampReach(p.pos.Add(p.vel))
	}
}

func (e *Engine) moveBall() {
	if e.owner != models.BallOwnerNone {
		side := models.SideLeft
		if e.owner == models.BallOwnerRight {
			side = models.SideRight
		}
		p := e.team(side)[e.ownerPlayer]
		heading := p.vel.Normalized()
		if heading == (models.Vec2{}) {
			heading = goal(side).Sub(p.pos).Normalized()
		}
		at := p.pos.Add(heading.Scale(BallCarryOffset))
		e.ballVel = models.Vec3{X: at.X - e.ball.X, Y: at.Y - e.ball.Y}
		e.ball = models.Vec3{X: at.X, Y: at.Y}
		return
	}

	e.ball = e.ball.Add(e.ballVel)
	if e.ball.Z <= 0 {
		e.ball.Z, e.ballVel.Z = 0, 0
	} else {
		e.ballVel.Z -= BallGravity
	}
	e.ballVel.X *= BallFriction
	e.ballVel.Y *= BallFriction
}

// contest hands a loose ball to the closest player in reach and lets
// defenders tackle the carrier.
func (e *Engine) contest() {
	if e.ball.Z > 0.05 {
		return
	}
	if e.owner == models.BallOwnerNone {
		if e.ballVel.XY().Len() <= ControlSpeed {
			e.claim()
		}
		return
	}
	opp := models.SideRight
	if e.owner == models.BallOwnerRight {
		opp = models.SideLeft
	}
	for i, p := range e.team(opp) {
		if p.pos.Distance(e.ball.XY()) < TackleRadius && e.rng.Float64() < TackleChance {
			e.take(opp, i)
			return
		}
	}
}

func (e *Engine) claim() {
	ball := e.ball.XY()
	side, idx, best := models.SideLeft, -1, PossessionRadius
	for _, s := range []models.Side{models.SideLeft, models.SideRight} {
		for i, p := range e.team(s) {
			if e.kicker.steps > 0 && e.kicker.side == s && e.kicker.idx == i {
				continue
			}
			if d := p.pos.Distance(ball); d < best {
				side, idx, best = s, i, d
			}
		}
	}
	if idx >= 0 {
		e.take(side, idx)
	}
}

func (e *Engine) take(side models.Side, idx int) {
	e.owner, e.ownerPlayer = owner(side), idx
	e.ballVel = models.Vec3{}
	if e.lastTeam == models.BallOwnerNone {
		e.lastTeam = e.owner
	}
}

// referee applies goals, out of play and possession changes. It reports
// whether the scenario ends the episode.
func (e *Engine) referee() bool {
	b := e.ball
	if math.Abs(b.X) > PitchHalfLength && math.Abs(b.Y) < GoalHalfWidth {
		if b.X > 0 {
			e.score[0]++
		} else {
			e.score[1]++
		}
		if e.sc.EndEpisodeOnScore {
			return true
		}
		e.kickOff(models.Vec2{}, models.GameModeKickOff)
		return false
	}

	if math.Abs(b.X) > PitchHalfLength || math.Abs(b.Y) > PitchHalfWidth {
		if e.sc.EndEpisodeOnOutOfPlay {
			return true
		}
		mode := models.GameModeThrowIn
		if math.Abs(b.X) > PitchHalfLength {
			mode = models.GameModeGoalKick
		}
		e.ball = models.Vec3{
			X: clamp(b.X, -PitchHalfLength, PitchHalfLength),
			Y: clamp(b.Y, -PitchHalfWidth, PitchHalfWidth),
		}
		e.ballVel = models.Vec3{}
		e.owner, e.ownerPlayer = models.BallOwnerNone, -1
		e.mode = mode
		return false
	}

	if e.owner != models.BallOwnerNone && e.owner != e.lastTeam {
		e.lastTeam = e.owner
		return e.sc.EndEpisodeOnPossessionChange
	}
	return false
}

func (e *Engine) observe() *models.Observation {
	obs := &models.Observation{
		Ball:            e.ball,
		BallDirection:   e.ballVel,
		BallOwnedTeam:   e.owner,
		BallOwnedPlayer: e.ownerPlayer,
		Left:            snapshot(e.left, e.leftCtl),
		Right:           snapshot(e.right, e.rightCtl),
		GameMode:        e.mode,
		Score:           e.score,
		StepsLeft:       e.stepsLeft,
		LeftAgents:      views(e.leftCtl, e.leftSticky),
		RightAgents:     views(e.rightCtl, e.rightSticky),
	}
	return obs
}

func snapshot(team []player, ctl []int) models.Team {
	n := len(team)
	t := models.Team{
		Positions:   make([]models.Vec2, n),
		Directions:  make([]models.Vec2, n),
		TiredFactor: make([]float64, n),
		Active:      make([]bool, n),
		YellowCard:  make([]bool, n),
		Roles:       make([]models.PlayerRole, n),
	}
	for i, p := range team {
		t.Positions[i] = p.pos
		t.Directions[i] = p.vel
		t.Active[i] = true
		t.Roles[i] = p.role
	}
	if len(ctl) > 0 {
		t.DesignatedPlayer = ctl[0]
	}
	return t
}

func views(ctl []int, sticky []models.StickyActions) []models.PlayerView {
	out := make([]models.PlayerView, len(ctl))
	for i, idx := range ctl {
		out[i] = models.PlayerView{Active: idx, StickyActions: sticky[i]}
	}
	return out
}
