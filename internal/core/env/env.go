// Package env wraps a football engine in a Gymnasium-style environment:
// Reset and Step over per-agent feature vectors, rewards, and separate
// terminated and truncated signals.
//
// Agents are numbered left players first, then right players. Right agents
// see the pitch rotated so that they also attack left to right, and their
// actions are rotated back before they reach the engine.
package env

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/engine/remote"
	"github.com/zeusync/football/internal/core/engine/stub"
	"github.com/zeusync/football/internal/core/events"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observation"
	"github.com/zeusync/football/internal/core/observation/rotation"
	"github.com/zeusync/football/internal/core/observability/log"
	"github.com/zeusync/football/internal/core/scenario"
)

// Info carries per-step diagnostics shared by all agents.
type Info struct {
	Instance      string  `json:"instance"`
	Episode       int     `json:"episode"`
	Step          int     `json:"step"`
	EngineSeed    int64   `json:"engine_seed"`
	Score         [2]int  `json:"score"`
	StepsLeft     int     `json:"steps_left"`
	GameMode      string  `json:"game_mode"`
	BallOwnedTeam string  `json:"ball_owned_team"`
	ScoreReward   float64 `json:"score_reward"`
}

// StepResult is everything Step reports for one transition.
type StepResult struct {
	Observations [][]float32 `json:"observations"`
	Rewards      []float64   `json:"rewards"`
	Terminated   bool        `json:"terminated"`
	Truncated    bool        `json:"truncated"`
	Info         Info        `json:"info"`
}

// Done reports whether the episode ended on this step.
func (r StepResult) Done() bool { return r.Terminated || r.Truncated }

type options struct {
	bus      bus.EventBus
	logger   log.Log
	instance string
}

type Option func(*options)

// WithBus publishes episode events on b.
func WithBus(b bus.EventBus) Option { return func(o *options) { o.bus = b } }

func WithLogger(l log.Log) Option { return func(o *options) { o.logger = l } }

// WithInstanceID names the environment in events and logs. A random UUID is
// used otherwise.
func WithInstanceID(id string) Option { return func(o *options) { o.instance = id } }

// Env is a single football environment. It is not safe for concurrent use.
type Env struct {
	cfg      Config
	eng      engine.Engine
	repr     observation.Representation
	leftEnc  *observation.Encoder
	rightEnc *observation.Encoder
	shapers  []shaper
	n1, n2   int

	bus      bus.EventBus
	logger   log.Log
	instance string

	rng        *rand.Rand
	obs        *models.Observation
	engineSeed int64
	episode    int
	steps      int
	returns    []float64
	started    bool
	over       bool
}

// New wraps eng, which must have been built for cfg.EngineConfig().
func New(cfg Config, eng engine.Engine, opts ...Option) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: log.Provide()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.instance == "" {
		o.instance = uuid.NewString()
	}

	sc, _ := scenario.Lookup(cfg.Scenario)
	repr, _ := observation.Lookup(cfg.Representation)
	names, _ := cfg.rewardNames()

	e := &Env{
		cfg:      cfg,
		eng:      eng,
		repr:     repr,
		leftEnc:  observation.NewEncoder(repr),
		rightEnc: observation.NewEncoder(repr),
		n1:       len(sc.Left),
		n2:       len(sc.Right),
		bus:      o.bus,
		instance: o.instance,
		logger: o.logger.With(
			log.String("component", "env"),
			log.String("instance", o.instance),
			log.String("scenario", cfg.Scenario),
		),
	}
	for _, name := range names {
		if name == RewardCheckpoints {
			e.shapers = append(e.shapers, &checkpoints{})
		}
	}
	return e, nil
}

// Make builds the engine described by cfg and wraps it. An empty
// cfg.EngineAddr selects the built-in stub engine.
func Make(ctx context.Context, cfg Config, opts ...Option) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var eng engine.Engine
	if cfg.EngineAddr == "" {
		s, err := stub.New(cfg.EngineConfig())
		if err != nil {
			return nil, err
		}
		eng = s
	} else {
		o := options{logger: log.Provide()}
		for _, opt := range opts {
			opt(&o)
		}
		r, err := remote.Dial(ctx, cfg.EngineAddr, cfg.EngineConfig(), remote.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		eng = r
	}

	e, err := New(cfg, eng, opts...)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	return e, nil
}

func (e *Env) Config() Config { return e.cfg }

func (e *Env) InstanceID() string { return e.instance }

func (e *Env) NumAgents() int { return e.cfg.NumAgents() }

// ObservationSpace returns the space of agent i's feature vector. Right
// agents see the teams swapped, so their vector length may differ.
func (e *Env) ObservationSpace(agent int) (Box, error) {
	if agent < 0 || agent >= e.NumAgents() {
		return Box{}, fmt.Errorf("%w: %d", ErrUnknownAgent, agent)
	}
	if agent < e.cfg.LeftAgents {
		return unboundedBox(e.repr.Dim(e.n1, e.n2)), nil
	}
	return unboundedBox(e.repr.Dim(e.n2, e.n1)), nil
}

// ActionSpace is one Discrete(19) per agent.
func (e *Env) ActionSpace() MultiDiscrete {
	nvec := make([]int, e.NumAgents())
	for i := range nvec {
		nvec[i] = models.ActionCount
	}
	return MultiDiscrete{Nvec: nvec}
}

// AgentActionSpace is the action space of a single agent.
func (e *Env) AgentActionSpace() Discrete { return Discrete{N: models.ActionCount} }

// SampleActions draws a uniformly random joint action from the env RNG.
func (e *Env) SampleActions() []int {
	return e.ActionSpace().Sample(e.random())
}

// Layout returns the named blocks of agent i's simplev1 vector, or nil for
// other representations.
func (e *Env) Layout(agent int) []observation.Block {
	if e.repr.Name() != observation.SimpleV1 {
		return nil
	}
	if agent >= e.cfg.LeftAgents {
		return observation.SimpleV1Layout(e.n2, e.n1)
	}
	return observation.SimpleV1Layout(e.n1, e.n2)
}

func (e *Env) random() *rand.Rand {
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e.rng
}

// Reset starts a new episode. A non-nil seed reseeds the env RNG; nil keeps
// drawing from the current stream, so a seeded sequence of episodes replays
// identically.
func (e *Env) Reset(ctx context.Context, seed *int64) ([][]float32, Info, error) {
	if seed != nil {
		e.rng = rand.New(rand.NewSource(*seed))
	}
	e.engineSeed = e.random().Int63()

	obs, err := e.eng.Reset(ctx, e.engineSeed)
	if err != nil {
		return nil, Info{}, fmt.Errorf("reset engine: %w", err)
	}
	out, err := e.observe(obs)
	if err != nil {
		return nil, Info{}, err
	}

	e.obs = obs
	e.episode++
	e.steps = 0
	e.returns = make([]float64, e.NumAgents())
	e.started, e.over = true, false
	for _, s := range e.shapers {
		s.reset(e.NumAgents())
	}

	e.publish(events.EpisodeReset, events.Reset{
		Instance:    e.instance,
		Episode:     e.episode,
		Seed:        e.engineSeed,
		Scenario:    e.cfg.Scenario,
		Observation: obs,
	})
	e.logger.Debug("Episode reset", log.Int("episode", e.episode), log.Int64("engine_seed", e.engineSeed))
	return out, e.info(0), nil
}

// Step applies one action per agent.
func (e *Env) Step(ctx context.Context, actions []int) (StepResult, error) {
	switch {
	case !e.started:
		return StepResult{}, ErrNotReset
	case e.over:
		return StepResult{}, ErrEpisodeOver
	}
	if !e.ActionSpace().Contains(actions) {
		return StepResult{}, fmt.Errorf("%w: %v for %d agents", ErrBadAction, actions, e.NumAgents())
	}

	engineActions := make([]models.Action, len(actions))
	for i, a := range actions {
		engineActions[i] = models.Action(a)
	}
	left := engineActions[:e.cfg.LeftAgents]
	right := rotation.FlipActions(engineActions[e.cfg.LeftAgents:])

	prev := e.obs
	obs, done, err := e.eng.Step(ctx, left, right)
	if err != nil {
		return StepResult{}, fmt.Errorf("step engine: %w", err)
	}
	out, err := e.observe(obs)
	if err != nil {
		return StepResult{}, err
	}

	e.obs = obs
	e.steps++

	delta := scoring(prev, obs)
	rewards := make([]float64, e.NumAgents())
	for i := range rewards {
		if i < e.cfg.LeftAgents {
			rewards[i] = delta
		} else {
			rewards[i] = -delta
		}
	}
	if len(e.shapers) > 0 {
		base := append([]float64(nil), rewards...)
		views := e.views(obs)
		for _, s := range e.shapers {
			s.apply(rewards, views, base)
		}
	}
	for i, r := range rewards {
		e.returns[i] += r
	}

	res := StepResult{
		Observations: out,
		Rewards:      rewards,
		Truncated:    obs.StepsLeft <= 0,
		Info:         e.info(delta),
	}
	res.Terminated = done && !res.Truncated
	e.over = res.Done()

	e.publish(events.EpisodeStep, events.Step{
		Instance:    e.instance,
		Episode:     e.episode,
		Step:        e.steps,
		Actions:     engineActions,
		Rewards:     rewards,
		Observation: obs,
	})
	if delta != 0 {
		scorer := models.SideLeft
		if delta < 0 {
			scorer = models.SideRight
		}
		e.publish(events.EpisodeGoal, events.Goal{
			Instance: e.instance,
			Episode:  e.episode,
			Step:     e.steps,
			Scorer:   scorer,
			Score:    obs.Score,
		})
	}
	if e.over {
		e.publish(events.EpisodeEnd, events.End{
			Instance:   e.instance,
			Episode:    e.episode,
			Steps:      e.steps,
			Score:      obs.Score,
			Returns:    append([]float64(nil), e.returns...),
			Terminated: res.Terminated,
			Truncated:  res.Truncated,
		})
		e.logger.Debug("Episode finished",
			log.Int("episode", e.episode),
			log.Int("steps", e.steps),
			log.Int("score_left", obs.Score[0]),
			log.Int("score_right", obs.Score[1]),
			log.Bool("truncated", res.Truncated),
		)
	}
	return res, nil
}

// RawObservation returns a copy of the latest engine observation, or nil
// before the first Reset.
func (e *Env) RawObservation() *models.Observation {
	if e.obs == nil {
		return nil
	}
	return e.obs.Clone()
}

// State encodes the global state as a simple115v2 vector seen from the left
// team's designated player.
func (e *Env) State() ([]float32, error) {
	if e.obs == nil {
		return nil, ErrNotReset
	}
	return observation.EncodeSimple115V2(e.obs, models.PlayerView{Active: e.obs.Left.DesignatedPlayer})
}

// Close releases the engine.
func (e *Env) Close() error { return e.eng.Close() }

func (e *Env) checkAgents(obs *models.Observation) error {
	if len(obs.LeftAgents) != e.cfg.LeftAgents || len(obs.RightAgents) != e.cfg.RightAgents {
		return fmt.Errorf("%w: engine controls %d+%d players, configured %d+%d", ErrInvalidConfig,
			len(obs.LeftAgents), len(obs.RightAgents), e.cfg.LeftAgents, e.cfg.RightAgents)
	}
	return nil
}

// views returns every agent's own view of obs: right agents get it rotated.
func (e *Env) views(obs *models.Observation) []agentView {
	out := make([]agentView, 0, e.NumAgents())
	for _, v := range obs.LeftAgents {
		out = append(out, agentView{obs: obs, active: v.Active})
	}
	if len(obs.RightAgents) > 0 {
		flipped := rotation.FlipObservation(obs)
		for _, v := range flipped.LeftAgents {
			out = append(out, agentView{obs: flipped, active: v.Active})
		}
	}
	return out
}

func (e *Env) observe(obs *models.Observation) ([][]float32, error) {
	if err := e.checkAgents(obs); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, e.NumAgents())
	for i, view := range obs.LeftAgents {
		vec, err := e.leftEnc.Encode(obs, view)
		if err != nil {
			return nil, fmt.Errorf("encode agent %d: %w", i, err)
		}
		out = append(out, vec)
	}
	if len(obs.RightAgents) > 0 {
		flipped := rotation.FlipObservation(obs)
		for i, view := range flipped.LeftAgents {
			vec, err := e.rightEnc.Encode(flipped, view)
			if err != nil {
				return nil, fmt.Errorf("encode agent %d: %w", e.cfg.LeftAgents+i, err)
			}
			out = append(out, vec)
		}
	}
	return out, nil
}

func (e *Env) info(scoreReward float64) Info {
	return Info{
		Instance:      e.instance,
		Episode:       e.episode,
		Step:          e.steps,
		EngineSeed:    e.engineSeed,
		Score:         e.obs.Score,
		StepsLeft:     e.obs.StepsLeft,
		GameMode:      e.obs.GameMode.String(),
		BallOwnedTeam: e.obs.BallOwnedTeam.String(),
		ScoreReward:   scoreReward,
	}
}

func (e *Env) publish(typ string, data any) {
	if e.bus == nil {
		return
	}
	ev := bus.NewEvent(typ, "env", data, map[string]any{"instance": e.instance, "episode": e.episode})
	if err := e.bus.Publish(ev); err != nil {
		e.logger.Warn("Event handler failed", log.String("event", typ), log.Error(err))
	}
}
