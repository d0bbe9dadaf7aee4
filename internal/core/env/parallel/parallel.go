// Package parallel exposes an env.Env with the PettingZoo parallel API shape:
// every agent acts each step, and all inputs and outputs are keyed by agent
// name.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/football/internal/core/env"
)

const agentPrefix = "player_"

var ErrMissingAction = errors.New("missing action")

// AgentName returns the name of agent i.
func AgentName(i int) string { return agentPrefix + strconv.Itoa(i) }

// AgentIndex parses an agent name back into its index.
func AgentIndex(name string) (int, bool) {
	s, ok := strings.CutPrefix(name, agentPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || AgentName(i) != name {
		return 0, false
	}
	return i, true
}

// Result is one parallel step. Every map is keyed by the agents that acted.
type Result struct {
	Observations map[string][]float32 `json:"observations"`
	Rewards      map[string]float64   `json:"rewards"`
	Terminations map[string]bool      `json:"terminations"`
	Truncations  map[string]bool      `json:"truncations"`
	Infos        map[string]env.Info  `json:"infos"`
}

// Env is a parallel multi-agent environment. It is not safe for concurrent use.
type Env struct {
	env      *env.Env
	possible []string
	agents   []string
}

func New(e *env.Env) *Env {
	possible := make([]string, e.NumAgents())
	for i := range possible {
		possible[i] = AgentName(i)
	}
	return &Env{env: e, possible: possible}
}

// Unwrapped returns the underlying single environment.
func (p *Env) Unwrapped() *env.Env { return p.env }

func (p *Env) NumAgents() int { return len(p.possible) }

// PossibleAgents lists every agent the environment can ever hold.
func (p *Env) PossibleAgents() []string { return append([]string(nil), p.possible...) }

// Agents lists the live agents. It is empty before Reset and after the
// episode ended.
func (p *Env) Agents() []string { return append([]string(nil), p.agents...) }

func (p *Env) index(agent string) (int, error) {
	i, ok := AgentIndex(agent)
	if !ok || i >= len(p.possible) {
		return 0, fmt.Errorf("%w: %q", env.ErrUnknownAgent, agent)
	}
	return i, nil
}

func (p *Env) ObservationSpace(agent string) (env.Box, error) {
	i, err := p.index(agent)
	if err != nil {
		return env.Box{}, err
	}
	return p.env.ObservationSpace(i)
}

func (p *Env) ActionSpace(agent string) (env.Discrete, error) {
	if _, err := p.index(agent); err != nil {
		return env.Discrete{}, err
	}
	return p.env.AgentActionSpace(), nil
}

// State is the global simple115v2 state of the match.
func (p *Env) State() ([]float32, error) { return p.env.State() }

func (p *Env) Reset(ctx context.Context, seed *int64) (map[string][]float32, map[string]env.Info, error) {
	obs, info, err := p.env.Reset(ctx, seed)
	if err != nil {
		return nil, nil, err
	}
	p.agents = p.PossibleAgents()

	out := make(map[string][]float32, len(obs))
	infos := make(map[string]env.Info, len(obs))
	for i, vec := range obs {
		out[p.possible[i]] = vec
		infos[p.possible[i]] = info
	}
	return out, infos, nil
}

// Step requires exactly one action per live agent.
func (p *Env) Step(ctx context.Context, actions map[string]int) (Result, error) {
	joint := make([]int, len(p.possible))
	for _, agent := range p.agents {
		a, ok := actions[agent]
		if !ok {
			return Result{}, fmt.Errorf("%w for %s", ErrMissingAction, agent)
		}
		joint[p.mustIndex(agent)] = a
	}
	for agent := range actions {
		if _, err := p.index(agent); err != nil {
			return Result{}, err
		}
	}

	res, err := p.env.Step(ctx, joint)
	if err != nil {
		return Result{}, err
	}

	out := Result{
		Observations: make(map[string][]float32, len(p.agents)),
		Rewards:      make(map[string]float64, len(p.agents)),
		Terminations: make(map[string]bool, len(p.agents)),
		Truncations:  make(map[string]bool, len(p.agents)),
		Infos:        make(map[string]env.Info, len(p.agents)),
	}
	for _, agent := range p.agents {
		i := p.mustIndex(agent)
		out.Observations[agent] = res.Observations[i]
		out.Rewards[agent] = res.Rewards[i]
		out.Terminations[agent] = res.Terminated
		out.Truncations[agent] = res.Truncated
		out.Infos[agent] = res.Info
	}
	if res.Done() {
		p.agents = nil
	}
	return out, nil
}

func (p *Env) mustIndex(agent string) int {
	i, _ := AgentIndex(agent)
	return i
}

func (p *Env) Close() error { return p.env.Close() }
