package env

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/observation"
	"github.com/zeusync/football/internal/core/scenario"
)

// Reward names accepted in Config.Rewards.
const (
	RewardScoring     = "scoring"
	RewardCheckpoints = "checkpoints"
)

// Config describes one environment instance.
type Config struct {
	Scenario       string `json:"scenario" yaml:"scenario" mapstructure:"scenario"`
	Representation string `json:"representation" yaml:"representation" mapstructure:"representation"`

	// Comma separated list; scoring is always on.
	Rewards string `json:"rewards" yaml:"rewards" mapstructure:"rewards"`

	LeftAgents  int `json:"left_agents" yaml:"left_agents" mapstructure:"left_agents"`
	RightAgents int `json:"right_agents" yaml:"right_agents" mapstructure:"right_agents"`

	// Engine address (ws://, wss:// or quic://). Empty runs the built-in stub engine.
	EngineAddr string `json:"engine_addr,omitempty" yaml:"engine_addr" mapstructure:"engine_addr"`
}

func DefaultConfig() Config {
	return Config{
		Scenario:       "academy_3_vs_1_with_keeper",
		Representation: observation.SimpleV1,
		Rewards:        RewardScoring,
		LeftAgents:     1,
	}
}

// Validate checks the configuration against the scenario registry.
func (c Config) Validate() error {
	sc, err := scenario.Lookup(c.Scenario)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err = observation.Lookup(c.Representation); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err = c.rewardNames(); err != nil {
		return err
	}
	switch {
	case c.LeftAgents < 0 || c.RightAgents < 0:
		return fmt.Errorf("%w: agent counts must not be negative", ErrInvalidConfig)
	case c.LeftAgents+c.RightAgents == 0:
		return fmt.Errorf("%w: at least one agent is required", ErrInvalidConfig)
	case c.LeftAgents > len(sc.Left):
		return fmt.Errorf("%w: %s has %d left players", ErrInvalidConfig, sc.Name, len(sc.Left))
	case c.RightAgents > len(sc.Right):
		return fmt.Errorf("%w: %s has %d right players", ErrInvalidConfig, sc.Name, len(sc.Right))
	}
	return nil
}

func (c Config) rewardNames() ([]string, error) {
	names := []string{RewardScoring}
	for _, r := range strings.Split(c.Rewards, ",") {
		r = strings.TrimSpace(r)
		switch r {
		case "", RewardScoring:
		case RewardCheckpoints:
			if !slices.Contains(names, r) {
				names = append(names, r)
			}
		default:
			return nil, fmt.Errorf("%w: unknown reward %q", ErrInvalidConfig, r)
		}
	}
	return names, nil
}

// EngineConfig is the part of the configuration the engine needs.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{Scenario: c.Scenario, LeftAgents: c.LeftAgents, RightAgents: c.RightAgents}
}

// NumAgents is the number of agent-driven players on both sides.
func (c Config) NumAgents() int { return c.LeftAgents + c.RightAgents }
