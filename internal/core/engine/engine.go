// Package engine defines the contract between environments and the football
// simulation that produces their observations.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeusync/football/internal/core/models"
)

var (
	ErrEngineClosed  = errors.New("engine is closed")
	ErrNotReset      = errors.New("engine must be reset before stepping")
	ErrBadActions    = errors.New("action count does not match controlled players")
	ErrInvalidConfig = errors.New("invalid engine configuration")
	ErrCapacity      = errors.New("engine host is at capacity")
)

// Engine is a football simulation driven step by step.
//
// Implementations own their simulation state; callers must not mutate returned
// observations. An Engine is not safe for concurrent use.
type Engine interface {
	// Reset starts a new episode. The same seed must yield the same episode
	// for the same sequence of actions.
	Reset(ctx context.Context, seed int64) (*models.Observation, error)
	// Step applies one action per controlled player on each side and advances
	// the simulation by one frame. done reports the end of the episode.
	Step(ctx context.Context, left, right []models.Action) (obs *models.Observation, done bool, err error)
	Close() error
}

// Config describes what an engine instance simulates.
type Config struct {
	Scenario string `json:"scenario" yaml:"scenario" mapstructure:"scenario"`

	// Number of players driven by agents on each side.
	LeftAgents  int `json:"left_agents" yaml:"left_agents" mapstructure:"left_agents"`
	RightAgents int `json:"right_agents" yaml:"right_agents" mapstructure:"right_agents"`
}

// Validate checks the agent counts.
func (c Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("%w: scenario is required", ErrInvalidConfig)
	}
	if c.LeftAgents < 0 || c.RightAgents < 0 {
		return fmt.Errorf("%w: agent counts must not be negative", ErrInvalidConfig)
	}
	if c.LeftAgents+c.RightAgents == 0 {
		return fmt.Errorf("%w: at least one agent is required", ErrInvalidConfig)
	}
	return nil
}
