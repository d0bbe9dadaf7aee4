// Package events names the episode lifecycle events environments publish on
// the bus and the payloads they carry.
package events

import "github.com/zeusync/football/internal/core/models"

const (
	EpisodeReset = "episode.reset"
	EpisodeStep  = "episode.step"
	EpisodeGoal  = "episode.goal"
	EpisodeEnd   = "episode.end"
)

// Reset is published after an environment starts a new episode.
type Reset struct {
	Instance    string
	Episode     int
	Seed        int64
	Scenario    string
	Observation *models.Observation
}

// Step is published after every environment step.
type Step struct {
	Instance    string
	Episode     int
	Step        int
	Actions     []models.Action
	Rewards     []float64
	Observation *models.Observation
}

// Goal is published on the step a goal is scored.
type Goal struct {
	Instance string
	Episode  int
	Step     int
	Scorer   models.Side
	Score    [2]int
}

// End is published once an episode terminates or is truncated.
type End struct {
	Instance   string
	Episode    int
	Steps      int
	Score      [2]int
	Returns    []float64
	Terminated bool
	Truncated  bool
}
