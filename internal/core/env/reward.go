package env

import "github.com/zeusync/football/internal/core/models"

// Checkpoint shaping: the distance from the ball to the opponent goal is
// split into NumCheckpoints zones, each paying CheckpointReward once per
// episode while the agent's own player has the ball.
const (
	NumCheckpoints   = 10
	CheckpointReward = 0.1
)

// shaper adds a shaped reward on top of scoring.
type shaper interface {
	reset(agents int)
	// apply adds to rewards given each agent's own view of the pitch and
	// the scoring reward of this step.
	apply(rewards []float64, views []agentView, scoring []float64)
}

// agentView is the pitch as one agent sees it, plus the player it controls.
type agentView struct {
	obs    *models.Observation
	active int
}

// scoring returns the goal difference of the step from the left team's side.
func scoring(prev, cur *models.Observation) float64 {
	return float64((cur.Score[0] - prev.Score[0]) - (cur.Score[1] - prev.Score[1]))
}

type checkpoints struct {
	collected []int
}

func (c *checkpoints) reset(agents int) {
	c.collected = make([]int, agents)
}

func checkpointThreshold(collected int) float64 {
	return 0.99 - 0.8/float64(NumCheckpoints-1)*float64(collected)
}

func (c *checkpoints) apply(rewards []float64, views []agentView, scoring []float64) {
	for i := range rewards {
		if scoring[i] == 1 {
			rewards[i] += CheckpointReward * float64(NumCheckpoints-c.collected[i])
			c.collected[i] = NumCheckpoints
			continue
		}
		o := views[i].obs
		if o.BallOwnedTeam != models.BallOwnerLeft || o.BallOwnedPlayer != views[i].active {
			continue
		}
		d := o.Ball.DistanceXY(models.Vec2{X: 1})
		for c.collected[i] < NumCheckpoints {
			if d > checkpointThreshold(c.collected[i]) {
				break
			}
			rewards[i] += CheckpointReward
			c.collected[i]++
		}
	}
}
