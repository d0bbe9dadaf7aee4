package stub

// Pitch geometry, in engine units.
const (
	PitchHalfLength = 1.0
	PitchHalfWidth  = 0.42
	GoalHalfWidth   = 0.044
)

// Kinematics per step.
const (
	WalkSpeed        = 0.01
	SprintSpeed      = 0.015
	DribbleSpeed     = 0.008 // dribbling trades speed for control
	PlayerDamping    = 0.5
	DriftSpeed       = 0.006
	KeeperSpeed      = 0.008
	BallFriction     = 0.96
	BallGravity      = 0.01
	BallCarryOffset  = 0.012
	PossessionRadius = 0.025
	ControlSpeed     = 0.04 // faster balls cannot be trapped
	TackleRadius     = 0.015
	SlideRadius      = 0.04
	TackleChance     = 0.15
	SlideChance      = 0.6
	ShotSpeed        = 0.06
	ShortPassSpeed   = 0.035
	LongPassSpeed    = 0.05
	HighPassLift     = 0.04
	MaxPlayerReach   = 1.1
	KickCooldown     = 5 // steps before a kicker may trap its own ball
)
