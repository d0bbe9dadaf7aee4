package env

import "errors"

var (
	ErrNotReset      = errors.New("environment must be reset before stepping")
	ErrEpisodeOver   = errors.New("episode is over, reset the environment")
	ErrBadAction     = errors.New("invalid action")
	ErrInvalidConfig = errors.New("invalid environment configuration")
	ErrUnknownAgent  = errors.New("unknown agent")
)
