package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMaxEnvsReached       = errors.New("maximum environments reached")
	ErrEnvNotFound          = errors.New("environment not found")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidConfig        = errors.New("invalid server configuration")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNoEventBus           = errors.New("server has no event bus")
)
