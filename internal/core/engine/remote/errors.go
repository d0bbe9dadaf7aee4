package remote

import (
	"errors"
	"fmt"
)

var (
	ErrProtocol          = errors.New("engine protocol violation")
	ErrUnsupportedScheme = errors.New("unsupported engine address scheme")
)

// Error is a failure reported by the remote side. It unwraps to the engine
// sentinel matching its code, so errors.Is works across the wire.
type Error struct {
	Op      Op
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote engine %s: %s (%s)", e.Op, e.Message, e.Code)
}

func (e *Error) Unwrap() error { return sentinelOf(e.Code) }
