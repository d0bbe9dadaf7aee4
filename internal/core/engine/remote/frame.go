package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zeusync/football/internal/core/engine"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/pkg/generic"
)

// Op names the engine call carried by a request frame.
type Op string

const (
	OpOpen  Op = "open"
	OpReset Op = "reset"
	OpStep  Op = "step"
	OpClose Op = "close"
)

// Request is one call from an environment to a remote engine. Every request
// is answered by exactly one Response carrying the same ID.
type Request struct {
	ID     string          `json:"id"`
	Op     Op              `json:"op"`
	Config *engine.Config  `json:"config,omitempty"`
	Seed   int64           `json:"seed,omitempty"`
	Left   []models.Action `json:"left,omitempty"`
	Right  []models.Action `json:"right,omitempty"`
}

type Response struct {
	ID          string              `json:"id"`
	Observation *models.Observation `json:"observation,omitempty"`
	Done        bool                `json:"done,omitempty"`
	Code        string              `json:"code,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Error codes carried in Response.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidConfig  = "invalid_config"
	CodeNotReset       = "not_reset"
	CodeBadActions     = "bad_actions"
	CodeClosed         = "closed"
	CodeCapacity       = "capacity"
	CodeInternal       = "internal"
)

var codes = []struct {
	code string
	err  error
}{
	{CodeInvalidConfig, engine.ErrInvalidConfig},
	{CodeNotReset, engine.ErrNotReset},
	{CodeBadActions, engine.ErrBadActions},
	{CodeClosed, engine.ErrEngineClosed},
	{CodeCapacity, engine.ErrCapacity},
	{CodeInvalidRequest, ErrProtocol},
}

func codeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

func sentinelOf(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

var framePool = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// sendFrame encodes v as one newline-terminated JSON frame and sends it.
func sendFrame(ctx context.Context, t transport, v any) error {
	buf := framePool.Get()
	defer framePool.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return t.send(ctx, buf.Bytes())
}
