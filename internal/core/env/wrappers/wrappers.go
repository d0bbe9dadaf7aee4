// Package wrappers layers episode bookkeeping on top of parallel
// environments. Wrappers implement Env themselves, so they stack.
package wrappers

import (
	"context"
	"errors"

	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/env/parallel"
)

// ErrResetNeeded keeps the wording Gymnasium users match on.
//
//nolint:staticcheck
var ErrResetNeeded = errors.New("Environment must be reset before stepping")

// Env is the parallel environment surface the wrappers decorate.
type Env interface {
	Reset(ctx context.Context, seed *int64) (map[string][]float32, map[string]env.Info, error)
	Step(ctx context.Context, actions map[string]int) (parallel.Result, error)
	Agents() []string
	PossibleAgents() []string
	Close() error
}

var (
	_ Env = (*parallel.Env)(nil)
	_ Env = (*OrderEnforcing)(nil)
	_ Env = (*AutoReset)(nil)
)

// OrderEnforcing rejects Step until Reset has been called once.
type OrderEnforcing struct {
	Env
	reset bool
}

func NewOrderEnforcing(e Env) *OrderEnforcing { return &OrderEnforcing{Env: e} }

func (o *OrderEnforcing) Reset(ctx context.Context, seed *int64) (map[string][]float32, map[string]env.Info, error) {
	obs, infos, err := o.Env.Reset(ctx, seed)
	if err != nil {
		return nil, nil, err
	}
	o.reset = true
	return obs, infos, nil
}

func (o *OrderEnforcing) Step(ctx context.Context, actions map[string]int) (parallel.Result, error) {
	if !o.reset {
		return parallel.Result{}, ErrResetNeeded
	}
	return o.Env.Step(ctx, actions)
}

// AutoReset starts a new episode, continuing the RNG stream, when Step is
// called after every agent finished. Wrap it in OrderEnforcing to forbid
// stepping a fresh environment.
type AutoReset struct {
	Env
	resets int
}

func NewAutoReset(e Env) *AutoReset { return &AutoReset{Env: e} }

// Resets counts the episodes started by the wrapper itself.
func (a *AutoReset) Resets() int { return a.resets }

func (a *AutoReset) Step(ctx context.Context, actions map[string]int) (parallel.Result, error) {
	if len(a.Agents()) == 0 {
		if _, _, err := a.Env.Reset(ctx, nil); err != nil {
			return parallel.Result{}, err
		}
		a.resets++
	}
	return a.Env.Step(ctx, actions)
}
