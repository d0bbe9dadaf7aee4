// Package vector steps several environments side by side. Each environment is
// driven by its own goroutine; environments never share state.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/pkg/concurrent"
)

var ErrNoEnvs = errors.New("vector env needs at least one environment")

// Result holds one StepResult per environment. When an environment finished
// on this step, Observations already belong to its next episode and Final
// keeps the last observations of the finished one.
type Result struct {
	Results []env.StepResult
	Final   [][][]float32
}

// Env is a batch of environments stepped concurrently. Not safe for
// concurrent use itself.
type Env struct {
	envs  []*env.Env
	limit int

	// used by Make only
	envOpts []env.Option
	prefix  string
}

type Option func(*Env)

// WithConcurrency bounds the number of environments stepped at once.
func WithConcurrency(n int) Option { return func(v *Env) { v.limit = n } }

// WithEnvOptions passes opts to every environment built by Make.
func WithEnvOptions(opts ...env.Option) Option {
	return func(v *Env) { v.envOpts = append(v.envOpts, opts...) }
}

// WithInstancePrefix names the environments built by Make prefix-0,
// prefix-1 and so on. Without it the prefix is a fresh uuid.
func WithInstancePrefix(prefix string) Option { return func(v *Env) { v.prefix = prefix } }

func New(envs []*env.Env, opts ...Option) (*Env, error) {
	if len(envs) == 0 {
		return nil, ErrNoEnvs
	}
	v := &Env{envs: envs}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Make builds n environments from the same configuration. Every
// environment gets its own instance ID, overriding any env.WithInstanceID
// passed through WithEnvOptions.
func Make(ctx context.Context, cfg env.Config, n int, opts ...Option) (*Env, error) {
	v := &Env{}
	for _, opt := range opts {
		opt(v)
	}
	if n < 1 {
		return nil, ErrNoEnvs
	}
	if v.prefix == "" {
		v.prefix = uuid.NewString()
	}

	for i := range n {
		envOpts := append(v.envOpts[:len(v.envOpts):len(v.envOpts)], env.WithInstanceID(fmt.Sprintf("%s-%d", v.prefix, i)))
		e, err := env.Make(ctx, cfg, envOpts...)
		if err != nil {
			_ = v.Close()
			return nil, err
		}
		v.envs = append(v.envs, e)
	}
	return v, nil
}

func (v *Env) Len() int { return len(v.envs) }

// At returns environment i.
func (v *Env) At(i int) *env.Env { return v.envs[i] }

// Reset resets every environment. With a seed, environment i is seeded with
// seed+i.
func (v *Env) Reset(ctx context.Context, seed *int64) ([][][]float32, []env.Info, error) {
	type reset struct {
		obs  [][]float32
		info env.Info
	}
	out, err := concurrent.Map(ctx, v.envs, v.limit, func(ctx context.Context, i int, e *env.Env) (reset, error) {
		var s *int64
		if seed != nil {
			si := *seed + int64(i)
			s = &si
		}
		o, info, err := e.Reset(ctx, s)
		if err != nil {
			return reset{}, fmt.Errorf("env %d: %w", i, err)
		}
		return reset{o, info}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	obs := make([][][]float32, len(out))
	infos := make([]env.Info, len(out))
	for i, r := range out {
		obs[i], infos[i] = r.obs, r.info
	}
	return obs, infos, nil
}

// Step applies actions[i] to environment i. Environments that finish are
// reset right away, continuing their own RNG stream.
func (v *Env) Step(ctx context.Context, actions [][]int) (Result, error) {
	if len(actions) != len(v.envs) {
		return Result{}, fmt.Errorf("%w: %d action sets for %d environments", env.ErrBadAction, len(actions), len(v.envs))
	}
	res := Result{
		Results: make([]env.StepResult, len(v.envs)),
		Final:   make([][][]float32, len(v.envs)),
	}
	err := concurrent.ForEach(ctx, v.envs, v.limit, func(ctx context.Context, i int, e *env.Env) error {
		r, err := e.Step(ctx, actions[i])
		if err != nil {
			return fmt.Errorf("env %d: %w", i, err)
		}
		if r.Done() {
			res.Final[i] = r.Observations
			if r.Observations, _, err = e.Reset(ctx, nil); err != nil {
				return fmt.Errorf("env %d: reset: %w", i, err)
			}
		}
		res.Results[i] = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// SampleActions draws a joint action for every environment from its own RNG.
func (v *Env) SampleActions() [][]int {
	out := make([][]int, len(v.envs))
	for i, e := range v.envs {
		out[i] = e.SampleActions()
	}
	return out
}

// Close closes every environment and returns the joined errors.
func (v *Env) Close() error {
	var errs []error
	for _, e := range v.envs {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
