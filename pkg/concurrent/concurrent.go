// Package concurrent holds small errgroup helpers for fanning work out over
// a slice while keeping results in input order.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every element in its own goroutine, at most limit
// at a time (limit <= 0 means unbounded). The context passed to action is
// cancelled as soon as one call fails, and the first error is returned.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(ctx context.Context, i int, v T) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, v := range items {
		g.Go(func() error {
			return action(ctx, i, v)
		})
	}
	return g.Wait()
}

// Map applies mapFn to every element concurrently and returns the results in
// input order. On error the partial results are discarded.
func Map[T, R any](ctx context.Context, items []T, limit int, mapFn func(ctx context.Context, i int, v T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	err := ForEach(ctx, items, limit, func(ctx context.Context, i int, v T) error {
		r, err := mapFn(ctx, i, v)
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
