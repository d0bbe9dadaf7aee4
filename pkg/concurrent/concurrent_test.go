package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapKeepsOrder(t *testing.T) {
	in := []int{5, 3, 8, 1, 9}
	out, err := Map(context.Background(), in, 2, func(_ context.Context, i, v int) (int, error) {
		return v*v + i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{25, 10, 66, 4, 85}, out)
}

func TestForEachLimit(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ForEach(context.Background(), make([]struct{}, 6), 2, func(context.Context, int, struct{}) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		})
	}()
	close(release)
	require.NoError(t, <-done)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), []int{0, 1, 2}, 0, func(ctx context.Context, i int, _ int) error {
		if i == 1 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, boom)

	_, err = Map(context.Background(), []int{1}, 0, func(context.Context, int, int) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
}
