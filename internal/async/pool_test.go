package async

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	task := func(_ context.Context, i int, n int) string {
		// later items finish first
		time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
		return string(rune('a' + n))
	}

	for _, workers := range []int{1, 3, 16} {
		got, err := Map(context.Background(), items, task, WithWorkers(workers))
		require.NoError(t, err)
		assert.Equal(t, []string{"f", "b", "e", "c", "d"}, got, "workers=%d", workers)
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var running, peak int32
	items := make([]int, 20)
	_, err := Map(context.Background(), items, func(context.Context, int, int) struct{} {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}
	}, WithWorkers(3))
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestMap_Progress(t *testing.T) {
	var calls []int
	_, err := Map(context.Background(), []int{1, 2, 3}, func(_ context.Context, _ int, n int) int { return n },
		WithWorkers(2),
		WithProgress(func(done, total int) {
			assert.Equal(t, 3, total)
			calls = append(calls, done)
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestMap_TaskTimeout(t *testing.T) {
	got, err := Map(context.Background(), []int{1}, func(ctx context.Context, _ int, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTaskTimeout(5*time.Millisecond))
	require.NoError(t, err)
	assert.ErrorIs(t, got[0], context.DeadlineExceeded)
}

func TestMap_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	_, err := Map(ctx, []int{1, 2, 3}, func(context.Context, int, int) int {
		atomic.AddInt32(&ran, 1)
		return 0
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestMap_Empty(t *testing.T) {
	got, err := Map(context.Background(), []string(nil), func(context.Context, int, string) int { return 1 })
	require.NoError(t, err)
	assert.Empty(t, got)
}
