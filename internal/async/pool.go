// Package async runs independent per-document tasks on a bounded pool.
package async

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task processes item i. Tasks must not share mutable state; failures are
// encoded in R rather than returned.
type Task[T, R any] func(ctx context.Context, i int, item T) R

type config struct {
	workers int
	timeout time.Duration
	onDone  func(done, total int)
}

type Option func(*config)

// WithWorkers bounds concurrency. Values below 1 select runtime.NumCPU.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithTaskTimeout bounds each task with its own deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProgress is called after every finished task. Calls are serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(c *config) {
		c.onDone = fn
	}
}

// Map runs task over items and returns results in input order, whatever the
// completion order. It stops scheduling new tasks once ctx is done and then
// returns ctx's error alongside the results gathered so far.
func Map[T, R any](ctx context.Context, items []T, task Task[T, R], opts ...Option) ([]R, error) {
	cfg := config{workers: runtime.NumCPU()}
	for _, o := range opts {
		o(&cfg)
	}

	results := make([]R, len(items))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tctx := gctx
			if cfg.timeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(gctx, cfg.timeout)
				defer cancel()
			}
			results[i] = task(tctx, i, item)

			if cfg.onDone != nil {
				mu.Lock()
				done++
				cfg.onDone(done, len(items))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
