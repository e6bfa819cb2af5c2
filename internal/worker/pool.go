// internal/worker/pool.go
package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks with bounded concurrency. The first task error cancels
// the pool's context; Wait reports it.
type Pool struct {
	ctx   context.Context
	group *errgroup.Group
}

// NewPool creates a new worker pool with the specified number of workers.
// A size of zero or less uses one worker per CPU.
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(size)
	return &Pool{ctx: gctx, group: g}
}

// Context is cancelled when the parent is or when a task fails
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Submit blocks until a worker is free and runs task on it. Tasks submitted
// after cancellation are not started.
func (p *Pool) Submit(task func(ctx context.Context) error) {
	p.group.Go(func() error {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		return task(p.ctx)
	})
}

// Wait waits for all tasks to complete and returns the first error
func (p *Pool) Wait() error {
	return p.group.Wait()
}
