package task

import (
	"context"

	"dlvideo/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many blocking probe/fetch/transcode jobs run at once so
// the request-handling path stays responsive.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a worker pool of the given size.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit runs fn as a detached background job. The caller returns
// immediately; fn waits for a pool slot before doing any work.
func (p *Pool) Submit(id string, fn func(ctx context.Context)) {
	go func() {
		ctx := context.Background()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			logger.Logger.Error("Worker pool acquire failed", zap.String("task_id", id), zap.Error(err))
			return
		}
		defer p.sem.Release(1)
		fn(ctx)
	}()
}

// Do runs fn inline once a pool slot is free, honoring the caller's context
// while waiting. Used for blocking work tied to a live request, like probes.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}
