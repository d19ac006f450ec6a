// Package pool provides a fixed-size goroutine pool for the per-scene network
// fetches. Scenes are acquisition-independent, so their fetches may overlap,
// but a stage only completes once every task has finished and a single
// failure aborts the stage for the whole run.
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Task is one unit of fetch work.
type Task func(ctx context.Context) error

// FetchPool runs batches of tasks with bounded parallelism.
type FetchPool struct {
	size   int
	logger *zap.Logger
}

// New creates a pool of the given size. Sizes below one are clamped to one.
func New(size int, logger *zap.Logger) *FetchPool {
	if size < 1 {
		size = 1
	}
	return &FetchPool{size: size, logger: logger}
}

// Run executes all tasks across the pool and blocks until they finish. The
// first task error cancels the remaining tasks and is returned; no partial
// result set is accepted downstream.
func (p *FetchPool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskCh := make(chan Task)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	// Recovery is per task so a panic fails the batch without killing the
	// worker; a dead worker would leave queued sends blocked forever.
	runTask := func(id int, task Task) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Fetch task panic recovered",
					zap.Int("worker_id", id),
					zap.Any("panic", r),
				)
				fail(fmt.Errorf("fetch task panic: %v", r))
			}
		}()
		if err := task(ctx); err != nil {
			fail(err)
		}
	}

	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for task := range taskCh {
				if ctx.Err() != nil {
					continue // drain without running once cancelled
				}
				runTask(id, task)
			}
		}(i)
	}

send:
	for _, task := range tasks {
		select {
		case taskCh <- task:
		case <-ctx.Done():
			break send
		}
	}
	close(taskCh)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
