// Package worker runs background jobs, primarily archive writes, off the
// refresh path so slow persistence never delays publishing a grid.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Job is one unit of background work. Jobs report failure through their
// return value; the pool logs and moves on.
type Job func(ctx context.Context) error

type WorkerPool struct {
	numWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
}

func NewWorkerPool(numWorkers int, bufferSize int) *WorkerPool {
	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan Job, bufferSize),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := job(ctx); err != nil {
				slog.Error("background job failed", "worker", id, "error", err)
			}
		}
	}
}

// Submit queues a job. It blocks when the buffer is full.
func (wp *WorkerPool) Submit(job Job) {
	wp.jobs <- job
}

// TrySubmit queues a job without blocking and reports whether it was
// accepted.
func (wp *WorkerPool) TrySubmit(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}
