// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linkpatrol

import (
	"context"
	"sync"
)

// WorkerPool runs scan tasks on a fixed number of goroutines. Submit blocks
// when the queue is full, so a scan can never create unbounded work.
type WorkerPool struct {
	maxWorkers int
	workQueue  chan func()
	wg         sync.WaitGroup
	ctx        context.Context
}

// NewWorkerPool starts maxWorkers goroutines pulling tasks from a queue of
// the given size. Cancelling ctx stops new submissions; already queued tasks
// still run, so callers waiting on task completion are never stranded.
func NewWorkerPool(ctx context.Context, maxWorkers, queueSize int) *WorkerPool {
	wp := &WorkerPool{
		maxWorkers: maxWorkers,
		workQueue:  make(chan func(), queueSize),
		ctx:        ctx,
	}

	for i := 0; i < maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case work, ok := <-wp.workQueue:
			if !ok {
				return
			}
			work()

		case <-wp.ctx.Done():
			// Drain the queue rather than abandon it: queued tasks check
			// cancellation themselves and return quickly, and submitters
			// counting completions must see every task run. The range ends
			// when Close closes the queue.
			for work := range wp.workQueue {
				work()
			}
			return
		}
	}
}

// Submit queues a task, blocking for backpressure when the queue is full.
// It returns the context error if the pool's context was cancelled.
func (wp *WorkerPool) Submit(work func()) error {
	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	default:
	}

	select {
	case wp.workQueue <- work:
		return nil

	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Close stops accepting work and waits for in-flight tasks to finish
func (wp *WorkerPool) Close() {
	close(wp.workQueue)
	wp.wg.Wait()
}
