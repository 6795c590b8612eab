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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3, 10)

	var done atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func() { done.Add(1) }))
	}
	pool.Close()

	assert.Equal(t, int32(20), done.Load())
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, 10)

	var inflight, peak atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(func() {
			cur := inflight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inflight.Add(-1)
		}))
	}
	pool.Close()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, 0)

	cancel()
	// A submit after cancellation must fail rather than block forever
	time.Sleep(10 * time.Millisecond)
	err := pool.Submit(func() {})

	assert.ErrorIs(t, err, context.Canceled)
	pool.Close()
}

func TestWorkerPoolDrainsQueueAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1, 5)

	// One slow task occupies the only worker while two more queue up behind
	// it. Cancelling mid-task must not strand the queued tasks: anyone
	// counting completions would wait forever otherwise.
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(3)
	require.NoError(t, pool.Submit(func() { defer wg.Done(); <-release }))
	require.NoError(t, pool.Submit(func() { wg.Done() }))
	require.NoError(t, pool.Submit(func() { wg.Done() }))

	cancel()
	close(release)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued tasks never ran after cancellation")
	}
	pool.Close()
}
