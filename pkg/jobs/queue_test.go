package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	processed := make([]string, 0)
	done := make(chan struct{}, 1)

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		processed = append(processed, job.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "demo"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"job-1"}, processed)
}

func TestQueueRetriesFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{}, 1)

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts++
		current := attempts
		mu.Unlock()
		if current < 2 {
			return fmt.Errorf("transient")
		}
		done <- struct{}{}
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "job-1"})
	require.Error(t, err)
}
