package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{MinWorkers: 2, MaxWorkers: 4, QueueDepth: 16, IdleTimeout: 50 * time.Millisecond}
}

func TestPoolRunsTasks(t *testing.T) {
	p := NewWorkerPool(testConfig(), nil)
	p.Start()
	defer p.Stop()

	var ran atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := p.Submit(Task{
			ID:      "t",
			Execute: func(ctx context.Context) error { ran.Add(1); return nil },
			Callback: func(id string, err error) {
				assert.NoError(t, err)
				wg.Done()
			},
		})
		require.True(t, ok)
	}
	wg.Wait()
	assert.Equal(t, int64(10), ran.Load())
	assert.Equal(t, int64(10), p.Stats().Completed)
}

func TestPoolReportsTaskError(t *testing.T) {
	p := NewWorkerPool(testConfig(), nil)
	p.Start()
	defer p.Stop()

	boom := errors.New("boom")
	done := make(chan error, 1)
	p.Submit(Task{
		ID:       "fail",
		Execute:  func(ctx context.Context) error { return boom },
		Callback: func(id string, err error) { done <- err },
	})
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPoolRejectsAfterStop(t *testing.T) {
	p := NewWorkerPool(testConfig(), nil)
	p.Start()
	p.Stop()
	ok := p.Submit(Task{ID: "late", Execute: func(ctx context.Context) error { return nil }})
	assert.False(t, ok)
	assert.Equal(t, int64(1), p.Stats().Rejected)
}

func TestPoolDrainsQueueOnStop(t *testing.T) {
	p := NewWorkerPool(Config{MinWorkers: 1, MaxWorkers: 1, QueueDepth: 32, IdleTimeout: time.Second}, nil)
	p.Start()

	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		require.True(t, p.Submit(Task{
			ID:      "drain",
			Execute: func(ctx context.Context) error { ran.Add(1); return nil },
		}))
	}
	p.Stop()
	assert.Equal(t, int64(20), ran.Load())
}

func TestDetectEnvironment(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "syncdal-api")
	assert.Equal(t, EnvironmentLambda, DetectEnvironment())
}
