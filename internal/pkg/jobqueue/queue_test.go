package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.workerPool)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	// Test Redis key constants
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)

	// Test job settings constants
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestSetPosterHandler(t *testing.T) {
	queue := NewQueue(1)
	assert.Nil(t, queue.getPosterHandler())

	handler := &nopPosterHandler{}
	queue.SetPosterHandler(handler)
	assert.Same(t, handler, queue.getPosterHandler())
}

// Stop must not hold the queue mutex while waiting for workers: a job in
// flight reads the poster handler under the same mutex, and both sides would
// block forever.
func TestStopWithHandlerReadInFlight(t *testing.T) {
	queue := NewQueue(2)
	queue.SetPosterHandler(&nopPosterHandler{})
	queue.Start()

	// Simulate a worker mid-job: tracked by the queue's WaitGroup and about
	// to read the handler, exactly as processJob does.
	inFlight := make(chan struct{})
	queue.wg.Add(1)
	go func() {
		defer queue.wg.Done()
		close(inFlight)
		time.Sleep(100 * time.Millisecond)
		queue.getPosterHandler()
	}()
	<-inFlight

	stopped := make(chan struct{})
	go func() {
		queue.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("Stop did not return while a worker was reading the handler")
	}
	assert.False(t, queue.running)
}

type nopPosterHandler struct{}

func (nopPosterHandler) Process(_ context.Context, _ *PosterGenerationJobPayload) error {
	return nil
}

func (nopPosterHandler) OnPermanentFailure(_ context.Context, _ *PosterGenerationJobPayload, _ string) {
}
