package jobqueue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusConstants(t *testing.T) {
	assert.Equal(t, "pending", string(JobStatusPending))
	assert.Equal(t, "processing", string(JobStatusProcessing))
	assert.Equal(t, "completed", string(JobStatusCompleted))
	assert.Equal(t, "failed", string(JobStatusFailed))
	assert.Equal(t, "retrying", string(JobStatusRetrying))
	assert.Equal(t, "poster_generation", string(JobTypePosterGeneration))
}

// TestJob_BasicMethods tests the status transition helpers
func TestJob_BasicMethods(t *testing.T) {
	job := &Job{
		Status:     JobStatusFailed,
		RetryCount: 1,
		MaxRetries: 3,
	}

	assert.True(t, job.IsRetryable())

	job.RetryCount = 3
	assert.False(t, job.IsRetryable())

	beforeTime := time.Now()

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)
	assert.True(t, job.UpdatedAt.After(beforeTime))

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)

	job.MarkAsFailed("test error")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "test error", job.ErrorMsg)
	assert.Equal(t, 4, job.RetryCount)

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)
}

func TestPosterGenerationJobPayload_Serialization(t *testing.T) {
	payload := PosterGenerationJobPayload{
		PosterID:  123,
		AccountID: 7,
	}

	data := payload.ToMap()
	expected := map[string]interface{}{
		"poster_id":  uint(123),
		"account_id": uint(7),
	}
	assert.Equal(t, expected, data)

	result, err := PosterGenerationJobPayloadFromMap(data)
	require.NoError(t, err)
	assert.Equal(t, &payload, result)
}

func TestPosterGenerationJobPayloadFromMapError(t *testing.T) {
	invalidData := map[string]interface{}{
		"invalid": make(chan int), // Channels can't be marshaled to JSON
	}

	payload, err := PosterGenerationJobPayloadFromMap(invalidData)
	assert.Error(t, err)
	assert.Nil(t, payload)
}

// TestJobSerialization tests full job JSON round trips
func TestJobSerialization(t *testing.T) {
	now := time.Now()
	job := &Job{
		ID:         "test-job-123",
		Type:       JobTypePosterGeneration,
		Status:     JobStatusPending,
		Payload:    map[string]interface{}{"poster_id": float64(9)},
		CreatedAt:  now,
		UpdatedAt:  now,
		RetryCount: 0,
		MaxRetries: 3,
	}

	jsonData, err := json.Marshal(job)
	require.NoError(t, err)

	var result Job
	err = json.Unmarshal(jsonData, &result)
	require.NoError(t, err)

	assert.Equal(t, job.ID, result.ID)
	assert.Equal(t, job.Type, result.Type)
	assert.Equal(t, job.Status, result.Status)
	assert.Equal(t, job.Payload, result.Payload)
	assert.Equal(t, job.RetryCount, result.RetryCount)
	assert.Equal(t, job.MaxRetries, result.MaxRetries)
}
