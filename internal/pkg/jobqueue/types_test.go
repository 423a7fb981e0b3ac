package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycleTransitions(t *testing.T) {
	job := &Job{
		ID:         "test-job",
		Type:       JobTypeExpirySweep,
		Status:     JobStatusPending,
		MaxRetries: 2,
	}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("database unavailable")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("database unavailable")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable(), "retry budget exhausted")

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
}

func TestExpirySweepPayloadRoundTrip(t *testing.T) {
	payload := ExpirySweepJobPayload{BatchLimit: 50}

	restored, err := ExpirySweepJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, 50, restored.BatchLimit)
}

func TestLogCleanupPayloadDefaults(t *testing.T) {
	// An empty payload map must parse and leave the zero values for the
	// processor to replace with defaults.
	restored, err := LogCleanupJobPayloadFromMap(map[string]interface{}{})
	require.NoError(t, err)
	assert.Zero(t, restored.RetentionDays)
	assert.Zero(t, restored.BatchLimit)
}
