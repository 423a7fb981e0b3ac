package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeExpirySweep JobType = "subscription_expiry_sweep"
	JobTypeLogCleanup  JobType = "webhook_log_cleanup"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ExpirySweepJobPayload contains the payload for subscription expiry sweeps
type ExpirySweepJobPayload struct {
	BatchLimit int `json:"batch_limit"` // max subscriptions downgraded per run
}

// ToMap converts the payload to a map for storage
func (p ExpirySweepJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"batch_limit": p.BatchLimit,
	}
}

// FromMap creates a payload from a map
func ExpirySweepJobPayloadFromMap(data map[string]interface{}) (*ExpirySweepJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ExpirySweepJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// LogCleanupJobPayload contains the payload for webhook log retention cleanup
type LogCleanupJobPayload struct {
	RetentionDays int `json:"retention_days"`
	BatchLimit    int `json:"batch_limit"`
}

// ToMap converts the payload to a map for storage
func (p LogCleanupJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"retention_days": p.RetentionDays,
		"batch_limit":    p.BatchLimit,
	}
}

// FromMap creates a payload from a map
func LogCleanupJobPayloadFromMap(data map[string]interface{}) (*LogCleanupJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload LogCleanupJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
