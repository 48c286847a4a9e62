package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeAccountPurge erases one account whose deletion deadline passed
	JobTypeAccountPurge JobType = "account_purge"
)

// Job represents a job in the queue
type Job struct {
	ID        uuid.UUID  `json:"id"`
	Type      JobType    `json:"type"`
	OwnerID   string     `json:"owner_id"`
	NotBefore *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter  *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt time.Time  `json:"created_at"`
}

// NewJob creates a new job
func NewJob(jobType JobType, ownerID string) *Job {
	return &Job{
		ID:        uuid.New(),
		Type:      jobType,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
}

// NewPurgeJob creates an account purge job that expires at notAfter, when
// the next sweep takes over.
func NewPurgeJob(ownerID string, notAfter time.Time) *Job {
	job := NewJob(JobTypeAccountPurge, ownerID)
	job.NotAfter = &notAfter
	return job
}

// ShouldProcess checks if the job should be processed at now
func (j *Job) ShouldProcess(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired(now)
}

// IsExpired checks if the job has expired at now
func (j *Job) IsExpired(now time.Time) bool {
	if j.NotAfter == nil {
		return false
	}
	return now.After(*j.NotAfter)
}
