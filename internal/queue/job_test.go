package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNewPurgeJob(t *testing.T) {
	t.Parallel()

	notAfter := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	job := NewPurgeJob("owner-1", notAfter)

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeAccountPurge {
		t.Errorf("Expected job type to be %s, got %s", JobTypeAccountPurge, job.Type)
	}
	if job.OwnerID != "owner-1" {
		t.Errorf("Expected owner ID to be owner-1, got %s", job.OwnerID)
	}
	if job.NotAfter == nil || !job.NotAfter.Equal(notAfter) {
		t.Errorf("Expected NotAfter %v, got %v", notAfter, job.NotAfter)
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		job  *Job
		want bool
	}{
		{
			name: "no time constraints",
			job:  &Job{ID: uuid.New(), Type: JobTypeAccountPurge},
			want: true,
		},
		{
			name: "not before in past",
			job:  &Job{ID: uuid.New(), Type: JobTypeAccountPurge, NotBefore: timePtr(now.Add(-time.Hour))},
			want: true,
		},
		{
			name: "not before in future",
			job:  &Job{ID: uuid.New(), Type: JobTypeAccountPurge, NotBefore: timePtr(now.Add(time.Hour))},
			want: false,
		},
		{
			name: "not after in future",
			job:  &Job{ID: uuid.New(), Type: JobTypeAccountPurge, NotAfter: timePtr(now.Add(time.Hour))},
			want: true,
		},
		{
			name: "not after in past",
			job:  &Job{ID: uuid.New(), Type: JobTypeAccountPurge, NotAfter: timePtr(now.Add(-time.Hour))},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.ShouldProcess(now); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	if (&Job{}).IsExpired(now) {
		t.Error("job without NotAfter should never expire")
	}
	if (&Job{NotAfter: timePtr(now)}).IsExpired(now) {
		t.Error("job should not be expired exactly at NotAfter")
	}
	if !(&Job{NotAfter: timePtr(now.Add(-time.Second))}).IsExpired(now) {
		t.Error("job should be expired after NotAfter")
	}
}

func TestJob_JSONWireFormat(t *testing.T) {
	t.Parallel()

	job := NewPurgeJob("owner-1", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	raw, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fields["type"] != "account_purge" || fields["owner_id"] != "owner-1" {
		t.Errorf("unexpected wire fields %v", fields)
	}
	if _, ok := fields["not_before"]; ok {
		t.Error("unset not_before should be omitted")
	}
}
