package models

import (
	"math"
	"time"
)

// AccountStatus is the stored value of the accountStatus field
type AccountStatus string

const (
	AccountStatusActive               AccountStatus = "active"
	AccountStatusScheduledForDeletion AccountStatus = "scheduled_for_deletion"
)

// DeletionGracePeriod is the time between scheduling deletion and erasure
const DeletionGracePeriod = 30 * 24 * time.Hour

// AccountState is either Active or ScheduledForDeletion
type AccountState interface {
	Status() AccountStatus
	isAccountState()
}

// Active is the state of an account that is not scheduled for deletion
type Active struct{}

// Status implements AccountState
func (Active) Status() AccountStatus { return AccountStatusActive }
func (Active) isAccountState()       {}

// ScheduledForDeletion is the state of an account awaiting erasure
type ScheduledForDeletion struct {
	Deadline time.Time
}

// Status implements AccountState
func (ScheduledForDeletion) Status() AccountStatus { return AccountStatusScheduledForDeletion }
func (ScheduledForDeletion) isAccountState()       {}

// Account is the profile document of a user
type Account struct {
	OwnerID   string       `json:"owner_id"`
	Email     string       `json:"email,omitempty"`
	State     AccountState `json:"-"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
}

// AccountStatusView is the read-only projection of an account's lifecycle
type AccountStatusView struct {
	Status        AccountStatus `json:"status"`
	ScheduledDate *time.Time    `json:"scheduled_date"`
	DaysRemaining *int          `json:"days_remaining,omitempty"`
}

// NewAccountStatusView projects state at now
func NewAccountStatusView(state AccountState, now time.Time) AccountStatusView {
	view := AccountStatusView{Status: AccountStatusActive}
	if s, ok := state.(ScheduledForDeletion); ok {
		deadline := s.Deadline
		days := DaysRemaining(deadline, now)
		view.Status = AccountStatusScheduledForDeletion
		view.ScheduledDate = &deadline
		view.DaysRemaining = &days
	}
	return view
}

// DaysRemaining returns the whole days left until deadline, rounded up and
// never negative.
func DaysRemaining(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// IsExpired reports whether state is a deletion deadline at or before now
func IsExpired(state AccountState, now time.Time) bool {
	s, ok := state.(ScheduledForDeletion)
	return ok && !s.Deadline.After(now)
}
