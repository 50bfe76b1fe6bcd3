// Package payments holds the scheduled-payment data model and store.
//
// Lifecycle:
//
//	scheduled → processing → completed | failed
//	scheduled → cancelled
//
// The scheduled→processing transition (the claim) and scheduled→cancelled
// are conditional updates: they succeed only if the row is still in the
// scheduled state, which is the concurrency guard between overlapping
// scheduler ticks and between the scheduler and user cancellation.
// Payments are never deleted, only moved to a terminal state.
package payments

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("payments: not found")
	ErrConflict      = errors.New("payments: payment is not in the required state")
	ErrInvalidAmount = errors.New("payments: invalid amount")
)

// Status represents the lifecycle state of a scheduled payment.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing" // claimed by a scheduler tick
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Frequency is the recurrence cadence of a payment series.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Recurrence describes how a payment repeats. Interval multiplies the
// frequency step (interval 2 + weekly = every two weeks); zero means 1.
type Recurrence struct {
	Enabled   bool       `json:"enabled"`
	Frequency Frequency  `json:"frequency,omitempty"`
	Interval  int        `json:"interval,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// ScheduledPayment is one payment occurrence. A recurring series is a chain
// of occurrences linked by ParentID, each created when its predecessor
// completes.
type ScheduledPayment struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Payee         string     `json:"payee"`
	Amount        string     `json:"amount"` // decimal string, 6dp
	Currency      string     `json:"currency"`
	Description   string     `json:"description,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	ScheduledDate time.Time  `json:"scheduledDate"`
	Recurring     Recurrence `json:"recurring"`
	ParentID      string     `json:"parentId,omitempty"` // predecessor in a recurring series
	Status        Status     `json:"status"`
	ExecutedAt    *time.Time `json:"executedAt,omitempty"`
	TxHash        string     `json:"txHash,omitempty"`
	ExplorerURL   string     `json:"explorerUrl,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// IsTerminal returns true if the payment is in a final state.
func (p *ScheduledPayment) IsTerminal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Store persists scheduled payments.
//
// Claim and CancelScheduled are conditional transitions: they move the
// payment out of the scheduled state only if it is still scheduled at the
// moment of the write, and return ErrConflict otherwise. Exactly one of any
// set of concurrent Claim calls for the same payment succeeds.
type Store interface {
	Create(ctx context.Context, p *ScheduledPayment) error
	Get(ctx context.Context, id string) (*ScheduledPayment, error)
	Update(ctx context.Context, p *ScheduledPayment) error

	// Claim transitions scheduled→processing.
	Claim(ctx context.Context, id string) (*ScheduledPayment, error)
	// CancelScheduled transitions scheduled→cancelled.
	CancelScheduled(ctx context.Context, id string) (*ScheduledPayment, error)

	// ListDue returns scheduled payments with scheduledDate <= now,
	// oldest first, bounded by limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*ScheduledPayment, error)
	// ListDueWithin returns scheduled payments falling due in (from, until],
	// used by the reminder task.
	ListDueWithin(ctx context.Context, from, until time.Time, limit int) ([]*ScheduledPayment, error)
	// ListByUser returns a user's payments, newest first. An empty status
	// matches all states.
	ListByUser(ctx context.Context, userID string, status Status, limit int) ([]*ScheduledPayment, error)
}

// ScheduleRequest contains the parameters for scheduling a payment.
type ScheduleRequest struct {
	UserID        string     `json:"userId" binding:"required"`
	Payee         string     `json:"payee" binding:"required"`
	Amount        string     `json:"amount" binding:"required"`
	Currency      string     `json:"currency"`
	Description   string     `json:"description"`
	Tags          []string   `json:"tags"`
	ScheduledDate time.Time  `json:"scheduledDate" binding:"required"`
	Recurring     Recurrence `json:"recurring"`
}
