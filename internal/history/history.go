// Package history records executed payment outcomes per user.
//
// History rows are the raw material for risk profiling: the engine derives a
// fresh behavioral profile from the most recent records on every check, and
// the scheduler appends one row per attempted occurrence. Rows are append-only.
package history

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history: not found")

// Outcome of one executed payment.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Record is one executed (or attempted) payment.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PaymentID string    `json:"paymentId,omitempty"`
	Payee     string    `json:"payee"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	TxHash    string    `json:"txHash,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists history records.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	// ListRecent returns the newest records for a user, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]*Record, error)
	// ListBefore returns records strictly older than the (before, beforeID)
	// position, newest first. Ties on created_at break on the record ID so a
	// cursor never skips or repeats rows.
	ListBefore(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Record, error)
	// ListSince returns records created at or after the given instant, newest first.
	ListSince(ctx context.Context, userID string, since time.Time) ([]*Record, error)
	// CountSince returns the number of records created at or after the given instant.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}
