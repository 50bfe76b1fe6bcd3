package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/tkaster/sentrypay/internal/idgen"
	"github.com/tkaster/sentrypay/internal/logging"
	"github.com/tkaster/sentrypay/internal/money"
	"github.com/tkaster/sentrypay/internal/traces"
	"github.com/tkaster/sentrypay/internal/validation"
)

// DefaultCurrency is assumed when a schedule request omits the currency.
const DefaultCurrency = "USDC"

// Service implements scheduled-payment business logic.
type Service struct {
	store Store
}

// NewService creates a new scheduled-payment service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Schedule validates and persists a new scheduled payment.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (_ *ScheduledPayment, retErr error) {
	ctx, span := traces.StartSpan(ctx, "payments.Schedule",
		traces.UserID(req.UserID),
		traces.Amount(req.Amount),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	amt, ok := money.Parse(req.Amount)
	if !ok || amt.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, req.Amount)
	}
	if strings.TrimSpace(req.Payee) == "" {
		return nil, fmt.Errorf("payments: payee is required")
	}
	if req.ScheduledDate.IsZero() {
		return nil, fmt.Errorf("payments: scheduledDate is required")
	}
	if req.Recurring.Enabled {
		if !validation.IsValidFrequency(string(req.Recurring.Frequency)) {
			return nil, fmt.Errorf("payments: invalid frequency %q", req.Recurring.Frequency)
		}
		req.Recurring.Frequency = Frequency(strings.ToLower(string(req.Recurring.Frequency)))
		if req.Recurring.Interval <= 0 {
			req.Recurring.Interval = 1
		}
		if req.Recurring.EndDate != nil && req.Recurring.EndDate.Before(req.ScheduledDate) {
			return nil, fmt.Errorf("payments: endDate precedes scheduledDate")
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	now := time.Now()
	p := &ScheduledPayment{
		ID:            idgen.WithPrefix("pay_"),
		UserID:        req.UserID,
		Payee:         req.Payee,
		Amount:        money.Format(amt),
		Currency:      currency,
		Description:   req.Description,
		Tags:          req.Tags,
		ScheduledDate: req.ScheduledDate,
		Recurring:     req.Recurring,
		Status:        StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create scheduled payment: %w", err)
	}

	paymentsScheduled.Inc()
	logging.L(ctx).Info("payment scheduled",
		"payment", p.ID, "user", p.UserID, "amount", p.Amount,
		"due", p.ScheduledDate, "recurring", p.Recurring.Enabled)
	return p, nil
}

// Cancel cancels a payment that has not yet been claimed. If a scheduler
// tick already claimed it, the conditional update loses and the caller gets
// ErrConflict.
func (s *Service) Cancel(ctx context.Context, id string) (_ *ScheduledPayment, retErr error) {
	ctx, span := traces.StartSpan(ctx, "payments.Cancel", traces.PaymentID(id))
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	p, err := s.store.CancelScheduled(ctx, id)
	if err != nil {
		return nil, err
	}

	paymentsCancelled.Inc()
	logging.L(ctx).Info("payment cancelled", "payment", p.ID, "user", p.UserID)
	return p, nil
}

// Get returns a payment by ID.
func (s *Service) Get(ctx context.Context, id string) (*ScheduledPayment, error) {
	return s.store.Get(ctx, id)
}

// ListByUser returns a user's payments, optionally filtered by status.
func (s *Service) ListByUser(ctx context.Context, userID string, status Status, limit int) ([]*ScheduledPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByUser(ctx, userID, status, limit)
}

// ListDue returns scheduled payments due at or before now.
func (s *Service) ListDue(ctx context.Context, now time.Time, limit int) ([]*ScheduledPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListDue(ctx, now, limit)
}

// Successor builds the next occurrence of a recurring payment. It returns
// nil when the payment is not recurring or the next occurrence would fall
// past the series end date; the series is finished in both cases.
func Successor(p *ScheduledPayment) *ScheduledPayment {
	if !p.Recurring.Enabled {
		return nil
	}
	next := NextOccurrence(p.ScheduledDate, p.Recurring.Frequency, p.Recurring.Interval)
	if !WithinBound(next, p.Recurring.EndDate) {
		return nil
	}
	now := time.Now()
	return &ScheduledPayment{
		ID:            idgen.WithPrefix("pay_"),
		UserID:        p.UserID,
		Payee:         p.Payee,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Description:   p.Description,
		Tags:          p.Tags,
		ScheduledDate: next,
		Recurring:     p.Recurring,
		ParentID:      p.ID,
		Status:        StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
