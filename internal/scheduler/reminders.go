package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tkaster/sentrypay/internal/payments"
)

// DefaultReminderInterval between upcoming-payment scans.
const DefaultReminderInterval = 24 * time.Hour

// ReminderNotifier delivers upcoming-payment reminders.
type ReminderNotifier interface {
	PaymentReminder(ctx context.Context, p *payments.ScheduledPayment) error
}

// ReminderTimer periodically scans for payments due within the next day and
// emits reminders. Best effort: a failed reminder is logged and dropped,
// and never touches the execution path.
type ReminderTimer struct {
	store    payments.Store
	notifier ReminderNotifier
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewReminderTimer creates a reminder timer with a 24h scan window.
func NewReminderTimer(store payments.Store, notifier ReminderNotifier, logger *slog.Logger) *ReminderTimer {
	return &ReminderTimer{
		store:    store,
		notifier: notifier,
		interval: DefaultReminderInterval,
		window:   24 * time.Hour,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// WithInterval overrides the scan cadence.
func (t *ReminderTimer) WithInterval(d time.Duration) *ReminderTimer {
	if d > 0 {
		t.interval = d
	}
	return t
}

// Running reports whether the timer loop is actively running.
func (t *ReminderTimer) Running() bool {
	return t.running.Load()
}

// Start begins the reminder loop. Call in a goroutine.
func (t *ReminderTimer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeScan(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *ReminderTimer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *ReminderTimer) safeScan(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in reminder scan", "panic", fmt.Sprint(r))
		}
	}()
	t.Scan(ctx)
}

// Scan emits reminders for payments due within the window. Exported for
// tests and operational tooling.
func (t *ReminderTimer) Scan(ctx context.Context) {
	if t.notifier == nil {
		return
	}

	now := time.Now()
	upcoming, err := t.store.ListDueWithin(ctx, now, now.Add(t.window), 200)
	if err != nil {
		t.logger.Warn("failed to list upcoming payments", "error", err)
		return
	}

	for _, p := range upcoming {
		if err := t.notifier.PaymentReminder(ctx, p); err != nil {
			t.logger.Warn("failed to send payment reminder",
				"payment", p.ID, "user", p.UserID, "error", err)
			continue
		}
		remindersTotal.Inc()
	}
}
