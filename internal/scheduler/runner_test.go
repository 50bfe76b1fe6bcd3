package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tkaster/sentrypay/internal/history"
	"github.com/tkaster/sentrypay/internal/ledger"
	"github.com/tkaster/sentrypay/internal/orchestrator"
	"github.com/tkaster/sentrypay/internal/payments"
	"github.com/tkaster/sentrypay/internal/risk"
)

const testPayee = "0x2222222222222222222222222222222222222222"

type fixture struct {
	runner *Runner
	store  *payments.MemoryStore
	hist   *history.MemoryStore
	svc    *payments.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store := payments.NewMemoryStore()
	hist := history.NewMemoryStore()
	engine := risk.NewEngine(hist, risk.NewMemoryStore(), logger)
	orch := orchestrator.NewService(ledger.NewSim("", logger))
	runner := NewRunner(store, hist, engine, orch, logger)

	return &fixture{
		runner: runner,
		store:  store,
		hist:   hist,
		svc:    payments.NewService(store),
	}
}

func (f *fixture) schedule(t *testing.T, req payments.ScheduleRequest) *payments.ScheduledPayment {
	t.Helper()
	p, err := f.svc.Schedule(context.Background(), req)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	return p
}

func TestSweep_ExecutesDuePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.schedule(t, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "50",
		ScheduledDate: time.Now().Add(-time.Minute),
	})

	f.runner.Sweep(ctx)

	got, err := f.store.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != payments.StatusCompleted {
		t.Fatalf("status %s (%s), want completed", got.Status, got.FailureReason)
	}
	if got.TxHash == "" {
		t.Error("expected tx hash on completed payment")
	}
	if got.ExecutedAt == nil {
		t.Error("expected executedAt on completed payment")
	}

	recs, err := f.hist.ListRecent(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Outcome != history.OutcomeCompleted {
		t.Fatalf("expected one completed history record, got %+v", recs)
	}
	if recs[0].PaymentID != p.ID {
		t.Error("history record must reference the payment")
	}
}

func TestSweep_FuturePaymentUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.schedule(t, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "50",
		ScheduledDate: time.Now().Add(time.Hour),
	})

	f.runner.Sweep(ctx)

	got, _ := f.store.Get(ctx, p.ID)
	if got.Status != payments.StatusScheduled {
		t.Errorf("future payment status %s, want scheduled", got.Status)
	}
}

func TestSweep_RegeneratesRecurring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := time.Now().Add(-time.Minute)
	end := due.AddDate(0, 0, 10)
	p := f.schedule(t, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "20",
		ScheduledDate: due,
		Recurring: payments.Recurrence{
			Enabled: true, Frequency: payments.FrequencyWeekly, EndDate: &end,
		},
	})

	f.runner.Sweep(ctx)

	list, err := f.store.ListByUser(ctx, "user-1", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected original + successor, got %d payments", len(list))
	}

	var successor *payments.ScheduledPayment
	for _, sp := range list {
		if sp.ID != p.ID {
			successor = sp
		}
	}
	if successor == nil {
		t.Fatal("no successor found")
	}
	if successor.ParentID != p.ID {
		t.Error("successor must reference its predecessor")
	}
	if !successor.ScheduledDate.Equal(due.AddDate(0, 0, 7)) {
		t.Errorf("successor due %v, want one week after %v", successor.ScheduledDate, due)
	}
	if successor.Status != payments.StatusScheduled {
		t.Errorf("successor status %s, want scheduled", successor.Status)
	}
}

func TestSweep_FailedOccurrenceHaltsSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The payee matches the blocklist, so policy fails the only action.
	f.runner.WithAgentLimits(orchestrator.AgentLimits{Blocklist: []string{testPayee}})

	end := time.Now().AddDate(0, 1, 0)
	p := f.schedule(t, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "20",
		ScheduledDate: time.Now().Add(-time.Minute),
		Recurring: payments.Recurrence{
			Enabled: true, Frequency: payments.FrequencyWeekly, EndDate: &end,
		},
	})

	f.runner.Sweep(ctx)

	got, _ := f.store.Get(ctx, p.ID)
	if got.Status != payments.StatusFailed {
		t.Fatalf("status %s, want failed", got.Status)
	}
	if !strings.Contains(got.FailureReason, "policy violation") {
		t.Errorf("failure reason %q, want policy violation", got.FailureReason)
	}

	list, _ := f.store.ListByUser(ctx, "user-1", "", 10)
	if len(list) != 1 {
		t.Errorf("failed occurrence must not regenerate the series, got %d payments", len(list))
	}

	recs, _ := f.hist.ListRecent(ctx, "user-1", 10)
	if len(recs) != 1 || recs[0].Outcome != history.OutcomeFailed {
		t.Errorf("expected one failed history record, got %+v", recs)
	}
}

func TestSweep_ResumeAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.runner.
		WithAgentLimits(orchestrator.AgentLimits{Blocklist: []string{testPayee}}).
		WithResumeAfterFailure(true)

	end := time.Now().AddDate(0, 1, 0)
	f.schedule(t, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "20",
		ScheduledDate: time.Now().Add(-time.Minute),
		Recurring: payments.Recurrence{
			Enabled: true, Frequency: payments.FrequencyWeekly, EndDate: &end,
		},
	})

	f.runner.Sweep(ctx)

	list, _ := f.store.ListByUser(ctx, "user-1", "", 10)
	if len(list) != 2 {
		t.Errorf("with resume enabled a failed occurrence still regenerates, got %d payments", len(list))
	}
}

func TestSweep_RiskBlockFailsOccurrence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	store := payments.NewMemoryStore()
	hist := history.NewMemoryStore()
	engine := risk.NewEngine(hist, risk.NewMemoryStore(), logger).
		WithDenylist([]string{testPayee})
	orch := orchestrator.NewService(ledger.NewSim("", logger))
	runner := NewRunner(store, hist, engine, orch, logger)
	svc := payments.NewService(store)
	ctx := context.Background()

	p, err := svc.Schedule(ctx, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "50",
		ScheduledDate: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}

	runner.Sweep(ctx)

	got, _ := store.Get(ctx, p.ID)
	if got.Status != payments.StatusFailed {
		t.Fatalf("status %s, want failed", got.Status)
	}
	if !strings.Contains(got.FailureReason, "risk check failed") {
		t.Errorf("failure reason %q, want risk check failure", got.FailureReason)
	}
}

func TestProcessOne_SkipsAlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.schedule(t, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "50",
		ScheduledDate: time.Now().Add(-time.Minute),
	})

	if _, err := f.store.Claim(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	// A second tick listing the same payment loses the claim and must not
	// touch the payment.
	f.runner.processOne(ctx, p)

	got, _ := f.store.Get(ctx, p.ID)
	if got.Status != payments.StatusProcessing {
		t.Errorf("status %s, want processing (untouched by loser)", got.Status)
	}

	recs, _ := f.hist.ListRecent(ctx, "user-1", 10)
	if len(recs) != 0 {
		t.Errorf("loser must not append history, got %d records", len(recs))
	}
}

type captureNotifier struct {
	reminders []string
}

func (c *captureNotifier) PaymentReminder(_ context.Context, p *payments.ScheduledPayment) error {
	c.reminders = append(c.reminders, p.ID)
	return nil
}

func TestReminderScan(t *testing.T) {
	store := payments.NewMemoryStore()
	notifier := &captureNotifier{}
	timer := NewReminderTimer(store, notifier, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	svc := payments.NewService(store)
	soon, err := svc.Schedule(ctx, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "10",
		ScheduledDate: time.Now().Add(6 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Schedule(ctx, payments.ScheduleRequest{
		UserID: "user-1", Payee: testPayee, Amount: "10",
		ScheduledDate: time.Now().Add(72 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	timer.Scan(ctx)

	if len(notifier.reminders) != 1 || notifier.reminders[0] != soon.ID {
		t.Errorf("expected one reminder for the payment due within 24h, got %v", notifier.reminders)
	}
}
