package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/tkaster/sentrypay/internal/history"
)

const (
	knownPayee = "0x2222222222222222222222222222222222222222"
	newPayee   = "0x3333333333333333333333333333333333333333"
)

// wednesdayAfternoon is inside the seeded user's active hours and days.
var wednesdayAfternoon = time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// seedProfile writes 10 completed 40.00 payments to knownPayee, all on past
// Wednesdays at 14:00, so average=40, active hour=14, active day=Wednesday.
func seedProfile(t *testing.T, hist *history.MemoryStore) {
	t.Helper()
	for i := 1; i <= 10; i++ {
		err := hist.Append(context.Background(), &history.Record{
			ID:        fmt.Sprintf("hist_%d", i),
			UserID:    "user-1",
			Payee:     knownPayee,
			Amount:    "40.000000",
			Currency:  "USDC",
			Outcome:   history.OutcomeCompleted,
			CreatedAt: wednesdayAfternoon.AddDate(0, 0, -7*i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newTestEngine(t *testing.T) (*Engine, *history.MemoryStore, *MemoryStore) {
	t.Helper()
	hist := history.NewMemoryStore()
	store := NewMemoryStore()
	return NewEngine(hist, store, testLogger()), hist, store
}

func flagTypes(result *CheckResult) map[FlagType]bool {
	m := make(map[FlagType]bool)
	for _, f := range result.Flags {
		m[f.Type] = true
	}
	return m
}

func TestAssess_ModerateAmountToNewRecipient(t *testing.T) {
	engine, hist, _ := newTestEngine(t)
	seedProfile(t, hist)

	// 200 is 5x the average (unusual) and the payee is unseen, but it's below
	// the new-recipient high-amount threshold of 500.
	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee:    newPayee,
		Amount:   "200",
		Currency: "USDC",
		At:       wednesdayAfternoon,
	})

	flags := flagTypes(result)
	if !flags[FlagNewRecipient] {
		t.Error("expected NEW_RECIPIENT flag")
	}
	if !flags[FlagUnusualAmount] {
		t.Error("expected UNUSUAL_AMOUNT flag")
	}
	if flags[FlagHighAmountNewRecipient] {
		t.Error("200 is below the new-recipient high-amount threshold")
	}
	// 15 + 20 + 5 (round amount) = 40
	if result.RiskScore != 40 {
		t.Errorf("expected score 40, got %d", result.RiskScore)
	}
	if result.Recommendation != RecommendationWarn {
		t.Errorf("expected WARN, got %s", result.Recommendation)
	}
	if !result.Passed {
		t.Error("WARN should pass")
	}
}

func TestAssess_HighAmountToNewRecipient(t *testing.T) {
	engine, hist, store := newTestEngine(t)
	seedProfile(t, hist)

	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee:    newPayee,
		Amount:   "1000",
		Currency: "USDC",
		At:       wednesdayAfternoon,
	})

	flags := flagTypes(result)
	for _, want := range []FlagType{FlagNewRecipient, FlagHighAmountNewRecipient, FlagUnusualAmount} {
		if !flags[want] {
			t.Errorf("expected %s flag", want)
		}
	}
	if flags[FlagLimitExceeded] {
		t.Error("1000 does not exceed the 1000 single-transaction limit")
	}
	// 15 + 35 + 20 + 5 (round amount) = 75
	if result.RiskScore != 75 {
		t.Errorf("expected score 75, got %d", result.RiskScore)
	}
	if result.Recommendation != RecommendationRequire2FA {
		t.Errorf("expected REQUIRE_2FA, got %s", result.Recommendation)
	}
	if result.Passed {
		t.Error("REQUIRE_2FA must not pass")
	}

	// Non-passing results raise an alert.
	alerts, err := store.ListAlerts(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].CheckID != result.ID {
		t.Error("alert should reference the check")
	}
}

func TestAssess_ScoreClampedAndBlocks(t *testing.T) {
	engine, hist, _ := newTestEngine(t)
	seedProfile(t, hist)

	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee:    newPayee,
		Amount:   "6000", // over single, daily, unusual, new-recipient-high
		Currency: "USDC",
		At:       wednesdayAfternoon,
	})

	if result.RiskScore != 100 {
		t.Errorf("expected clamped score 100, got %d", result.RiskScore)
	}
	if result.Recommendation != RecommendationBlock {
		t.Errorf("expected BLOCK, got %s", result.Recommendation)
	}
	if result.Passed {
		t.Error("BLOCK must not pass")
	}
}

func TestAssess_Monotonicity(t *testing.T) {
	engine, hist, _ := newTestEngine(t)
	seedProfile(t, hist)
	engine.WithDenylist([]string{newPayee})

	clean := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: "0x4444444444444444444444444444444444444444", Amount: "200", Currency: "USDC", At: wednesdayAfternoon,
	})
	flagged := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: newPayee, Amount: "200", Currency: "USDC", At: wednesdayAfternoon,
	})

	// Same transaction, one extra triggering condition: the score never drops.
	if flagged.RiskScore < clean.RiskScore {
		t.Errorf("denylisted payee scored %d, below clean payee's %d", flagged.RiskScore, clean.RiskScore)
	}
}

func TestAssess_VelocityBurst(t *testing.T) {
	engine, hist, _ := newTestEngine(t)
	now := wednesdayAfternoon
	for i := 0; i < 5; i++ {
		_ = hist.Append(context.Background(), &history.Record{
			ID: fmt.Sprintf("hist_v%d", i), UserID: "user-1", Payee: knownPayee,
			Amount: "1.000000", Currency: "USDC", Outcome: history.OutcomeCompleted,
			CreatedAt: now.Add(-time.Duration(i) * 30 * time.Second),
		})
	}

	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: knownPayee, Amount: "1", Currency: "USDC", At: now,
	})

	if !flagTypes(result)[FlagVelocityBurst] {
		t.Error("expected VELOCITY_BURST with 5 transactions in 5 minutes")
	}
}

func TestAssess_NightTransaction(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	threeAM := time.Date(2025, 3, 12, 3, 0, 0, 0, time.UTC)
	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: newPayee, Amount: "60", Currency: "USDC", At: threeAM,
	})

	if !flagTypes(result)[FlagNightTransaction] {
		t.Error("expected NIGHT_TRANSACTION for 03:00 with amount > 50")
	}
}

func TestAssess_RecipientAmountSpike(t *testing.T) {
	engine, hist, _ := newTestEngine(t)
	seedProfile(t, hist)

	// Known payee, but 90 > 2 * historical max of 40.
	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: knownPayee, Amount: "90", Currency: "USDC", At: wednesdayAfternoon,
	})

	if !flagTypes(result)[FlagRecipientAmountSpike] {
		t.Error("expected RECIPIENT_AMOUNT_SPIKE")
	}
	if flagTypes(result)[FlagNewRecipient] {
		t.Error("known payee must not be flagged as new")
	}
}

type failingHistory struct{}

func (failingHistory) Append(context.Context, *history.Record) error { return errors.New("store down") }
func (failingHistory) ListRecent(context.Context, string, int) ([]*history.Record, error) {
	return nil, errors.New("store down")
}
func (failingHistory) ListBefore(context.Context, string, time.Time, string, int) ([]*history.Record, error) {
	return nil, errors.New("store down")
}
func (failingHistory) ListSince(context.Context, string, time.Time) ([]*history.Record, error) {
	return nil, errors.New("store down")
}
func (failingHistory) CountSince(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("store down")
}

func TestAssess_FailsClosed(t *testing.T) {
	engine := NewEngine(failingHistory{}, NewMemoryStore(), testLogger())

	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: knownPayee, Amount: "10", Currency: "USDC",
	})

	if result.Recommendation != RecommendationError {
		t.Errorf("expected ERROR, got %s", result.Recommendation)
	}
	if result.Passed {
		t.Error("a failed assessment must never pass")
	}
}

func TestAssess_LimitOverrides(t *testing.T) {
	engine, hist, store := newTestEngine(t)
	seedProfile(t, hist)

	// Tighten the single-transaction limit for this user.
	if err := store.PutLimits(context.Background(), "user-1", &Limits{MaxSingleTransaction: 50}); err != nil {
		t.Fatal(err)
	}

	result := engine.Assess(context.Background(), "user-1", Transaction{
		Payee: knownPayee, Amount: "60", Currency: "USDC", At: wednesdayAfternoon,
	})

	if !flagTypes(result)[FlagLimitExceeded] {
		t.Error("expected LIMIT_EXCEEDED with overridden limit of 50")
	}
}

func TestPathologicalAddress(t *testing.T) {
	if !pathologicalAddress("0x1111111111111111111111111111111111111111") {
		t.Error("expected all-ones address to be pathological")
	}
	if pathologicalAddress("0x7a3bf9c2d84e16058ab2cd34ef9a01b23c45d678") {
		t.Error("expected mixed address to be clean")
	}
}

func TestLimits_Normalize(t *testing.T) {
	l := Limits{MaxSingleTransaction: 250}.Normalize()
	if l.MaxSingleTransaction != 250 {
		t.Errorf("override lost: %f", l.MaxSingleTransaction)
	}
	def := DefaultLimits()
	if l.MaxDailyVolume != def.MaxDailyVolume || l.VelocityBurstCount != def.VelocityBurstCount {
		t.Error("zero fields must fall back to defaults")
	}
}
