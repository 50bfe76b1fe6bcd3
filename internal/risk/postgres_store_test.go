package risk_test

import (
	"context"
	"testing"
	"time"

	"github.com/tkaster/sentrypay/internal/risk"
	"github.com/tkaster/sentrypay/internal/testutil"
)

func TestPostgresStore_ChecksAndAlerts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := risk.NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	check := &risk.CheckResult{
		ID:        "chk_1",
		UserID:    "user-1",
		RiskScore: 80,
		Flags: []risk.Flag{
			{Type: risk.FlagUnusualAmount, Severity: risk.SeverityHigh, Message: "amount far above user average"},
			{Type: risk.FlagNewRecipient, Severity: risk.SeverityLow, Message: "first payment to this payee"},
		},
		Recommendation: risk.RecommendationBlock,
		Passed:         false,
		CreatedAt:      now,
	}
	if err := store.RecordCheck(ctx, check); err != nil {
		t.Fatalf("RecordCheck: %v", err)
	}

	checks, err := store.ListChecks(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListChecks: %v", err)
	}
	if len(checks) != 1 {
		t.Fatalf("ListChecks returned %d, want 1", len(checks))
	}
	got := checks[0]
	if got.RiskScore != 80 || got.Recommendation != risk.RecommendationBlock || got.Passed {
		t.Errorf("check round-trip: %+v", got)
	}
	if len(got.Flags) != 2 || got.Flags[0].Type != risk.FlagUnusualAmount {
		t.Errorf("flags round-trip: %+v", got.Flags)
	}

	alert := &risk.Alert{
		ID:             "alrt_1",
		UserID:         "user-1",
		CheckID:        "chk_1",
		RiskScore:      80,
		Recommendation: risk.RecommendationBlock,
		Summary:        "blocked: amount far above user average",
		CreatedAt:      now,
	}
	if err := store.RecordAlert(ctx, alert); err != nil {
		t.Fatalf("RecordAlert: %v", err)
	}

	alerts, err := store.ListAlerts(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].CheckID != "chk_1" {
		t.Fatalf("ListAlerts = %+v", alerts)
	}
}

func TestPostgresStore_LimitOverrides(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := risk.NewPostgresStore(db)
	ctx := context.Background()

	got, err := store.GetLimits(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	if got != nil {
		t.Fatalf("GetLimits before PutLimits = %+v, want nil", got)
	}

	limits := &risk.Limits{
		MaxSingleTransaction: 500,
		MaxDailyVolume:       2000,
		VelocityBurstCount:   3,
	}
	if err := store.PutLimits(ctx, "user-1", limits); err != nil {
		t.Fatalf("PutLimits: %v", err)
	}

	got, err = store.GetLimits(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLimits: %v", err)
	}
	if got == nil || got.MaxSingleTransaction != 500 || got.VelocityBurstCount != 3 {
		t.Fatalf("limits round-trip: %+v", got)
	}

	// Upsert replaces the previous override.
	limits.MaxSingleTransaction = 750
	if err := store.PutLimits(ctx, "user-1", limits); err != nil {
		t.Fatalf("PutLimits upsert: %v", err)
	}
	got, err = store.GetLimits(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLimits after upsert: %v", err)
	}
	if got.MaxSingleTransaction != 750 {
		t.Errorf("MaxSingleTransaction = %v, want 750", got.MaxSingleTransaction)
	}
}
