package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tkaster/sentrypay/internal/history"
	"github.com/tkaster/sentrypay/internal/idgen"
	"github.com/tkaster/sentrypay/internal/money"
	"github.com/tkaster/sentrypay/internal/traces"
)

// Penalty points per check. All contributions are additive; the total is
// clamped to [0, 100] before the recommendation thresholds apply.
const (
	pointsLimitExceeded          = 30
	pointsUnusualAmount          = 20
	pointsDailyLimitExceeded     = 25
	pointsRoundAmount            = 5
	pointsNewRecipient           = 15
	pointsHighAmountNewRecipient = 35
	pointsRecipientAmountSpike   = 15
	pointsSuspiciousAddress      = 50
	pointsVelocityBurst          = 40
	pointsVelocitySustained      = 20
	pointsUnusualHour            = 10
	pointsUnusualDay             = 5
	pointsUnusualCurrency        = 5
	pointsNightTransaction       = 15
	pointsWeekendSpike           = 5
)

// Engine scores transactions against a freshly derived behavioral profile.
type Engine struct {
	history  history.Store
	store    Store
	notifier AlertNotifier
	denylist map[string]bool
	logger   *slog.Logger
}

// NewEngine creates a risk engine reading raw history and persisting audit
// records to the given store.
func NewEngine(hist history.Store, store Store, logger *slog.Logger) *Engine {
	return &Engine{
		history:  hist,
		store:    store,
		denylist: make(map[string]bool),
		logger:   logger,
	}
}

// WithNotifier adds a best-effort alert channel for non-passing results.
func (e *Engine) WithNotifier(n AlertNotifier) *Engine {
	e.notifier = n
	return e
}

// WithDenylist adds known-bad payee addresses (lowercased exact match).
func (e *Engine) WithDenylist(addrs []string) *Engine {
	for _, a := range addrs {
		e.denylist[strings.ToLower(a)] = true
	}
	return e
}

// Assess evaluates one transaction for a user and returns the check result.
// Never returns nil: any internal failure produces an ERROR result with
// passed=false. The engine fails closed — a broken profile is never an
// implicit approval.
func (e *Engine) Assess(ctx context.Context, userID string, tx Transaction) *CheckResult {
	ctx, span := traces.StartSpan(ctx, "risk.Assess",
		traces.UserID(userID),
		traces.Amount(tx.Amount),
	)
	defer span.End()

	at := tx.At
	if at.IsZero() {
		at = time.Now()
	}

	result := &CheckResult{
		ID:            idgen.WithPrefix("chk_"),
		UserID:        userID,
		TransactionID: tx.ID,
		CreatedAt:     time.Now(),
	}

	profile, err := e.buildProfile(ctx, userID, at)
	if err != nil {
		e.logger.Error("risk profile construction failed, failing closed",
			"user", userID, "error", err)
		result.Recommendation = RecommendationError
		result.Passed = false
		result.Flags = []Flag{{
			Type:     FlagSuspiciousAddress,
			Severity: SeverityHigh,
			Message:  "risk assessment unavailable: " + err.Error(),
		}}
		result.RiskScore = 100
		e.persist(ctx, result)
		return result
	}

	amount := money.Float64(tx.Amount)
	score := 0
	add := func(points int, flag Flag) {
		score += points
		result.Flags = append(result.Flags, flag)
	}

	e.checkAmount(profile, amount, add)
	e.checkRecipient(profile, tx.Payee, amount, add)
	e.checkVelocity(profile, add)
	e.checkPatterns(profile, tx.Currency, amount, at, add)
	e.checkTimeOfDay(profile, amount, at, add)

	// Clamp before thresholds.
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	result.RiskScore = score

	switch {
	case score >= BlockThreshold:
		result.Recommendation = RecommendationBlock
	case score >= Require2FAThreshold:
		result.Recommendation = RecommendationRequire2FA
	case score >= WarnThreshold:
		result.Recommendation = RecommendationWarn
	default:
		result.Recommendation = RecommendationApprove
	}
	result.Passed = result.Recommendation == RecommendationApprove ||
		result.Recommendation == RecommendationWarn

	checksTotal.WithLabelValues(string(result.Recommendation)).Inc()
	riskScoreHist.Observe(float64(score))

	e.persist(ctx, result)
	if !result.Passed {
		e.alert(ctx, result)
	}

	return result
}

func (e *Engine) checkAmount(p *Profile, amount float64, add func(int, Flag)) {
	if amount > p.Limits.MaxSingleTransaction {
		add(pointsLimitExceeded, Flag{
			Type:           FlagLimitExceeded,
			Severity:       SeverityHigh,
			Message:        fmt.Sprintf("amount %.2f exceeds single-transaction limit %.2f", amount, p.Limits.MaxSingleTransaction),
			Recommendation: "reduce the amount or raise the limit before retrying",
		})
	}

	if p.Stats.AverageTransaction > 0 && amount > p.Stats.AverageTransaction*p.Limits.UnusualAmountMultiplier {
		add(pointsUnusualAmount, Flag{
			Type:           FlagUnusualAmount,
			Severity:       SeverityMedium,
			Message:        fmt.Sprintf("amount %.2f is %.1fx the user's average of %.2f", amount, amount/p.Stats.AverageTransaction, p.Stats.AverageTransaction),
			Recommendation: "confirm the amount with the user",
		})
	}

	if remaining := p.Limits.MaxDailyVolume - p.TodayVolume; amount > remaining {
		add(pointsDailyLimitExceeded, Flag{
			Type:           FlagDailyLimitExceeded,
			Severity:       SeverityHigh,
			Message:        fmt.Sprintf("amount %.2f exceeds remaining daily budget %.2f", amount, remaining),
			Recommendation: "wait until tomorrow or raise the daily limit",
		})
	}

	// Automated drains tend to use suspiciously round numbers.
	if amount >= 100 && math.Mod(amount, 100) == 0 {
		add(pointsRoundAmount, Flag{
			Type:     FlagRoundAmount,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("amount %.2f is an exact multiple of 100", amount),
		})
	}
}

func (e *Engine) checkRecipient(p *Profile, payee string, amount float64, add func(int, Flag)) {
	normalized := strings.ToLower(payee)

	if e.denylist[normalized] || pathologicalAddress(normalized) {
		add(pointsSuspiciousAddress, Flag{
			Type:           FlagSuspiciousAddress,
			Severity:       SeverityHigh,
			Message:        "recipient address matches a known-bad pattern",
			Recommendation: "do not send funds to this address",
		})
	}

	if !p.KnownRecipients[payee] {
		add(pointsNewRecipient, Flag{
			Type:           FlagNewRecipient,
			Severity:       SeverityMedium,
			Message:        "first payment to this recipient",
			Recommendation: "verify the recipient address",
		})
		if amount > p.Limits.NewRecipientHighAmount {
			add(pointsHighAmountNewRecipient, Flag{
				Type:           FlagHighAmountNewRecipient,
				Severity:       SeverityHigh,
				Message:        fmt.Sprintf("amount %.2f to a brand-new recipient exceeds %.2f", amount, p.Limits.NewRecipientHighAmount),
				Recommendation: "require explicit confirmation for large first payments",
			})
		}
		return
	}

	if stat := p.RecipientStats[payee]; stat != nil && stat.MaxAmount > 0 && amount > 2*stat.MaxAmount {
		add(pointsRecipientAmountSpike, Flag{
			Type:           FlagRecipientAmountSpike,
			Severity:       SeverityMedium,
			Message:        fmt.Sprintf("amount %.2f is more than double the previous maximum %.2f to this recipient", amount, stat.MaxAmount),
			Recommendation: "confirm the unusually large payment",
		})
	}
}

func (e *Engine) checkVelocity(p *Profile, add func(int, Flag)) {
	if p.TxLast5Min >= p.Limits.VelocityBurstCount {
		add(pointsVelocityBurst, Flag{
			Type:           FlagVelocityBurst,
			Severity:       SeverityHigh,
			Message:        fmt.Sprintf("%d transactions in the last 5 minutes", p.TxLast5Min),
			Recommendation: "pause and review recent activity",
		})
	}
	if p.TxLastHour >= p.Limits.VelocitySustainedCount {
		add(pointsVelocitySustained, Flag{
			Type:           FlagVelocitySustained,
			Severity:       SeverityMedium,
			Message:        fmt.Sprintf("%d transactions in the last hour", p.TxLastHour),
			Recommendation: "review recent activity for automation",
		})
	}
}

func (e *Engine) checkPatterns(p *Profile, currency string, amount float64, at time.Time, add func(int, Flag)) {
	if len(p.Patterns.ActiveHours) > 0 && amount > 100 && !containsInt(p.Patterns.ActiveHours, at.Hour()) {
		add(pointsUnusualHour, Flag{
			Type:     FlagUnusualHour,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("hour %d is outside the user's usual activity hours", at.Hour()),
		})
	}
	if len(p.Patterns.ActiveDays) > 0 && amount > 100 && !containsDay(p.Patterns.ActiveDays, at.Weekday()) {
		add(pointsUnusualDay, Flag{
			Type:     FlagUnusualDay,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("%s is outside the user's usual activity days", at.Weekday()),
		})
	}
	if p.Patterns.PrimaryCurrency != "" && currency != "" && currency != p.Patterns.PrimaryCurrency {
		add(pointsUnusualCurrency, Flag{
			Type:     FlagUnusualCurrency,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("currency %s differs from the user's primary currency %s", currency, p.Patterns.PrimaryCurrency),
		})
	}
}

func (e *Engine) checkTimeOfDay(p *Profile, amount float64, at time.Time, add func(int, Flag)) {
	if hour := at.Hour(); hour >= 2 && hour < 5 && amount > 50 {
		add(pointsNightTransaction, Flag{
			Type:           FlagNightTransaction,
			Severity:       SeverityMedium,
			Message:        fmt.Sprintf("transaction at %02d:00 local time", hour),
			Recommendation: "confirm the user initiated this payment",
		})
	}
	wd := at.Weekday()
	if (wd == time.Saturday || wd == time.Sunday) && p.Stats.AverageTransaction > 0 && amount > 2*p.Stats.AverageTransaction {
		add(pointsWeekendSpike, Flag{
			Type:     FlagWeekendSpike,
			Severity: SeverityLow,
			Message:  "weekend transaction well above the user's average",
		})
	}
}

// persist records the audit entry. Best-effort: a storage failure must not
// change the verdict, but it is logged loudly.
func (e *Engine) persist(ctx context.Context, result *CheckResult) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordCheck(ctx, result); err != nil {
		e.logger.Error("failed to persist risk check", "check", result.ID, "user", result.UserID, "error", err)
	}
}

func (e *Engine) alert(ctx context.Context, result *CheckResult) {
	summary := summarizeFlags(result.Flags)
	if e.store != nil {
		alert := &Alert{
			ID:             idgen.WithPrefix("alrt_"),
			UserID:         result.UserID,
			CheckID:        result.ID,
			RiskScore:      result.RiskScore,
			Recommendation: result.Recommendation,
			Summary:        summary,
			CreatedAt:      time.Now(),
		}
		if err := e.store.RecordAlert(ctx, alert); err != nil {
			e.logger.Error("failed to persist risk alert", "check", result.ID, "error", err)
		}
	}
	alertsTotal.Inc()
	if e.notifier != nil {
		e.notifier.NotifyRiskAlert(result.UserID, result.RiskScore, string(result.Recommendation), summary)
	}
}

// ListChecks returns recent audit records for a user.
func (e *Engine) ListChecks(ctx context.Context, userID string, limit int) ([]*CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListChecks(ctx, userID, limit)
}

// ListAlerts returns recent alerts for a user.
func (e *Engine) ListAlerts(ctx context.Context, userID string, limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListAlerts(ctx, userID, limit)
}

// SetLimits stores per-user threshold overrides.
func (e *Engine) SetLimits(ctx context.Context, userID string, limits Limits) error {
	normalized := limits.Normalize()
	return e.store.PutLimits(ctx, userID, &normalized)
}

func summarizeFlags(flags []Flag) string {
	parts := make([]string, 0, len(flags))
	for _, f := range flags {
		parts = append(parts, string(f.Type))
	}
	return strings.Join(parts, ", ")
}

// pathologicalAddress reports whether half or more of the address body is a
// single repeated character — a common vanity/burner pattern.
func pathologicalAddress(addr string) bool {
	body := strings.TrimPrefix(addr, "0x")
	if len(body) < 8 {
		return false
	}
	run, best := 1, 1
	for i := 1; i < len(body); i++ {
		if body[i] == body[i-1] {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	return best >= len(body)/2
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func containsDay(xs []time.Weekday, x time.Weekday) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
