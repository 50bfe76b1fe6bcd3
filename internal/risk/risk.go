// Package risk implements fraud/anomaly scoring for payments.
//
// Every transaction is evaluated against the user's historical behavior:
// amount limits, recipient trust, velocity, activity patterns, and time of
// day. Each triggered check adds a fixed or proportional penalty to a single
// running score, clamped to [0, 100]. The engine fails closed: if the profile
// cannot be built, the result is ERROR and the transaction does not pass.
package risk

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCheckNotFound = errors.New("risk: check not found")
)

// Recommendation is the engine's verdict on a transaction.
type Recommendation string

const (
	RecommendationApprove    Recommendation = "APPROVE"
	RecommendationWarn       Recommendation = "WARN"
	RecommendationRequire2FA Recommendation = "REQUIRE_2FA"
	RecommendationBlock      Recommendation = "BLOCK"
	RecommendationError      Recommendation = "ERROR"
)

// Score thresholds, applied after clamping.
const (
	BlockThreshold      = 80
	Require2FAThreshold = 50
	WarnThreshold       = 30
)

// Severity classifies how serious a triggered flag is.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// FlagType is a closed set of anomaly signals. Adding a new check means
// adding a constant here and a case in the engine — nothing is stringly typed.
type FlagType string

const (
	FlagLimitExceeded          FlagType = "LIMIT_EXCEEDED"
	FlagUnusualAmount          FlagType = "UNUSUAL_AMOUNT"
	FlagDailyLimitExceeded     FlagType = "DAILY_LIMIT_EXCEEDED"
	FlagRoundAmount            FlagType = "ROUND_AMOUNT"
	FlagNewRecipient           FlagType = "NEW_RECIPIENT"
	FlagHighAmountNewRecipient FlagType = "HIGH_AMOUNT_NEW_RECIPIENT"
	FlagRecipientAmountSpike   FlagType = "RECIPIENT_AMOUNT_SPIKE"
	FlagSuspiciousAddress      FlagType = "SUSPICIOUS_ADDRESS"
	FlagVelocityBurst          FlagType = "VELOCITY_BURST"
	FlagVelocitySustained      FlagType = "VELOCITY_SUSTAINED"
	FlagUnusualHour            FlagType = "UNUSUAL_HOUR"
	FlagUnusualDay             FlagType = "UNUSUAL_DAY"
	FlagUnusualCurrency        FlagType = "UNUSUAL_CURRENCY"
	FlagNightTransaction       FlagType = "NIGHT_TRANSACTION"
	FlagWeekendSpike           FlagType = "WEEKEND_SPIKE"
)

// Flag is one triggered check with its contribution context.
type Flag struct {
	Type           FlagType `json:"type"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// CheckResult is the outcome of one risk evaluation. Persisted as an
// immutable audit record.
type CheckResult struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	TransactionID  string         `json:"transactionId,omitempty"`
	RiskScore      int            `json:"riskScore"` // 0-100
	Flags          []Flag         `json:"flags"`
	Recommendation Recommendation `json:"recommendation"`
	Passed         bool           `json:"passed"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Alert is persisted for results serious enough to surface to operators.
type Alert struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	CheckID        string         `json:"checkId"`
	RiskScore      int            `json:"riskScore"`
	Recommendation Recommendation `json:"recommendation"`
	Summary        string         `json:"summary"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Transaction carries the data needed to score one payment.
type Transaction struct {
	ID       string
	Payee    string
	Amount   string // decimal string
	Currency string
	At       time.Time // execution instant; zero means now
}

// Limits are the per-user thresholds the checks compare against.
// Zero-valued fields fall back to defaults via Normalize.
type Limits struct {
	MaxSingleTransaction    float64 `json:"maxSingleTransaction"`
	MaxDailyVolume          float64 `json:"maxDailyVolume"`
	MaxMonthlyVolume        float64 `json:"maxMonthlyVolume"`
	UnusualAmountMultiplier float64 `json:"unusualAmountMultiplier"`
	NewRecipientHighAmount  float64 `json:"newRecipientHighAmount"`
	VelocityBurstCount      int     `json:"velocityBurstCount"`     // max txs per 5 minutes
	VelocitySustainedCount  int     `json:"velocitySustainedCount"` // max txs per hour
}

// DefaultLimits returns the platform-wide default thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxSingleTransaction:    1000,
		MaxDailyVolume:          5000,
		MaxMonthlyVolume:        50000,
		UnusualAmountMultiplier: 3,
		NewRecipientHighAmount:  500,
		VelocityBurstCount:      5,
		VelocitySustainedCount:  10,
	}
}

// Normalize fills zero fields from the defaults, keeping per-user overrides.
func (l Limits) Normalize() Limits {
	def := DefaultLimits()
	if l.MaxSingleTransaction <= 0 {
		l.MaxSingleTransaction = def.MaxSingleTransaction
	}
	if l.MaxDailyVolume <= 0 {
		l.MaxDailyVolume = def.MaxDailyVolume
	}
	if l.MaxMonthlyVolume <= 0 {
		l.MaxMonthlyVolume = def.MaxMonthlyVolume
	}
	if l.UnusualAmountMultiplier <= 0 {
		l.UnusualAmountMultiplier = def.UnusualAmountMultiplier
	}
	if l.NewRecipientHighAmount <= 0 {
		l.NewRecipientHighAmount = def.NewRecipientHighAmount
	}
	if l.VelocityBurstCount <= 0 {
		l.VelocityBurstCount = def.VelocityBurstCount
	}
	if l.VelocitySustainedCount <= 0 {
		l.VelocitySustainedCount = def.VelocitySustainedCount
	}
	return l
}

// RecipientStat summarizes historical payments to one payee.
type RecipientStat struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
	MaxAmount   float64 `json:"maxAmount"`
	AvgAmount   float64 `json:"avgAmount"`
}

// Stats summarizes a user's recent transaction history.
type Stats struct {
	TotalTransactions  int     `json:"totalTransactions"`
	TotalVolume        float64 `json:"totalVolume"`
	AverageTransaction float64 `json:"averageTransaction"`
	MaxTransaction     float64 `json:"maxTransaction"`
	MedianTransaction  float64 `json:"medianTransaction"`
}

// Patterns captures when and in what currency the user typically transacts.
// Hours/days accounting for more than 10% of history are "active".
type Patterns struct {
	ActiveHours     []int          `json:"activeHours"`
	ActiveDays      []time.Weekday `json:"activeDays"`
	PrimaryCurrency string         `json:"primaryCurrency"`
}

// Profile is the per-check behavioral snapshot derived from raw history.
// It is never cached: every assessment recomputes it from the last N records
// so checks never act on stale data.
type Profile struct {
	Limits          Limits
	Stats           Stats
	KnownRecipients map[string]bool
	RecipientStats  map[string]*RecipientStat
	Patterns        Patterns
	TodayVolume     float64
	TxLast5Min      int
	TxLastHour      int
}

// Store persists risk checks, alerts, and per-user limit overrides.
type Store interface {
	RecordCheck(ctx context.Context, result *CheckResult) error
	ListChecks(ctx context.Context, userID string, limit int) ([]*CheckResult, error)

	RecordAlert(ctx context.Context, alert *Alert) error
	ListAlerts(ctx context.Context, userID string, limit int) ([]*Alert, error)

	// GetLimits returns per-user overrides, or (nil, nil) when none exist.
	GetLimits(ctx context.Context, userID string) (*Limits, error)
	PutLimits(ctx context.Context, userID string, limits *Limits) error
}

// AlertNotifier pushes high-risk alerts to an external channel (webhook).
/// Best-effort: failures are logged, never propagated.
type AlertNotifier interface {
	NotifyRiskAlert(userID string, score int, recommendation, summary string)
}
