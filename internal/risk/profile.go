package risk

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tkaster/sentrypay/internal/history"
	"github.com/tkaster/sentrypay/internal/money"
)

// profileDepth bounds how much history one assessment reads.
const profileDepth = 100

// activePatternShare is the fraction of history an hour/day must account for
// to count as part of the user's normal activity.
const activePatternShare = 0.10

// buildProfile derives a fresh behavioral profile from the user's raw history.
// Called on every assessment — never cached.
func (e *Engine) buildProfile(ctx context.Context, userID string, now time.Time) (*Profile, error) {
	recent, err := e.history.ListRecent(ctx, userID, profileDepth)
	if err != nil {
		return nil, fmt.Errorf("load recent history: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := e.history.ListSince(ctx, userID, startOfDay)
	if err != nil {
		return nil, fmt.Errorf("load today's history: %w", err)
	}

	last5min, err := e.history.CountSince(ctx, userID, now.Add(-5*time.Minute))
	if err != nil {
		return nil, fmt.Errorf("count 5-minute window: %w", err)
	}
	lastHour, err := e.history.CountSince(ctx, userID, now.Add(-time.Hour))
	if err != nil {
		return nil, fmt.Errorf("count 1-hour window: %w", err)
	}

	limits := DefaultLimits()
	if e.store != nil {
		overrides, err := e.store.GetLimits(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load limit overrides: %w", err)
		}
		if overrides != nil {
			limits = overrides.Normalize()
		}
	}

	p := &Profile{
		Limits:          limits,
		KnownRecipients: make(map[string]bool),
		RecipientStats:  make(map[string]*RecipientStat),
	}

	var amounts []float64
	hourCounts := make(map[int]int)
	dayCounts := make(map[time.Weekday]int)
	currencyCounts := make(map[string]int)

	for _, rec := range recent {
		// Failed attempts still inform recipient familiarity but not volume stats.
		if rec.Outcome != history.OutcomeCompleted {
			p.KnownRecipients[rec.Payee] = true
			continue
		}

		amount := money.Float64(rec.Amount)
		amounts = append(amounts, amount)
		p.Stats.TotalVolume += amount
		if amount > p.Stats.MaxTransaction {
			p.Stats.MaxTransaction = amount
		}

		p.KnownRecipients[rec.Payee] = true
		stat := p.RecipientStats[rec.Payee]
		if stat == nil {
			stat = &RecipientStat{}
			p.RecipientStats[rec.Payee] = stat
		}
		stat.Count++
		stat.TotalAmount += amount
		if amount > stat.MaxAmount {
			stat.MaxAmount = amount
		}

		hourCounts[rec.CreatedAt.Hour()]++
		dayCounts[rec.CreatedAt.Weekday()]++
		if rec.Currency != "" {
			currencyCounts[rec.Currency]++
		}
	}

	p.Stats.TotalTransactions = len(amounts)
	if len(amounts) > 0 {
		p.Stats.AverageTransaction = p.Stats.TotalVolume / float64(len(amounts))
		p.Stats.MedianTransaction = median(amounts)
	}
	for _, stat := range p.RecipientStats {
		stat.AvgAmount = stat.TotalAmount / float64(stat.Count)
	}

	threshold := int(float64(len(amounts)) * activePatternShare)
	for hour, count := range hourCounts {
		if count > threshold {
			p.Patterns.ActiveHours = append(p.Patterns.ActiveHours, hour)
		}
	}
	sort.Ints(p.Patterns.ActiveHours)
	for day, count := range dayCounts {
		if count > threshold {
			p.Patterns.ActiveDays = append(p.Patterns.ActiveDays, day)
		}
	}
	sort.Slice(p.Patterns.ActiveDays, func(i, j int) bool {
		return p.Patterns.ActiveDays[i] < p.Patterns.ActiveDays[j]
	})
	p.Patterns.PrimaryCurrency = mode(currencyCounts)

	for _, rec := range today {
		if rec.Outcome == history.OutcomeCompleted {
			p.TodayVolume += money.Float64(rec.Amount)
		}
	}
	p.TxLast5Min = last5min
	p.TxLastHour = lastHour

	return p, nil
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mode(counts map[string]int) string {
	best, bestCount := "", 0
	for k, c := range counts {
		if c > bestCount || (c == bestCount && k < best) {
			best, bestCount = k, c
		}
	}
	return best
}
