package payments

import "time"

// NextOccurrence computes the scheduled date of the successor occurrence.
// Daily and weekly steps are exact day counts. Monthly and yearly steps keep
// the day-of-month, clamping to the last day of the target month when the
// source day does not exist there (Jan 31 → Feb 28, not Mar 3, which is what
// naive AddDate normalization would produce).
func NextOccurrence(from time.Time, freq Frequency, interval int) time.Time {
	if interval <= 0 {
		interval = 1
	}
	switch freq {
	case FrequencyDaily:
		return from.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7*interval)
	case FrequencyMonthly:
		return addMonthsClamped(from, interval)
	case FrequencyYearly:
		return addMonthsClamped(from, 12*interval)
	}
	return from.AddDate(0, 0, interval)
}

// WithinBound reports whether an occurrence date is allowed by the series
// end date. A nil end date means the series is unbounded.
func WithinBound(occurrence time.Time, endDate *time.Time) bool {
	if endDate == nil {
		return true
	}
	return !occurrence.After(*endDate)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	// First of the target month, then clamp the day.
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
