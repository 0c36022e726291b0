package core

import "time"

// yearlyAdvance is the fixed-length year used for yearly rules,
// expressed in milliseconds. Yearly scheduling deliberately uses this
// constant instead of a calendar year-add: the result is pure and
// timezone-independent, at the cost of drifting against the civil
// calendar. Monthly scheduling, by contrast, is a true calendar add.
// The asymmetry is intentional; do not unify the two.
const yearlyAdvance = 31_622_400_000 * time.Millisecond

// NextOccurrence returns the occurrence that follows from for the
// given frequency. It is pure and deterministic: it never reads a
// clock, so identical inputs always produce identical outputs and the
// advancement is safe to recompute after a partial batch failure.
//
// Daily, weekly and biweekly are fixed millisecond offsets. Monthly is
// a civil calendar add that preserves the time of day and clamps
// day-of-month overflow (Jan 31 -> last day of February). An invalid
// frequency behaves like Monthly, mirroring ParseFrequency's fallback.
func NextOccurrence(from time.Time, f Frequency) time.Time {
	switch f {
	case Daily:
		return from.Add(24 * time.Hour)
	case Weekly:
		return from.Add(7 * 24 * time.Hour)
	case Biweekly:
		return from.Add(14 * 24 * time.Hour)
	case Yearly:
		return from.Add(yearlyAdvance)
	default:
		// Monthly and the unrecognized-frequency fallback
		return addCalendarMonth(from)
	}
}

// EstimatedMonthly converts a per-occurrence amount into its long-run
// monthly equivalent for reporting. Yearly divides truncating; an
// invalid frequency is treated as monthly (multiplier 1).
func EstimatedMonthly(m Money, f Frequency) Money {
	switch f {
	case Daily:
		return Money{Cents: m.Cents * 30}
	case Weekly:
		return Money{Cents: m.Cents * 4}
	case Biweekly:
		return Money{Cents: m.Cents * 2}
	case Yearly:
		return Money{Cents: m.Cents / 12}
	default:
		return m
	}
}

// addCalendarMonth adds one civil month, clamping the day of month to
// the target month's length. time.Time.AddDate normalizes overflow
// (Jan 31 + 1 month -> Mar 2/3), which is not what a monthly bill does,
// so the clamp is explicit.
func addCalendarMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month.
// Day zero of the following month normalizes to the last day.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
