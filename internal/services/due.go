package services

import (
	"time"

	"ricorrenze/internal/core"
)

// DueRules selects the rules whose next occurrence has passed. A rule
// is due when it is active and its next occurrence is at or before now.
// The input slice is never mutated; the result preserves input order.
func DueRules(now time.Time, rules []core.Rule) []core.Rule {
	var due []core.Rule
	for _, r := range rules {
		if r.Active && !r.NextOccurrence.After(now) {
			due = append(due, r)
		}
	}
	return due
}
