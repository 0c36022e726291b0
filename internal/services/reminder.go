package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
)

// defaultScanConcurrency bounds parallel reminder deliveries per scan.
// Candidates share no mutable state, so cross-rule parallelism is safe.
const defaultScanConcurrency = 4

// NeedsReminder reports whether a rule should raise a reminder at now.
// It is pure: reminders apply to enabled, active rules whose occurrence
// is still in the future but within the configured lead window.
// daysBefore of zero means "remind exactly at due time". A past-due
// occurrence belongs to the execution path, never the reminder path.
func NeedsReminder(now time.Time, r core.Rule) bool {
	if !r.ReminderEnabled || !r.Active {
		return false
	}
	until := r.NextOccurrence.Sub(now)
	if until <= 0 {
		return false
	}
	return until <= time.Duration(r.ReminderDaysBefore)*24*time.Hour
}

// ReminderReport is the per-candidate outcome of one reminder scan.
type ReminderReport struct {
	Candidates int
	Raised     []int64
	Failures   []RuleFailure
}

func (r ReminderReport) RaisedCount() int { return len(r.Raised) }
func (r ReminderReport) FailedCount() int { return len(r.Failures) }

// ReminderScanner raises reminders for upcoming occurrences and
// retracts them when the occurrence executes. Outstanding reminders are
// tracked in the store so each occurrence raises at most once.
type ReminderScanner struct {
	store       RuleStore
	outstanding ReminderStore
	notifier    Notifier
	logger      *log.Logger
	concurrency int
}

func NewReminderScanner(store RuleStore, outstanding ReminderStore, notifier Notifier, logger *log.Logger) *ReminderScanner {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReminderScanner{
		store:       store,
		outstanding: outstanding,
		notifier:    notifier,
		logger:      logger.WithComponent(log.ComponentReminder),
		concurrency: defaultScanConcurrency,
	}
}

// Scan raises a reminder for every eligible rule that does not already
// have one outstanding. Candidates are processed independently with
// bounded parallelism; one candidate's notification failure never
// suppresses the others. An empty candidate set is a no-op success.
// A store read failure fails the whole scan as retryable.
func (s *ReminderScanner) Scan(ctx context.Context, now time.Time) (ReminderReport, error) {
	if s.notifier == nil || !s.notifier.Enabled() {
		s.logger.DebugContext(ctx, "notifications disabled, skipping scan")
		return ReminderReport{}, nil
	}

	rules, err := s.store.LoadActiveRules(ctx)
	if err != nil {
		return ReminderReport{}, fmt.Errorf("load active rules: %w", err)
	}

	var candidates []core.Rule
	for _, r := range rules {
		if NeedsReminder(now, r) {
			candidates = append(candidates, r)
		}
	}

	report := ReminderReport{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, rule := range candidates {
		rule := rule
		g.Go(func() error {
			raised, err := s.raiseOnce(gctx, rule, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, RuleFailure{RuleID: rule.ID, Err: err})
			} else if raised {
				report.Raised = append(report.Raised, rule.ID)
			}
			// Failures are isolated per candidate; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "reminder scan complete",
		"candidates", report.Candidates,
		"raised", report.RaisedCount(),
		log.FieldFailed, report.FailedCount())

	return report, nil
}

// raiseOnce raises a reminder for the rule unless one is already
// outstanding. The outstanding marker is set first; if delivery fails
// the marker is rolled back so the next scan retries.
func (s *ReminderScanner) raiseOnce(ctx context.Context, rule core.Rule, now time.Time) (bool, error) {
	fresh, err := s.outstanding.MarkReminderRaised(ctx, rule.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark reminder raised: %w", err)
	}
	if !fresh {
		return false, nil
	}

	err = s.notifier.RaiseReminder(ctx, rule.ID, rule.Title, rule.Amount.Format(),
		rule.ReminderDaysBefore, rule.NextOccurrence)
	if err != nil {
		if clearErr := s.outstanding.ClearReminder(ctx, rule.ID); clearErr != nil {
			s.logger.WarnContext(ctx, "failed to roll back reminder marker",
				log.FieldRuleID, rule.ID,
				log.FieldError, clearErr)
		}
		return false, fmt.Errorf("raise reminder: %w", err)
	}

	s.logger.InfoContext(ctx, "reminder raised",
		log.FieldRuleID, rule.ID,
		log.FieldRuleTitle, rule.Title,
		log.FieldDaysBefore, rule.ReminderDaysBefore,
		log.FieldDueAt, rule.NextOccurrence.Format(time.RFC3339))

	return true, nil
}

// Retract withdraws any outstanding reminder for the rule. It is
// idempotent: retracting a never-raised or already-retracted reminder
// is a no-op, not an error.
func (s *ReminderScanner) Retract(ctx context.Context, ruleID int64) error {
	if err := s.outstanding.ClearReminder(ctx, ruleID); err != nil {
		return fmt.Errorf("clear reminder: %w", err)
	}
	if s.notifier == nil || !s.notifier.Enabled() {
		return nil
	}
	if err := s.notifier.RetractReminder(ctx, ruleID); err != nil {
		return fmt.Errorf("retract reminder: %w", err)
	}
	s.logger.DebugContext(ctx, "reminder retracted", log.FieldRuleID, ruleID)
	return nil
}
