package services

import (
	"context"
	"fmt"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
)

// Processor materializes due recurring rules into ledger transactions
// and advances each rule's schedule by exactly one period.
type Processor struct {
	store     RuleStore
	ledger    Ledger
	reminders *ReminderScanner
	logger    *log.Logger
}

// RuleFailure records one rule's failure inside a batch.
type RuleFailure struct {
	RuleID int64
	Err    error
}

// ExecutionReport is the per-rule outcome of one batch invocation.
// A batch with failures is still a successful batch: failed rules keep
// their pre-batch next occurrence and are retried on the next run.
type ExecutionReport struct {
	Checked  int // active rules considered
	Due      int // rules whose occurrence had passed
	Executed []int64
	Failures []RuleFailure
}

func (r ExecutionReport) ExecutedCount() int { return len(r.Executed) }
func (r ExecutionReport) FailedCount() int   { return len(r.Failures) }

func NewProcessor(store RuleStore, ledger Ledger, reminders *ReminderScanner, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Processor{
		store:     store,
		ledger:    ledger,
		reminders: reminders,
		logger:    logger.WithComponent(log.ComponentProcessor),
	}
}

// ExecuteDueBatch processes every due rule once. now is threaded
// explicitly; the processor never reads a clock.
//
// Each rule is handled independently: materialize one transaction dated
// at the rule's pre-advancement occurrence, persist the advanced
// schedule, then retract any outstanding reminder. A rule's failure is
// logged and reported without touching its schedule, so it stays due
// and is retried next invocation (at-least-once execution). Only a
// failure to read the rule set fails the batch itself; that error is
// retryable by the external trigger.
func (p *Processor) ExecuteDueBatch(ctx context.Context, now time.Time) (ExecutionReport, error) {
	rules, err := p.store.LoadActiveRules(ctx)
	if err != nil {
		return ExecutionReport{}, fmt.Errorf("load active rules: %w", err)
	}

	due := DueRules(now, rules)
	report := ExecutionReport{Checked: len(rules), Due: len(due)}

	p.logger.InfoContext(ctx, "processing due rules",
		log.FieldProcessed, len(due),
		"total_active", len(rules),
		"processing_date", now.Format("2006-01-02"))

	for _, rule := range due {
		if err := p.executeRule(ctx, rule, now); err != nil {
			p.logger.ErrorContext(ctx, "rule execution failed",
				log.FieldRuleID, rule.ID,
				log.FieldRuleTitle, rule.Title,
				log.FieldError, err)
			report.Failures = append(report.Failures, RuleFailure{RuleID: rule.ID, Err: err})
			continue
		}
		report.Executed = append(report.Executed, rule.ID)
	}

	p.logger.InfoContext(ctx, "batch complete",
		log.FieldProcessed, report.ExecutedCount(),
		log.FieldFailed, report.FailedCount())

	return report, nil
}

// executeRule runs the materialize -> advance -> retract sequence for a
// single rule. The transaction is dated at the rule's nominal occurrence,
// not wall-clock now. If the ledger write succeeds but the advancement
// fails, the rule remains due and the next run may record a duplicate;
// that asymmetry is the accepted price of at-least-once semantics.
func (p *Processor) executeRule(ctx context.Context, rule core.Rule, now time.Time) error {
	occurrence := rule.NextOccurrence

	tx := core.Transaction{
		RuleID:      rule.ID,
		Kind:        rule.Kind,
		Amount:      rule.Amount,
		Category:    rule.Category,
		Description: fmt.Sprintf("%s (ricorrenza #%d)", rule.Title, rule.ID),
		OccurredAt:  occurrence,
	}

	txID, err := p.ledger.RecordTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	rule.NextOccurrence = core.NextOccurrence(occurrence, rule.Frequency)
	rule.UpdatedAt = now
	if err := p.store.UpdateRule(ctx, &rule); err != nil {
		return fmt.Errorf("advance rule: %w", err)
	}

	if rule.ReminderEnabled && p.reminders != nil {
		// The occurrence just executed; an unretracted reminder for it
		// would be a stale false alarm. Retraction failure does not fail
		// the rule: the transaction is recorded and the schedule advanced.
		if err := p.reminders.Retract(ctx, rule.ID); err != nil {
			p.logger.WarnContext(ctx, "reminder retraction failed",
				log.FieldRuleID, rule.ID,
				log.FieldError, err)
		}
	}

	p.logger.InfoContext(ctx, "materialized transaction from rule",
		log.FieldRuleID, rule.ID,
		log.FieldTransactionID, txID,
		log.FieldRuleTitle, rule.Title,
		log.FieldAmountCents, rule.Amount.Cents,
		log.FieldFrequency, string(rule.Frequency),
		log.FieldNextOccurrence, rule.NextOccurrence.Format(time.RFC3339))

	return nil
}
