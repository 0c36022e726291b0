package services

import (
	"context"
	"time"

	"ricorrenze/internal/core"
)

// Ports for the engine's collaborators. The SQLite repository satisfies
// RuleStore, ReminderStore and Ledger; the AMQP client satisfies Notifier.

type (
	// RuleStore persists recurring rules.
	RuleStore interface {
		// LoadActiveRules returns every active rule. Inactive rules are
		// excluded here but keep accruing occurrences through UpdateRule.
		LoadActiveRules(ctx context.Context) ([]core.Rule, error)
		GetRule(ctx context.Context, id int64) (*core.Rule, error)
		ListRules(ctx context.Context) ([]core.Rule, error)
		// CreateRule assigns the rule's ID and persists it.
		CreateRule(ctx context.Context, r *core.Rule) error
		UpdateRule(ctx context.Context, r *core.Rule) error
		// DeleteRule is terminal and unconditional.
		DeleteRule(ctx context.Context, id int64) error
	}

	// ReminderStore tracks which rules have an outstanding reminder, so
	// a reminder is raised at most once per occurrence and retraction
	// survives restarts.
	ReminderStore interface {
		// MarkReminderRaised records an outstanding reminder. It returns
		// false when one is already outstanding for the rule.
		MarkReminderRaised(ctx context.Context, ruleID int64, at time.Time) (bool, error)
		// ClearReminder removes the outstanding marker. Clearing an
		// absent marker is a no-op.
		ClearReminder(ctx context.Context, ruleID int64) error
	}

	// Ledger records materialized transactions. It is an external
	// collaborator: the engine produces entries but does not own them.
	Ledger interface {
		RecordTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	}

	// Notifier delivers reminder notifications for upcoming occurrences.
	Notifier interface {
		RaiseReminder(ctx context.Context, ruleID int64, title, formattedAmount string, daysBefore int, dueAt time.Time) error
		// RetractReminder withdraws an outstanding reminder. Retracting a
		// never-raised reminder must be a no-op.
		RetractReminder(ctx context.Context, ruleID int64) error
		Enabled() bool
	}
)
