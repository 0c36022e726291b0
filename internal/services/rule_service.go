package services

import (
	"context"
	"fmt"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
)

// RuleService owns the user-driven lifecycle of recurring rules:
// creation, edits, activation toggling and deletion. The derived
// estimated-monthly cache and the schedule seed are maintained here so
// callers never persist a rule with stale derived fields.
type RuleService struct {
	store     RuleStore
	reminders *ReminderScanner
	logger    *log.Logger
}

func NewRuleService(store RuleStore, reminders *ReminderScanner, logger *log.Logger) *RuleService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RuleService{
		store:     store,
		reminders: reminders,
		logger:    logger.WithComponent(log.ComponentRules),
	}
}

// Create validates and persists a new rule. The next occurrence is
// seeded one period after the start date and the estimated monthly
// amount is derived from amount and frequency.
func (s *RuleService) Create(ctx context.Context, now time.Time, r core.Rule) (*core.Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate rule: %w", err)
	}

	r.EstimatedMonthly = core.EstimatedMonthly(r.Amount, r.Frequency)
	r.NextOccurrence = core.NextOccurrence(r.StartDate, r.Frequency)
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := s.store.CreateRule(ctx, &r); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	s.logger.InfoContext(ctx, "rule created",
		log.FieldRuleID, r.ID,
		log.FieldRuleTitle, r.Title,
		log.FieldFrequency, string(r.Frequency),
		log.FieldAmountCents, r.Amount.Cents,
		log.FieldNextOccurrence, r.NextOccurrence.Format(time.RFC3339))

	return &r, nil
}

// Update replaces an existing rule's user-editable fields. The
// estimated monthly amount is always recomputed. When the start date or
// frequency changes, the next occurrence is reseeded from the new start
// date: a full reset, not a shift relative to the current period.
func (s *RuleService) Update(ctx context.Context, now time.Time, r core.Rule) (*core.Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate rule: %w", err)
	}

	existing, err := s.store.GetRule(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", r.ID, err)
	}

	r.EstimatedMonthly = core.EstimatedMonthly(r.Amount, r.Frequency)
	if !r.StartDate.Equal(existing.StartDate) || r.Frequency != existing.Frequency {
		r.NextOccurrence = core.NextOccurrence(r.StartDate, r.Frequency)
	} else {
		r.NextOccurrence = existing.NextOccurrence
	}
	r.Active = existing.Active
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = now

	if err := s.store.UpdateRule(ctx, &r); err != nil {
		return nil, fmt.Errorf("update rule %d: %w", r.ID, err)
	}

	s.logger.InfoContext(ctx, "rule updated",
		log.FieldRuleID, r.ID,
		log.FieldRuleTitle, r.Title,
		log.FieldFrequency, string(r.Frequency),
		log.FieldNextOccurrence, r.NextOccurrence.Format(time.RFC3339))

	return &r, nil
}

// SetActive toggles a rule's activation. Deactivating a rule retracts
// any outstanding reminder: an inactive rule must not alarm.
func (s *RuleService) SetActive(ctx context.Context, now time.Time, id int64, active bool) error {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return fmt.Errorf("get rule %d: %w", id, err)
	}

	rule.Active = active
	rule.UpdatedAt = now
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return fmt.Errorf("update rule %d: %w", id, err)
	}

	if !active && s.reminders != nil {
		if err := s.reminders.Retract(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "reminder retraction on deactivate failed",
				log.FieldRuleID, id,
				log.FieldError, err)
		}
	}

	s.logger.InfoContext(ctx, "rule activation changed",
		log.FieldRuleID, id, "active", active)
	return nil
}

// Delete removes a rule permanently and retracts any outstanding
// reminder for it. Deletion is terminal; there is no soft delete.
func (s *RuleService) Delete(ctx context.Context, id int64) error {
	if s.reminders != nil {
		if err := s.reminders.Retract(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "reminder retraction on delete failed",
				log.FieldRuleID, id,
				log.FieldError, err)
		}
	}
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "rule deleted", log.FieldRuleID, id)
	return nil
}

func (s *RuleService) Get(ctx context.Context, id int64) (*core.Rule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return rule, nil
}

func (s *RuleService) List(ctx context.Context) ([]core.Rule, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}
