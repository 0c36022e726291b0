package services

import (
	"context"
	"testing"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/storage/memory"
)

func TestCreateSeedsScheduleAndEstimate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRuleService(store, nil, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rule, err := svc.Create(ctx, now, core.Rule{
		Title:     "Netflix",
		Amount:    core.ParseAmount("15.99"),
		Kind:      core.Expense,
		Category:  "Abbonamenti",
		Frequency: core.Monthly,
		StartDate: start,
		Active:    true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rule.ID == 0 {
		t.Errorf("rule was not assigned an ID")
	}
	if rule.EstimatedMonthly.Cents != 1599 {
		t.Errorf("estimated monthly = %d, want 1599", rule.EstimatedMonthly.Cents)
	}
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !rule.NextOccurrence.Equal(want) {
		t.Errorf("next occurrence = %v, want %v", rule.NextOccurrence, want)
	}
	if !rule.CreatedAt.Equal(now) || !rule.UpdatedAt.Equal(now) {
		t.Errorf("bookkeeping timestamps not set from now")
	}
}

func TestCreateRejectsInvalidRule(t *testing.T) {
	svc := NewRuleService(memory.New(), nil, nil)
	now := time.Now().UTC()

	_, err := svc.Create(context.Background(), now, core.Rule{
		Title:     "",
		Amount:    core.Money{Cents: 100},
		Kind:      core.Expense,
		Frequency: core.Monthly,
		StartDate: now,
	})
	if err == nil {
		t.Fatalf("expected validation error for empty title")
	}
}

func TestUpdateRecomputesEstimate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRuleService(store, nil, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, now, core.Rule{
		Title: "Gym", Amount: core.Money{Cents: 3000}, Kind: core.Expense,
		Frequency: core.Monthly, StartDate: start, Active: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	seeded := created.NextOccurrence

	// Amount-only edit: estimate changes, schedule untouched.
	edit := *created
	edit.Amount = core.Money{Cents: 100}
	edit.Frequency = core.Weekly

	later := now.Add(time.Hour)
	updated, err := svc.Update(ctx, later, edit)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.EstimatedMonthly.Cents != 400 {
		t.Errorf("estimated monthly = %d, want 400", updated.EstimatedMonthly.Cents)
	}
	// Frequency changed, so the schedule reseeds from the start date.
	if want := core.NextOccurrence(start, core.Weekly); !updated.NextOccurrence.Equal(want) {
		t.Errorf("next occurrence = %v, want reseed %v", updated.NextOccurrence, want)
	}
	if updated.NextOccurrence.Equal(seeded) {
		t.Errorf("schedule should have been reseeded on frequency change")
	}
}

// Editing only the amount must preserve progress through the current
// period; editing start or frequency resets it from scratch.
func TestUpdateReseedsOnlyOnScheduleChange(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRuleService(store, nil, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, now, core.Rule{
		Title: "Rent", Amount: core.Money{Cents: 85000}, Kind: core.Expense,
		Frequency: core.Monthly, StartDate: start, Active: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	edit := *created
	edit.Amount = core.Money{Cents: 90000}
	updated, err := svc.Update(ctx, now.Add(time.Hour), edit)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.NextOccurrence.Equal(created.NextOccurrence) {
		t.Errorf("amount-only edit moved the schedule: %v -> %v",
			created.NextOccurrence, updated.NextOccurrence)
	}

	edit = *updated
	edit.StartDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	updated, err = svc.Update(ctx, now.Add(2*time.Hour), edit)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if want := core.NextOccurrence(edit.StartDate, core.Monthly); !updated.NextOccurrence.Equal(want) {
		t.Errorf("start-date edit: next occurrence = %v, want %v", updated.NextOccurrence, want)
	}
}

func TestSetActiveRetractsReminderOnDeactivate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	notifier := newRecordingNotifier()
	scanner := NewReminderScanner(store, store, notifier, nil)
	svc := NewRuleService(store, scanner, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, now, core.Rule{
		Title: "Insurance", Amount: core.Money{Cents: 12000}, Kind: core.Expense,
		Frequency: core.Monthly, StartDate: now, Active: true,
		ReminderEnabled: true, ReminderDaysBefore: 3,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.MarkReminderRaised(ctx, created.ID, now); err != nil {
		t.Fatalf("MarkReminderRaised() error = %v", err)
	}

	if err := svc.SetActive(ctx, now.Add(time.Hour), created.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	got, _ := store.GetRule(ctx, created.ID)
	if got.Active {
		t.Errorf("rule still active")
	}
	if len(store.OutstandingReminders()) != 0 {
		t.Errorf("deactivation left an outstanding reminder")
	}

	// Inactive rules are excluded from due detection.
	if rules, _ := store.LoadActiveRules(ctx); len(rules) != 0 {
		t.Errorf("inactive rule still loads as active")
	}
}

func TestDeleteIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRuleService(store, nil, nil)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, now, core.Rule{
		Title: "Trial", Amount: core.Money{Cents: 500}, Kind: core.Expense,
		Frequency: core.Weekly, StartDate: now, Active: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); err == nil {
		t.Fatalf("deleted rule still readable")
	}
}

// A monthly €15.99 rule created on 2024-01-01, due-checked on
// 2024-02-01: one expense dated at the seeded occurrence, schedule one
// calendar month later, estimate cached at creation.
func TestMonthlyRuleEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewRuleService(store, nil, nil)

	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rule, err := svc.Create(ctx, createdAt, core.Rule{
		Title:     "Streaming",
		Amount:    core.ParseAmount("15.99"),
		Kind:      core.Expense,
		Category:  "Abbonamenti",
		Frequency: core.Monthly,
		StartDate: createdAt,
		Active:    true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rule.EstimatedMonthly.Cents != 1599 {
		t.Fatalf("estimated monthly = %d, want 1599", rule.EstimatedMonthly.Cents)
	}

	checkAt := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	p := NewProcessor(store, store, nil, nil)
	report, err := p.ExecuteDueBatch(ctx, checkAt)
	if err != nil {
		t.Fatalf("ExecuteDueBatch() error = %v", err)
	}
	if report.ExecutedCount() != 1 {
		t.Fatalf("executed = %d, want 1", report.ExecutedCount())
	}

	txs := store.Transactions()
	if len(txs) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(txs))
	}
	if txs[0].Amount.Cents != 1599 || txs[0].Kind != core.Expense {
		t.Errorf("transaction = %+v, want €15.99 expense", txs[0])
	}
	if want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC); !txs[0].OccurredAt.Equal(want) {
		t.Errorf("transaction dated %v, want seeded occurrence %v", txs[0].OccurredAt, want)
	}

	got, _ := store.GetRule(ctx, rule.ID)
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !got.NextOccurrence.Equal(want) {
		t.Errorf("next occurrence = %v, want %v", got.NextOccurrence, want)
	}
}
