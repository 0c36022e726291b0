package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/storage/memory"
)

// flakyLedger wraps the memory ledger and fails RecordTransaction for
// selected rule IDs.
type flakyLedger struct {
	*memory.Store
	failFor map[int64]bool
}

func (l *flakyLedger) RecordTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if l.failFor[tx.RuleID] {
		return 0, errors.New("ledger write failed")
	}
	return l.Store.RecordTransaction(ctx, tx)
}

// brokenStore fails every read, simulating an unreadable rule set.
type brokenStore struct {
	memory.Store
}

func (s *brokenStore) LoadActiveRules(context.Context) ([]core.Rule, error) {
	return nil, errors.New("database unavailable")
}

// recordingNotifier captures raise/retract calls and can fail
// selectively per rule.
type recordingNotifier struct {
	mu        sync.Mutex
	enabled   bool
	failFor   map[int64]bool
	raised    []int64
	retracted []int64
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{enabled: true, failFor: map[int64]bool{}}
}

func (n *recordingNotifier) RaiseReminder(_ context.Context, ruleID int64, _ string, _ string, _ int, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[ruleID] {
		return errors.New("notification delivery failed")
	}
	n.raised = append(n.raised, ruleID)
	return nil
}

func (n *recordingNotifier) RetractReminder(_ context.Context, ruleID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retracted = append(n.retracted, ruleID)
	return nil
}

func (n *recordingNotifier) Enabled() bool { return n.enabled }

func (n *recordingNotifier) raisedIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.raised...)
}

func (n *recordingNotifier) retractedIDs() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.retracted...)
}

func mustCreate(ctx context.Context, store *memory.Store, r core.Rule) core.Rule {
	if err := store.CreateRule(ctx, &r); err != nil {
		panic(err)
	}
	return r
}
