// Package memory provides an in-memory rule store, reminder store and
// ledger. It backs tests and AMQP-less local runs; the SQLite
// repository is the durable implementation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ricorrenze/internal/core"
)

type Store struct {
	mu          sync.Mutex
	nextRuleID  int64
	nextTxID    int64
	rules       map[int64]core.Rule
	txs         []core.Transaction
	outstanding map[int64]time.Time
}

func New() *Store {
	return &Store{
		rules:       make(map[int64]core.Rule),
		outstanding: make(map[int64]time.Time),
	}
}

func (s *Store) LoadActiveRules(_ context.Context) ([]core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Rule
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (s *Store) ListRules(_ context.Context) ([]core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

func (s *Store) GetRule(_ context.Context, id int64) (*core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %d not found", id)
	}
	return &r, nil
}

func (s *Store) CreateRule(_ context.Context, r *core.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRuleID++
	r.ID = s.nextRuleID
	s.rules[r.ID] = *r
	return nil
}

func (s *Store) UpdateRule(_ context.Context, r *core.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		return fmt.Errorf("rule %d not found", r.ID)
	}
	s.rules[r.ID] = *r
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	delete(s.outstanding, id)
	return nil
}

func (s *Store) MarkReminderRaised(_ context.Context, ruleID int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outstanding[ruleID]; ok {
		return false, nil
	}
	s.outstanding[ruleID] = at
	return true, nil
}

func (s *Store) ClearReminder(_ context.Context, ruleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outstanding, ruleID)
	return nil
}

func (s *Store) RecordTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	tx.ID = s.nextTxID
	s.txs = append(s.txs, tx)
	return tx.ID, nil
}

func (s *Store) ListTransactionsByRule(_ context.Context, ruleID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.RuleID == ruleID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Transactions returns a copy of every recorded transaction.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txs...)
}

// OutstandingReminders returns the rule IDs with an outstanding
// reminder, sorted for stable assertions.
func (s *Store) OutstandingReminders() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.outstanding))
	for id := range s.outstanding {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortRules(rules []core.Rule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}
