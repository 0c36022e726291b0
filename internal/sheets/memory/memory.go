package memory

import (
	"context"
	"fmt"
	"sync"

	"ricorrenze/internal/core"
	ports "ricorrenze/internal/sheets"
)

// Appender is an in-memory TransactionAppender for tests.
type Appender struct {
	mu   sync.Mutex
	rows []core.Transaction

	// FailWith, when set, makes every Append return this error.
	FailWith error
}

var _ ports.TransactionAppender = (*Appender)(nil)

func New() *Appender {
	return &Appender{}
}

func (a *Appender) Append(_ context.Context, tx core.Transaction) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailWith != nil {
		return "", a.FailWith
	}
	a.rows = append(a.rows, tx)
	return fmt.Sprintf("row-%d", len(a.rows)), nil
}

// Rows returns a copy of the appended transactions.
func (a *Appender) Rows() []core.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.Transaction, len(a.rows))
	copy(out, a.rows)
	return out
}
