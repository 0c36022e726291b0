package sheets

import (
	"context"

	"ricorrenze/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionAppender mirrors materialized transactions to an
	// external ledger sheet.
	TransactionAppender interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
