package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/core"
	"ricorrenze/internal/sheets"
	"ricorrenze/internal/storage"
)

// MirrorWorker copies recorded transactions from SQLite to the external
// ledger sheet. It consumes transaction messages from AMQP and also
// sweeps for pending rows, in case messages are lost.
type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	appender  sheets.TransactionAppender
	batchSize int
}

func NewMirrorWorker(storage *storage.SQLiteRepository, appender sheets.TransactionAppender, batchSize int) *MirrorWorker {
	return &MirrorWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleTransactionMessage mirrors a single transaction announced over
// AMQP.
func (w *MirrorWorker) HandleTransactionMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction message",
		"transaction_id", msg.TransactionID,
		"rule_id", msg.RuleID)

	tx, err := w.storage.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.mirrorToSheet(ctx, tx.ID, *tx); err != nil {
		return fmt.Errorf("mirror transaction to sheet: %w", err)
	}

	return nil
}

// ProcessPending mirrors transactions that were recorded but never
// mirrored. This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.ListPendingMirror(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, tx := range pending {
		if err := w.mirrorToSheet(ctx, tx.ID, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction",
				"transaction_id", tx.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSweep mirrors any backlog found at worker startup. Useful to
// recover from missed messages or worker downtime.
func (w *MirrorWorker) StartupSweep(ctx context.Context) error {
	pending, err := w.storage.ListPendingMirror(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending transactions for startup sweep: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, tx := range pending {
		if err := w.mirrorToSheet(ctx, tx.ID, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during startup",
				"transaction_id", tx.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sweep completed",
		"total", len(pending),
		"mirrored", successCount,
		"errors", errorCount)

	return nil
}

func (w *MirrorWorker) mirrorToSheet(ctx context.Context, id int64, tx core.Transaction) error {
	ref, err := w.appender.Append(ctx, tx)
	if err != nil {
		if markErr := w.storage.MarkMirrorError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark mirror error",
				"transaction_id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkMirrored(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as mirrored",
			"transaction_id", id, "error", err)
		// Don't return error here - the append actually worked
	}

	slog.InfoContext(ctx, "Successfully mirrored transaction",
		"transaction_id", id,
		"sheet_ref", ref,
		"description", tx.Description,
		"amount_cents", tx.Amount.Cents)

	return nil
}
