package services

import (
	"context"
	"fmt"
	"log/slog"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/core"
	"ricorrenze/internal/storage"
)

// LedgerService records materialized transactions in SQLite and
// announces them over AMQP for the ledger mirror worker.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// RecordTransaction saves the transaction locally and publishes a
// mirror message. Publish failure is logged but never fails the
// recording: the transaction is already durable in SQLite and the
// mirror worker reconciles later.
func (s *LedgerService) RecordTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	// Save to SQLite first (fast, reliable)
	id, err := s.storage.RecordTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	if err := s.publishRecorded(ctx, id, tx.RuleID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction message",
			"transaction_id", id, "rule_id", tx.RuleID, "error", err)
		// Don't fail the recording - the transaction is saved locally
	}

	return id, nil
}

func (s *LedgerService) publishRecorded(ctx context.Context, transactionID, ruleID int64) error {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping transaction message")
		return nil
	}

	return s.amqpClient.PublishTransactionRecorded(ctx, transactionID, ruleID)
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
