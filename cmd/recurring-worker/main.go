package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"ricorrenze/internal/amqp"
	"ricorrenze/internal/config"
	"ricorrenze/internal/log"
	"ricorrenze/internal/services"
	"ricorrenze/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// AMQP client for transaction mirror messages and reminder delivery.
	// The ledger-worker consumes the former; a notification consumer the
	// latter.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPTransactionsQueue, cfg.AMQPRemindersQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled - transactions will not be mirrored and reminders stay local")
	}

	ledger := services.NewLedgerService(sqliteRepo, amqpClient)
	notifier := amqp.NewNotifier(amqpClient)
	scanner := services.NewReminderScanner(sqliteRepo, sqliteRepo, notifier, logger)
	processor := services.NewProcessor(sqliteRepo, ledger, scanner, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring processor configured",
		"process_interval", cfg.ProcessInterval,
		"reminder_scan_interval", cfg.ReminderScanInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	// Run an initial pass on startup so a restart never delays due rules.
	runBatch(ctx, logger, processor)
	runScan(ctx, logger, scanner)

	processTicker := time.NewTicker(cfg.ProcessInterval)
	defer processTicker.Stop()
	scanTicker := time.NewTicker(cfg.ReminderScanInterval)
	defer scanTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-processTicker.C:
				runBatch(ctx, logger, processor)
			case <-scanTicker.C:
				runScan(ctx, logger, scanner)
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down recurring-worker...")
	cancel()

	// Give in-flight batch work a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Recurring-worker shutdown complete")
}

func runBatch(ctx context.Context, logger *log.Logger, processor *services.Processor) {
	report, err := processor.ExecuteDueBatch(ctx, time.Now())
	if err != nil {
		logger.Error("Batch execution failed", log.FieldError, err)
		return
	}
	logger.Info("Batch execution complete",
		"checked", report.Checked,
		"due", report.Due,
		log.FieldProcessed, report.ExecutedCount(),
		log.FieldFailed, report.FailedCount())
}

func runScan(ctx context.Context, logger *log.Logger, scanner *services.ReminderScanner) {
	report, err := scanner.Scan(ctx, time.Now())
	if err != nil {
		logger.Error("Reminder scan failed", log.FieldError, err)
		return
	}
	logger.Info("Reminder scan complete",
		"candidates", report.Candidates,
		"raised", report.RaisedCount(),
		log.FieldFailed, report.FailedCount())
}
