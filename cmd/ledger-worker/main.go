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
	gsheet "ricorrenze/internal/sheets/google"
	"ricorrenze/internal/storage"
	"ricorrenze/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentSheets)
	log.SetDefault(logger)

	logger.Info("Starting ledger-worker")

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

	// Google Sheets client for the ledger mirror (optional)
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err = gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPTransactionsQueue, cfg.AMQPRemindersQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mirrorWorker *worker.MirrorWorker
	if sheetsClient != nil {
		mirrorWorker = worker.NewMirrorWorker(sqliteRepo, sheetsClient, cfg.MirrorBatchSize)

		// On startup, mirror any transactions that were missed while down
		logger.Info("Performing startup sweep...")
		if err := mirrorWorker.StartupSweep(ctx); err != nil {
			logger.Error("Failed startup sweep", log.FieldError, err)
			// Don't exit - continue with normal operation
		}
	} else {
		logger.Info("Skipping ledger mirror operations - no Sheets client available")
	}

	if mirrorWorker != nil {
		go func() {
			err := amqpClient.ConsumeTransactionRecorded(ctx, func(msg *amqp.TransactionRecordedMessage) error {
				return mirrorWorker.HandleTransactionMessage(ctx, msg)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
			cancel()
		}()

		// Periodic sweep for any missed messages
		ticker := time.NewTicker(cfg.MirrorSweepInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := mirrorWorker.ProcessPending(ctx); err != nil {
						logger.Error("Periodic sweep failed", log.FieldError, err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no mirror worker available")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down ledger-worker...")
	cancel()

	// Give in-flight deliveries a moment to finish
	time.Sleep(2 * time.Second)
	logger.Info("Ledger-worker shutdown complete")
}
