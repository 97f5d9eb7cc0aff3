package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"studyspend/internal/bus"
	"studyspend/internal/config"
	applog "studyspend/internal/log"
	"studyspend/internal/mirror"
	"studyspend/internal/store"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New(os.Getenv("LOG_LEVEL"), applog.ComponentMirror)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("Mirror requires AMQP_URL to consume change events")
		os.Exit(1)
	}
	if !cfg.MirrorConfigured() {
		logger.Error("Mirror requires GOOGLE_SPREADSHEET_ID and service account credentials")
		os.Exit(1)
	}

	st, err := store.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheets, err := mirror.NewSheetsClient(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName,
		credentialsJSON(cfg))
	if err != nil {
		logger.Error("Failed to initialize Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	busClient, err := bus.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer busClient.Close()

	m := mirror.New(st, sheets)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting mirror consumer", "queue", cfg.AMQPQueue)
		err := busClient.ConsumeChanges(ctx, func(ev *bus.ChangeEvent) error {
			return m.HandleChange(ctx, ev)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Mirror error", "error", err)
		os.Exit(1)
	}
	logger.Info("Mirror stopped gracefully")
}

func credentialsJSON(cfg *config.Config) []byte {
	if cfg.GoogleServiceAccountJSON != "" {
		return []byte(cfg.GoogleServiceAccountJSON)
	}
	if cfg.GoogleServiceAccountFile != "" {
		data, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err == nil {
			return data
		}
	}
	return nil
}
