package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"GiftScout/internal/app"
	"GiftScout/internal/config"
	"GiftScout/internal/logging"
)

func main() {
	// A missing .env file is fine; the environment may be set externally.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "run"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "run":
		report, err := application.Run(ctx)
		if err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		logger.Info("run finished",
			"run_id", report.RunID,
			"discovered", report.Discovered,
			"queued", report.Accepted,
			"published", report.Published,
			"rejected", report.Rejected,
			"errors", report.Errors)

	case "reconcile":
		report, err := application.Reconcile(ctx)
		if err != nil {
			logger.Error("reconciliation failed", "error", err)
			os.Exit(1)
		}
		logger.Info("reconciliation finished",
			"delisted", report.Delisted,
			"resurrected", report.Resurrected,
			"repriced", report.Repriced,
			"errors", report.Errors)

	case "requeue":
		ids := os.Args[2:]
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "usage: giftscout requeue <commerce-id> [<commerce-id> ...]")
			os.Exit(2)
		}
		count, err := application.Requeue(ctx, ids)
		if err != nil {
			logger.Error("requeue failed", "error", err)
			os.Exit(1)
		}
		logger.Info("requeue finished", "requested", len(ids), "requeued", count)

	case "daemon":
		logger.Info("starting recurring runs", "interval_hours", cfg.Pipeline.RunIntervalHours)
		if err := application.Serve(ctx); err != nil {
			logger.Error("daemon stopped", "error", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (expected run, reconcile, requeue or daemon)\n", mode)
		os.Exit(2)
	}
}
