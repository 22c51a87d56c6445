package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ebarrios/centavo/internal/autodebit"
	"github.com/ebarrios/centavo/internal/infra/postgres"
	"github.com/ebarrios/centavo/internal/ledger"
	"github.com/ebarrios/centavo/pkg/config"
	"github.com/ebarrios/centavo/pkg/logger"
)

// Batch runner for due auto-debits. Meant to be driven by cron, once a day;
// reruns are safe because executed debits are rescheduled past today.
func main() {
	var (
		dryRun  = flag.Bool("dry-run", false, "list due auto-debits without executing them")
		dateStr = flag.String("date", "", "run the pass as of this date (YYYY-MM-DD, defaults to today)")
	)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.Env).WithField("component", "autodebit-runner")

	today := time.Now()
	if *dateStr != "" {
		today, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -date value %q: use YYYY-MM-DD\n", *dateStr)
			os.Exit(1)
		}
	}

	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledgerSvc := ledger.NewService(postgres.NewLedgerRepository(db), log)
	autoDebitSvc := autodebit.NewService(postgres.NewAutoDebitRepository(db), ledgerSvc, log)

	if *dryRun {
		due, err := autoDebitSvc.ListDue(ctx, today)
		if err != nil {
			log.Error("Failed to list due auto-debits", "error", err)
			os.Exit(1)
		}
		log.Info("Dry run", "date", today.Format("2006-01-02"), "due", len(due))
		for _, d := range due {
			log.Info("Due auto-debit",
				"id", d.ID,
				"name", d.Name,
				"amount", d.Amount,
				"currency", d.Currency,
				"next_execution", d.NextExecution.Format("2006-01-02"),
			)
		}
		return
	}

	result, err := autoDebitSvc.RunDuePass(ctx, today)
	if err != nil {
		log.Error("Auto-debit pass failed", "error", err)
		os.Exit(1)
	}

	log.Info("Auto-debit pass finished",
		"date", today.Format("2006-01-02"),
		"executed", result.Executed,
		"failed", result.Failed,
	)
	for _, e := range result.Errors {
		log.Warn("Auto-debit execution failed", "id", e.ID, "reason", e.Reason)
	}

	if result.Failed > 0 {
		os.Exit(2)
	}
}
