// The ratefeed job pulls reference-rate observations from the external feed,
// starting after the latest stored observation date, and upserts them for
// the tagger to pin against.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/ratefeed"
	"github.com/anaishowland/oasive-db-sub000/internal/runlog"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return 1
	}

	logger, metrics, err := observability.New(cfg.ServiceName, cfg.LogLevel, cfg.MetricsAdapter, cfg.JSONLogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "observability: %v\n", err)
		return 1
	}
	logger = observability.Scoped(logger, "ratefeed")

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}
	if err := cfg.RateFeed.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	db, err := database.New(&cfg.Database, logger, metrics)
	if err != nil {
		logger.Error("Database connection failed", "error", err)
		return 1
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		logger.Error("Database ping failed", "error", err)
		return 1
	}

	svc := ratefeed.NewService(
		ratefeed.NewClient(cfg.RateFeed, logger, metrics),
		ratefeed.NewRepository(db, logger, metrics),
		cfg.RateFeed, logger)

	runs := runlog.NewRepository(db, logger)
	runRow, err := runs.Start(ctx, "ratefeed", cfg.RateFeed.RateSeries)
	if err != nil {
		logger.Error("Run log start failed", "error", err)
		return 1
	}

	summary, runErr := svc.Run(ctx)

	runRow.Processed = summary.Stored
	if runErr != nil {
		runRow.Status = runlog.StatusError
		msg := runErr.Error()
		runRow.Detail = &msg
	} else {
		runRow.Status = runlog.StatusSuccess
	}
	completeRun(runs, runRow, logger)

	out, _ := json.Marshal(summary)
	logger.Info("Run summary", "job", "ratefeed", "run_id", runRow.ID, "summary", string(out))

	if runErr != nil {
		logger.Error("Run failed", "error", runErr)
		return 1
	}
	return 0
}

func completeRun(runs *runlog.Repository, run *runlog.Run, logger observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runs.Complete(ctx, run); err != nil {
		logger.Error("Run log completion failed", "run_id", run.ID, "error", err)
	}
}
