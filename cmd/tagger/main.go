// The tagger runs the classification and scoring engine over warehouse
// pools. The reference rate is resolved once at startup and every pool in
// the run is scored against that same snapshot.
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
	"github.com/anaishowland/oasive-db-sub000/internal/tagging"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

func main() {
	os.Exit(run())
}

func run() int {
	limit := flag.Int("limit", 0, "cap on pools tagged this run (0 = no cap)")
	batchSize := flag.Int("batch-size", 0, "pools fetched per page (0 = configured default)")
	rate := flag.Float64("rate", 0, "override the pinned reference rate")
	all := flag.Bool("all", false, "re-tag pools that already carry tags")
	flag.Parse()

	var rateOverride *float64
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "rate" {
			rateOverride = rate
		}
	})

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
	logger = observability.Scoped(logger, "tagger")

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}

	cal, err := tagging.LoadCalibration(cfg.Tagging.CalibrationPath)
	if err != nil {
		logger.Error("Calibration load failed", "error", err)
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

	pools := warehouse.NewPoolRepository(db, logger, metrics)
	rates := ratefeed.NewService(
		ratefeed.NewClient(cfg.RateFeed, logger, metrics),
		ratefeed.NewRepository(db, logger, metrics),
		cfg.RateFeed, logger)

	pageSize := cfg.Tagging.BatchSize
	if *batchSize > 0 {
		pageSize = *batchSize
	}

	runner := tagging.NewRunner(tagging.NewEngine(cal), pools, rates,
		pageSize, cfg.Tagging.FallbackRate, logger, metrics)

	runs := runlog.NewRepository(db, logger)
	mode := "untagged"
	if *all {
		mode = "all"
	}
	runRow, err := runs.Start(ctx, "tagger", mode)
	if err != nil {
		logger.Error("Run log start failed", "error", err)
		return 1
	}

	summary, runErr := runner.Run(ctx, *all, *limit, rateOverride)

	runRow.Processed = summary.Tagged
	runRow.Failed = summary.Failed
	switch {
	case runErr != nil:
		runRow.Status = runlog.StatusError
		msg := runErr.Error()
		runRow.Detail = &msg
	case summary.Failed > 0:
		runRow.Status = runlog.StatusPartial
	default:
		runRow.Status = runlog.StatusSuccess
	}
	completeRun(runs, runRow, logger)

	out, _ := json.Marshal(summary)
	logger.Info("Run summary", "job", "tagger", "run_id", runRow.ID, "summary", string(out))

	if runErr != nil {
		logger.Error("Run failed", "error", runErr)
		return 1
	}
	if summary.Failed > 0 {
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
