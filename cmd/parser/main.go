// The parser turns downloaded disclosure files into warehouse rows. Each
// file is parsed and committed in a single database transaction together
// with its catalog state flip, so a crash never leaves half a file behind.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/parse"
	"github.com/anaishowland/oasive-db-sub000/internal/runlog"
	"github.com/anaishowland/oasive-db-sub000/internal/storage/s3"
	"github.com/anaishowland/oasive-db-sub000/internal/warehouse"
)

func main() {
	os.Exit(run())
}

func run() int {
	fileType := flag.String("file-type", "", "restrict to one file type (default: all known)")
	limit := flag.Int("limit", 0, "cap on files parsed this run (0 = no cap)")
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
	logger = observability.Scoped(logger, "parser")

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}

	var family catalog.FileFamily
	if *fileType != "" {
		family, err = catalog.ParseFamily(*fileType)
		if err != nil {
			logger.Error("Invalid flag", "error", err)
			return 1
		}
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

	sink, err := s3.New(&cfg.Storage, logger, metrics)
	if err != nil {
		logger.Error("Object storage setup failed", "error", err)
		return 1
	}

	pools := warehouse.NewPoolRepository(db, logger, metrics)
	loans := warehouse.NewLoanRepository(db, logger, metrics)
	facts := warehouse.NewFactRepository(db, logger, metrics)
	registry := parse.NewRegistry(
		parse.NewIssuanceParser(pools, facts, logger, metrics),
		parse.NewLoanLevelParser(pools, loans, logger, metrics),
		parse.NewFixedWidthLoanParser(pools, loans, logger, metrics),
		parse.NewFactorParser(pools, facts, logger, metrics),
	)

	entries := catalog.NewRepository(db, logger, metrics)
	svc := parse.NewService(db, entries, registry, sink, logger, metrics)

	runs := runlog.NewRepository(db, logger)
	runRow, err := runs.Start(ctx, "parser", string(family))
	if err != nil {
		logger.Error("Run log start failed", "error", err)
		return 1
	}

	summary, runErr := svc.Run(ctx, family, *limit)

	runRow.Processed = summary.Processed
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
	logger.Info("Run summary", "job", "parser", "run_id", runRow.ID, "summary", string(out))

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
