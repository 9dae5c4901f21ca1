// The ingestor discovers files on the remote disclosure server, catalogs
// them, and transfers the selected batch into the object-storage sink. It is
// a short-lived job: one invocation, one run-log row, exit code 1 when any
// file ended the run in error state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/downloader"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/remote"
	"github.com/anaishowland/oasive-db-sub000/internal/runlog"
	"github.com/anaishowland/oasive-db-sub000/internal/storage/s3"
)

func main() {
	os.Exit(run())
}

func run() int {
	modeFlag := flag.String("mode", "incremental", "catalog, incremental or backfill")
	fileTypes := flag.String("file-types", "", "comma-separated file types to select (default: all known)")
	filePattern := flag.String("file-pattern", "", "substring filter on filenames")
	maxFiles := flag.Int("max-files", 0, "cap on files transferred this run (0 = no cap)")
	skipTagging := flag.Bool("skip-tagging", false, "recorded in the run log; tagging runs as its own job")
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
	logger = observability.Scoped(logger, "ingestor")

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}
	if err := cfg.SFTP.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}

	mode, err := downloader.ParseMode(*modeFlag)
	if err != nil {
		logger.Error("Invalid flag", "error", err)
		return 1
	}

	families, err := parseFamilies(*fileTypes)
	if err != nil {
		logger.Error("Invalid flag", "error", err)
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

	sink, err := s3.New(&cfg.Storage, logger, metrics)
	if err != nil {
		logger.Error("Object storage setup failed", "error", err)
		return 1
	}

	client, err := remote.NewSFTPClient(&cfg.SFTP, logger)
	if err != nil {
		logger.Error("Remote server connection failed", "error", err)
		return 1
	}
	defer client.Close()

	entries := catalog.NewRepository(db, logger, metrics)
	reconciler := catalog.NewReconciler(entries, logger, metrics)
	svc := downloader.NewService(entries, reconciler, client, sink,
		cfg.SFTP.RootDir, cfg.Downloader, logger, metrics)

	runs := runlog.NewRepository(db, logger)
	runRow, err := runs.Start(ctx, "ingestor", string(mode))
	if err != nil {
		logger.Error("Run log start failed", "error", err)
		return 1
	}

	summary, runErr := svc.Run(ctx, downloader.Options{
		Mode:            mode,
		Families:        families,
		FilenamePattern: *filePattern,
		MaxFiles:        *maxFiles,
	})

	runRow.Discovered = summary.Discovered
	runRow.Cataloged = summary.Cataloged
	runRow.Downloaded = summary.Downloaded
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
	logger.Info("Run summary",
		"job", "ingestor",
		"mode", string(mode),
		"run_id", runRow.ID,
		"skip_tagging", *skipTagging,
		"summary", string(out))

	if runErr != nil {
		logger.Error("Run failed", "error", runErr)
		return 1
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func parseFamilies(csv string) ([]catalog.FileFamily, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var families []catalog.FileFamily
	for _, part := range strings.Split(csv, ",") {
		f, err := catalog.ParseFamily(part)
		if err != nil {
			return nil, err
		}
		families = append(families, f)
	}
	return families, nil
}

// completeRun writes the final run-log row on its own deadline, so a run
// that exhausted its budget still gets its outcome recorded.
func completeRun(runs *runlog.Repository, run *runlog.Run, logger observability.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runs.Complete(ctx, run); err != nil {
		logger.Error("Run log completion failed", "run_id", run.ID, "error", err)
	}
}
