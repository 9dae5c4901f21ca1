package parse

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/storage"
)

// Summary is the outcome of one parse run.
type Summary struct {
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"` // lost claims
	Pools     int    `json:"pools"`
	Loans     int    `json:"loans"`
	Facts     int    `json:"facts"`
	Elapsed   string `json:"elapsed"`
}

// Service drives a parse run: select downloaded entries, claim each one,
// fetch its sink object, and run the family's parser inside one transaction
// together with the processed-state flip, so a crash mid-file leaves the
// entry claimable again instead of half-processed-but-marked-done.
type Service struct {
	db       *database.DB
	entries  *catalog.Repository
	registry *Registry
	sink     storage.ObjectStorage
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewService creates the parse service.
func NewService(db *database.DB, entries *catalog.Repository, registry *Registry, sink storage.ObjectStorage, logger observability.Logger, metrics observability.Metrics) *Service {
	return &Service{
		db:       db,
		entries:  entries,
		registry: registry,
		sink:     sink,
		logger:   observability.Scoped(logger, "parse.service"),
		metrics:  metrics,
	}
}

// Run parses up to limit downloaded files of the given family (all known
// families when family is empty). A failure on one file marks that entry and
// moves on; the run only returns an error when selection itself fails.
func (s *Service) Run(ctx context.Context, family catalog.FileFamily, limit int) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	selected, err := s.entries.SelectForParse(ctx, family, limit)
	if err != nil {
		return summary, fmt.Errorf("select files to parse: %w", err)
	}
	s.logger.Info("parse run starting", "files", len(selected), "family", string(family))

	for i := range selected {
		entry := &selected[i]
		if ctx.Err() != nil {
			s.logger.Warn("run budget exhausted", "remaining", len(selected)-i)
			break
		}

		claimed, err := s.entries.Claim(ctx, entry.ID, []catalog.State{catalog.StateDownloaded}, catalog.StateProcessing)
		if err != nil {
			summary.Failed++
			s.logger.Error("claim failed", "filename", entry.Filename, "error", err)
			continue
		}
		if !claimed {
			summary.Skipped++
			continue
		}

		result, err := s.processEntry(ctx, entry)
		if err != nil {
			summary.Failed++
			s.metrics.IncrementCounter("parse.files.failed", map[string]string{"family": string(entry.FileType)})
			s.logger.Error("parse failed", "filename", entry.Filename,
				"content_error", IsContentError(err), "error", err)
			if IsContentError(err) {
				// A defect in the file itself: re-running cannot help, only
				// an explicit backfill retry should touch it again.
				if markErr := s.entries.MarkError(ctx, entry.ID, err.Error()); markErr != nil {
					s.logger.Error("mark error failed", "filename", entry.Filename, "error", markErr)
				}
			} else {
				// Transient failure: hand the claim back so the next run
				// picks the file up again.
				if _, relErr := s.entries.Claim(ctx, entry.ID, []catalog.State{catalog.StateProcessing}, catalog.StateDownloaded); relErr != nil {
					s.logger.Error("claim release failed", "filename", entry.Filename, "error", relErr)
				}
			}
			continue
		}

		summary.Processed++
		summary.Pools += result.Pools
		summary.Loans += result.Loans
		summary.Facts += result.Facts
		s.metrics.IncrementCounter("parse.files.processed", map[string]string{"family": string(entry.FileType)})
		s.logger.Info("file processed", "filename", entry.Filename,
			"pools", result.Pools, "loans", result.Loans, "facts", result.Facts, "malformed", result.Skipped)
	}

	summary.Elapsed = time.Since(start).String()
	return summary, nil
}

func (s *Service) processEntry(ctx context.Context, entry *catalog.Entry) (Result, error) {
	parser, err := s.registry.For(entry.FileType)
	if err != nil {
		return Result{}, err
	}
	if !entry.SinkLocation.Valid {
		return Result{}, fmt.Errorf("entry %s has no sink location", entry.Filename)
	}

	object, err := s.sink.Get(ctx, entry.SinkLocation.String)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", entry.SinkLocation.String, err)
	}
	raw, err := io.ReadAll(object)
	object.Close()
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", entry.SinkLocation.String, err)
	}

	meta := FileMeta{Filename: entry.Filename}
	if entry.FileDate.Valid {
		d := entry.FileDate.Time
		meta.FileDate = &d
	}

	var result Result
	err = s.db.Transaction(ctx, func(tx database.Executor) error {
		r, err := parser.Parse(ctx, tx, raw, meta)
		if err != nil {
			return err
		}
		result = r
		return s.entries.MarkProcessed(ctx, tx, entry.ID)
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
