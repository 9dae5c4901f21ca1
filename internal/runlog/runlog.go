// Package runlog records one audit row per job invocation: what ran, what it
// touched, and how it ended.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusPartial = "partial" // finished, but some files ended in error
	StatusError   = "error"
)

// Run is one ingest_run row.
type Run struct {
	ID          string     `db:"id"`
	Job         string     `db:"job"`
	Mode        string     `db:"mode"`
	Discovered  int        `db:"discovered"`
	Cataloged   int        `db:"cataloged"`
	Downloaded  int        `db:"downloaded"`
	Processed   int        `db:"processed"`
	Failed      int        `db:"failed"`
	Status      string     `db:"status"`
	Detail      *string    `db:"detail"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Repository persists run rows.
type Repository struct {
	db     database.Executor
	logger observability.Logger
	qb     squirrel.StatementBuilderType
}

// NewRepository creates the run log repository.
func NewRepository(db database.Executor, logger observability.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: observability.Scoped(logger, "runlog.repository"),
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Start opens a run row and returns it with a fresh run id.
func (r *Repository) Start(ctx context.Context, job, mode string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Job:       job,
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	query := r.qb.Insert("ingest_run").
		Columns("id", "job", "mode", "status", "started_at").
		Values(run.ID, run.Job, run.Mode, run.Status, run.StartedAt)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	r.logger.Info("run started", "run_id", run.ID, "job", job, "mode", mode)
	return run, nil
}

// Complete closes the run row with its final counts and status.
func (r *Repository) Complete(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.CompletedAt = &now

	query := r.qb.Update("ingest_run").
		Set("discovered", run.Discovered).
		Set("cataloged", run.Cataloged).
		Set("downloaded", run.Downloaded).
		Set("processed", run.Processed).
		Set("failed", run.Failed).
		Set("status", run.Status).
		Set("detail", run.Detail).
		Set("completed_at", run.CompletedAt).
		Where(squirrel.Eq{"id": run.ID})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("complete run %s: %w", run.ID, err)
	}
	r.logger.Info("run completed", "run_id", run.ID, "status", run.Status,
		"downloaded", run.Downloaded, "processed", run.Processed, "failed", run.Failed)
	return nil
}
