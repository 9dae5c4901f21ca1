package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/anaishowland/oasive-db-sub000/internal/database"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

// Filter restricts download selection. An empty Families slice selects every
// known family; FamilyUnknown is only ever selected when named explicitly.
type Filter struct {
	Families        []FileFamily
	FilenamePattern string // substring match on filename
	MaxFiles        int
	IncludeError    bool       // backfill retries error entries
	NewerThan       *time.Time // incremental watermark bound on file_date
}

// Repository persists catalog entries.
type Repository struct {
	db      database.Executor
	logger  observability.Logger
	metrics observability.Metrics
	qb      squirrel.StatementBuilderType
}

// NewRepository creates the catalog repository.
func NewRepository(db database.Executor, logger observability.Logger, metrics observability.Metrics) *Repository {
	return &Repository{
		db:      db,
		logger:  observability.Scoped(logger, "catalog.repository"),
		metrics: metrics,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByRemotePath fetches one entry by its unique remote path. Returns
// (nil, nil) when absent.
func (r *Repository) GetByRemotePath(ctx context.Context, remotePath string) (*Entry, error) {
	query := r.qb.Select("*").From("catalog_entry").Where(squirrel.Eq{"remote_path": remotePath})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry Entry
	err = r.db.Get(ctx, &entry, sqlQuery, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return &entry, nil
}

// Insert creates a new entry in state pending.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	query := r.qb.Insert("catalog_entry").
		Columns("remote_path", "filename", "file_type", "file_date",
			"remote_size", "remote_modified_at", "state", "created_at", "updated_at").
		Values(e.RemotePath, e.Filename, e.FileType, e.FileDate,
			e.RemoteSize, e.RemoteModifiedAt, StatePending, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (remote_path) DO NOTHING RETURNING id")

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	row := r.db.QueryRow(ctx, sqlQuery, args...)
	if err := row.Scan(&e.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost an insert race with a concurrent discovery run.
			return nil
		}
		return fmt.Errorf("insert catalog entry: %w", err)
	}

	r.metrics.IncrementCounter("catalog.insert", map[string]string{"file_type": string(e.FileType)})
	return nil
}

// RefreshMetadata updates remote size and modified time without touching the
// lifecycle state. Metadata drift never resets a processed file to pending.
func (r *Repository) RefreshMetadata(ctx context.Context, remotePath string, size int64, modifiedAt time.Time) error {
	query := r.qb.Update("catalog_entry").
		Set("remote_size", size).
		Set("remote_modified_at", modifiedAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"remote_path": remotePath})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("refresh catalog metadata: %w", err)
	}
	return nil
}

// SelectForDownload returns entries eligible for transfer under the filter,
// ordered by file date ascending so partial runs make forward progress on the
// oldest files first. Unknown-family entries are excluded unless the filter
// names FamilyUnknown explicitly.
func (r *Repository) SelectForDownload(ctx context.Context, f Filter) ([]Entry, error) {
	states := []State{StatePending}
	if f.IncludeError {
		states = append(states, StateError)
	}

	families := f.Families
	if len(families) == 0 {
		families = KnownFamilies
	}

	query := r.qb.Select("*").From("catalog_entry").
		Where(squirrel.Eq{"state": states}).
		Where(squirrel.Eq{"file_type": families}).
		OrderBy("file_date ASC NULLS LAST", "id ASC")

	if f.FilenamePattern != "" {
		query = query.Where(squirrel.Like{"filename": "%" + f.FilenamePattern + "%"})
	}
	if f.NewerThan != nil {
		query = query.Where(squirrel.Gt{"file_date": *f.NewerThan})
	}
	if f.MaxFiles > 0 {
		query = query.Limit(uint64(f.MaxFiles))
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []Entry
	if err := r.db.Select(ctx, &entries, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("select entries for download: %w", err)
	}
	return entries, nil
}

// SelectForParse returns downloaded entries awaiting processing, oldest file
// date first.
func (r *Repository) SelectForParse(ctx context.Context, family FileFamily, limit int) ([]Entry, error) {
	query := r.qb.Select("*").From("catalog_entry").
		Where(squirrel.Eq{"state": StateDownloaded}).
		OrderBy("file_date ASC NULLS LAST", "id ASC")

	if family != "" {
		query = query.Where(squirrel.Eq{"file_type": family})
	} else {
		query = query.Where(squirrel.Eq{"file_type": KnownFamilies})
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []Entry
	if err := r.db.Select(ctx, &entries, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("select entries for parse: %w", err)
	}
	return entries, nil
}

// Claim atomically flips an entry from one of the given states into the
// target state. It returns false when a concurrent invocation won the race;
// the caller treats that as a no-op skip, not an error.
func (r *Repository) Claim(ctx context.Context, id int64, from []State, to State) (bool, error) {
	query := r.qb.Update("catalog_entry").
		Set("state", to).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"state": from})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	result, err := r.db.Execute(ctx, sqlQuery, args...)
	if err != nil {
		return false, fmt.Errorf("claim catalog entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	if rows == 0 {
		r.metrics.IncrementCounter("catalog.claim.lost", nil)
		return false, nil
	}
	return true, nil
}

// MarkDownloaded records the sink location and advances the entry to
// downloaded, clearing any previous error.
func (r *Repository) MarkDownloaded(ctx context.Context, id int64, sinkLocation string) error {
	query := r.qb.Update("catalog_entry").
		Set("state", StateDownloaded).
		Set("sink_location", sinkLocation).
		Set("downloaded_at", squirrel.Expr("NOW()")).
		Set("error_message", nil).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("mark downloaded: %w", err)
	}

	r.metrics.IncrementCounter("catalog.state.downloaded", nil)
	return nil
}

// MarkProcessed advances the entry to processed. Runs on the same Executor
// as the record commit so the flag and the records land atomically.
func (r *Repository) MarkProcessed(ctx context.Context, exec database.Executor, id int64) error {
	query := r.qb.Update("catalog_entry").
		Set("state", StateProcessed).
		Set("processed_at", squirrel.Expr("NOW()")).
		Set("error_message", nil).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := exec.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MarkError records a failure message and moves the entry to error state.
// The message is truncated to fit the column.
func (r *Repository) MarkError(ctx context.Context, id int64, errMsg string) error {
	if len(errMsg) > 500 {
		errMsg = errMsg[:500]
	}

	query := r.qb.Update("catalog_entry").
		Set("state", StateError).
		Set("error_message", errMsg).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.Execute(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("mark error: %w", err)
	}

	r.metrics.IncrementCounter("catalog.state.error", nil)
	return nil
}

// Watermark returns the most recent file date among processed entries of the
// given family, or nil when none have been processed. Incremental runs select
// only entries newer than this.
func (r *Repository) Watermark(ctx context.Context, family FileFamily) (*time.Time, error) {
	query := r.qb.Select("MAX(file_date)").From("catalog_entry").
		Where(squirrel.Eq{"state": StateProcessed}).
		Where(squirrel.Eq{"file_type": family})

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var mark sql.NullTime
	row := r.db.QueryRow(ctx, sqlQuery, args...)
	if err := row.Scan(&mark); err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}
	if !mark.Valid {
		return nil, nil
	}
	t := mark.Time
	return &t, nil
}

// RequeueStale returns entries stuck mid-claim longer than the staleness
// threshold to their last durable state: a stale download lost its bytes and
// goes back to pending, while a stale parse still has its sink object and
// goes back to downloaded. The threshold is explicit configuration, never
// inferred.
func (r *Repository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	requeues := []struct {
		from State
		to   State
	}{
		{StateDownloading, StatePending},
		{StateProcessing, StateDownloaded},
	}

	var total int64
	for _, rq := range requeues {
		query := r.qb.Update("catalog_entry").
			Set("state", rq.to).
			Set("updated_at", squirrel.Expr("NOW()")).
			Where(squirrel.Eq{"state": rq.from}).
			Where(squirrel.Lt{"updated_at": cutoff})

		sqlQuery, args, err := query.ToSql()
		if err != nil {
			return total, fmt.Errorf("build query: %w", err)
		}

		result, err := r.db.Execute(ctx, sqlQuery, args...)
		if err != nil {
			return total, fmt.Errorf("requeue stale %s entries: %w", rq.from, err)
		}

		rows, _ := result.RowsAffected()
		total += rows
	}

	if total > 0 {
		r.logger.Warn("Requeued stale catalog entries", "count", total, "older_than", olderThan.String())
		r.metrics.AddToCounter("catalog.requeue.stale", total, nil)
	}
	return total, nil
}
