package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/remote"
)

// ReconcileResult summarizes one discovery pass.
type ReconcileResult struct {
	New       int
	Updated   int
	Unchanged int
}

// Store is the catalog surface discovery needs. Satisfied by *Repository.
type Store interface {
	GetByRemotePath(ctx context.Context, remotePath string) (*Entry, error)
	Insert(ctx context.Context, e *Entry) error
	RefreshMetadata(ctx context.Context, remotePath string, size int64, modifiedAt time.Time) error
}

// Reconciler folds a remote listing into the catalog.
type Reconciler struct {
	store   Store
	logger  observability.Logger
	metrics observability.Metrics
}

// NewReconciler creates a Reconciler over the given store.
func NewReconciler(store Store, logger observability.Logger, metrics observability.Metrics) *Reconciler {
	return &Reconciler{
		store:   store,
		logger:  observability.Scoped(logger, "catalog.reconcile"),
		metrics: metrics,
	}
}

// Reconcile upserts every remote-listed file into the catalog. New paths are
// inserted in state pending; known paths whose remote size or modified time
// drifted get their metadata refreshed with the lifecycle state untouched.
// Files absent from the listing are left alone: the remote server is not
// authoritative for historical retention.
func (r *Reconciler) Reconcile(ctx context.Context, listing []remote.FileInfo) (ReconcileResult, error) {
	var result ReconcileResult

	for _, f := range listing {
		existing, err := r.store.GetByRemotePath(ctx, f.Path)
		if err != nil {
			return result, fmt.Errorf("reconcile %s: %w", f.Path, err)
		}

		if existing == nil {
			entry := newEntry(f)
			if err := r.store.Insert(ctx, entry); err != nil {
				return result, fmt.Errorf("reconcile insert %s: %w", f.Path, err)
			}
			if entry.FileType == FamilyUnknown {
				r.logger.Warn("Cataloged file with unknown type; excluded from downloads",
					"remote_path", f.Path)
			}
			result.New++
			continue
		}

		if metadataDrifted(existing, f) {
			if err := r.store.RefreshMetadata(ctx, f.Path, f.Size, f.ModifiedAt); err != nil {
				return result, fmt.Errorf("reconcile refresh %s: %w", f.Path, err)
			}
			result.Updated++
			continue
		}

		result.Unchanged++
	}

	r.logger.Info("Reconcile complete",
		"discovered", len(listing),
		"new", result.New,
		"updated", result.Updated,
		"unchanged", result.Unchanged)
	r.metrics.RecordHistogram("catalog.reconcile.new", float64(result.New), nil)

	return result, nil
}

func newEntry(f remote.FileInfo) *Entry {
	e := &Entry{
		RemotePath: f.Path,
		Filename:   f.Name,
		FileType:   ClassifyFilename(f.Name),
		State:      StatePending,
	}
	if f.Size > 0 {
		e.RemoteSize = sql.NullInt64{Int64: f.Size, Valid: true}
	}
	if !f.ModifiedAt.IsZero() {
		e.RemoteModifiedAt = sql.NullTime{Time: f.ModifiedAt, Valid: true}
	}
	if d, ok := ExtractFileDate(f.Name); ok {
		e.FileDate = sql.NullTime{Time: d, Valid: true}
	}
	return e
}

func metadataDrifted(existing *Entry, f remote.FileInfo) bool {
	if existing.RemoteSize.Valid && existing.RemoteSize.Int64 != f.Size {
		return true
	}
	if !existing.RemoteSize.Valid && f.Size > 0 {
		return true
	}
	if existing.RemoteModifiedAt.Valid && !f.ModifiedAt.IsZero() &&
		!existing.RemoteModifiedAt.Time.Equal(f.ModifiedAt) {
		return true
	}
	return false
}
