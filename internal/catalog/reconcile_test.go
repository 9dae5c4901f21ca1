package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/remote"
)

type fakeStore struct {
	entries   map[string]*Entry
	inserted  []string
	refreshed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*Entry)}
}

func (s *fakeStore) GetByRemotePath(_ context.Context, remotePath string) (*Entry, error) {
	return s.entries[remotePath], nil
}

func (s *fakeStore) Insert(_ context.Context, e *Entry) error {
	s.entries[e.RemotePath] = e
	s.inserted = append(s.inserted, e.RemotePath)
	return nil
}

func (s *fakeStore) RefreshMetadata(_ context.Context, remotePath string, size int64, modifiedAt time.Time) error {
	e := s.entries[remotePath]
	e.RemoteSize = sql.NullInt64{Int64: size, Valid: true}
	e.RemoteModifiedAt = sql.NullTime{Time: modifiedAt, Valid: true}
	s.refreshed = append(s.refreshed, remotePath)
	return nil
}

func testObs() (observability.Logger, observability.Metrics) {
	return observability.NewStdoutLogger("error", false), observability.NewStdoutMetrics()
}

func TestReconcile_NewFilesCatalogedAsPending(t *testing.T) {
	store := newFakeStore()
	logger, metrics := testObs()
	rec := NewReconciler(store, logger, metrics)

	mtime := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	listing := []remote.FileInfo{
		{Path: "/disclosures/FRE_IS_202401.zip", Name: "FRE_IS_202401.zip", Size: 1024, ModifiedAt: mtime},
		{Path: "/disclosures/notes.pdf", Name: "notes.pdf", Size: 10, ModifiedAt: mtime},
	}

	result, err := rec.Reconcile(context.Background(), listing)
	require.NoError(t, err)

	assert.Equal(t, 2, result.New)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Unchanged)

	issuance := store.entries["/disclosures/FRE_IS_202401.zip"]
	require.NotNil(t, issuance)
	assert.Equal(t, StatePending, issuance.State)
	assert.Equal(t, FamilyIssuance, issuance.FileType)
	assert.True(t, issuance.FileDate.Valid)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), issuance.FileDate.Time)

	unknown := store.entries["/disclosures/notes.pdf"]
	require.NotNil(t, unknown)
	assert.Equal(t, FamilyUnknown, unknown.FileType)
}

func TestReconcile_MetadataDriftRefreshesWithoutStateReset(t *testing.T) {
	store := newFakeStore()
	logger, metrics := testObs()
	rec := NewReconciler(store, logger, metrics)

	mtime := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	store.entries["/d/FRE_IS_202401.zip"] = &Entry{
		RemotePath:       "/d/FRE_IS_202401.zip",
		Filename:         "FRE_IS_202401.zip",
		FileType:         FamilyIssuance,
		State:            StateProcessed,
		RemoteSize:       sql.NullInt64{Int64: 1024, Valid: true},
		RemoteModifiedAt: sql.NullTime{Time: mtime, Valid: true},
	}

	listing := []remote.FileInfo{
		{Path: "/d/FRE_IS_202401.zip", Name: "FRE_IS_202401.zip", Size: 2048, ModifiedAt: mtime.Add(time.Hour)},
	}

	result, err := rec.Reconcile(context.Background(), listing)
	require.NoError(t, err)

	assert.Equal(t, 0, result.New)
	assert.Equal(t, 1, result.Updated)
	// Refresh never regresses a processed entry back to pending.
	assert.Equal(t, StateProcessed, store.entries["/d/FRE_IS_202401.zip"].State)
}

func TestReconcile_UnchangedEntriesUntouched(t *testing.T) {
	store := newFakeStore()
	logger, metrics := testObs()
	rec := NewReconciler(store, logger, metrics)

	mtime := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	store.entries["/d/a.zip"] = &Entry{
		RemotePath:       "/d/a.zip",
		Filename:         "a.zip",
		State:            StateDownloaded,
		RemoteSize:       sql.NullInt64{Int64: 100, Valid: true},
		RemoteModifiedAt: sql.NullTime{Time: mtime, Valid: true},
	}

	result, err := rec.Reconcile(context.Background(), []remote.FileInfo{
		{Path: "/d/a.zip", Name: "a.zip", Size: 100, ModifiedAt: mtime},
	})
	require.NoError(t, err)

	assert.Equal(t, ReconcileResult{Unchanged: 1}, result)
	assert.Empty(t, store.refreshed)
}
