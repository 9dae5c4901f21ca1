package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	queries []string
	args    [][]interface{}
	rows    int64
}

func (f *fakeExecutor) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return fakeResult{rows: f.rows}, nil
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (f *fakeExecutor) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sql.ErrNoRows
}

func (f *fakeExecutor) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

func TestRequeueStale_RestoresLastDurableState(t *testing.T) {
	exec := &fakeExecutor{rows: 2}
	logger, metrics := testObs()
	repo := NewRepository(exec, logger, metrics)

	total, err := repo.RequeueStale(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	require.Len(t, exec.queries, 2)
	for _, q := range exec.queries {
		assert.Contains(t, q, "UPDATE catalog_entry")
	}

	// A stale download lost its bytes and starts over; a stale parse keeps
	// its sink object and only repeats the parse.
	assert.Contains(t, exec.args[0], StatePending)
	assert.Contains(t, exec.args[0], StateDownloading)
	assert.Contains(t, exec.args[1], StateDownloaded)
	assert.Contains(t, exec.args[1], StateProcessing)
	assert.NotContains(t, exec.args[1], StatePending)
}
