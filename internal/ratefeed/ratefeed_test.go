package ratefeed

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeExecutor struct {
	executed [][]interface{}
}

func (e *fakeExecutor) Execute(_ context.Context, _ string, args ...interface{}) (sql.Result, error) {
	e.executed = append(e.executed, args)
	return fakeResult{}, nil
}

func (e *fakeExecutor) QueryRow(_ context.Context, _ string, _ ...interface{}) *sql.Row {
	return nil
}

func (e *fakeExecutor) Get(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
	if t, ok := dest.(*sql.NullTime); ok {
		*t = sql.NullTime{} // no stored observations yet
		return nil
	}
	return sql.ErrNoRows
}

func (e *fakeExecutor) Select(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return nil
}

func testConfig(baseURL string) config.RateFeedConfig {
	return config.RateFeedConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		RateSeries: "MORTGAGE30US",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}
}

func TestClient_FetchObservations(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		assert.Equal(t, "MORTGAGE30US", r.URL.Query().Get("series_id"))
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("observation_start"))

		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"observations":[
			{"date":"2024-02-01","value":"6.63"},
			{"date":"2024-02-08","value":"."},
			{"date":"2024-02-15","value":"6.77"}
		]}`))
	}))
	defer server.Close()

	logger := observability.NewStdoutLogger("error", false)
	client := NewClient(testConfig(server.URL), logger, observability.NewStdoutMetrics())

	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	observations, err := client.FetchObservations(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, 2, attempts, "server error is retried")
	require.Len(t, observations, 3)
	assert.Equal(t, "6.63", observations[0].Value)
}

func TestService_Run_SkipsMissingValueMarkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("observation_start"), "first run pulls full history")
		w.Write([]byte(`{"observations":[
			{"date":"2024-02-01","value":"6.63"},
			{"date":"2024-02-08","value":"."},
			{"date":"2024-02-15","value":"not-a-number"},
			{"date":"2024-02-22","value":"6.90"}
		]}`))
	}))
	defer server.Close()

	logger := observability.NewStdoutLogger("error", false)
	metrics := observability.NewStdoutMetrics()
	cfg := testConfig(server.URL)
	exec := &fakeExecutor{}

	service := NewService(NewClient(cfg, logger, metrics), NewRepository(exec, logger, metrics), cfg, logger)

	summary, err := service.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Fetched)
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, 2, summary.Skipped)

	// One multi-row upsert carrying both parseable values.
	require.Len(t, exec.executed, 1)
	joined := ""
	for _, arg := range exec.executed[0] {
		if s, ok := arg.(string); ok {
			joined += s + " "
		}
	}
	assert.True(t, strings.Contains(joined, "MORTGAGE30US"))
}
