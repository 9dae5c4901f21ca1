package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutMetrics_CounterDelta(t *testing.T) {
	m := NewStdoutMetrics().(*stdoutMetrics)

	m.IncrementCounter("parse.files.processed", map[string]string{"family": "issuance"})
	m.AddToCounter("parse.files.processed", 5, map[string]string{"family": "issuance"})
	m.AddToCounter("warehouse.loans.upserted", 5000, nil)

	assert.Equal(t, int64(6), m.counters["parse.files.processed{family=issuance}"])
	assert.Equal(t, int64(5000), m.counters["warehouse.loans.upserted"])
}

func TestPrometheusMetrics_CounterDelta(t *testing.T) {
	m := NewPrometheusMetrics("ingest").(*prometheusMetrics)

	m.IncrementCounter("catalog.insert", map[string]string{"file_type": "factor"})
	m.AddToCounter("catalog.insert", 3, map[string]string{"file_type": "factor"})

	cv, ok := m.counters["catalog.insert"]
	require.True(t, ok)
	value := testutil.ToFloat64(cv.With(prometheus.Labels{"file_type": "factor"}))
	assert.Equal(t, 4.0, value)
}
