// Package observability provides the structured logging and metrics ports
// used across the ingestion pipeline, plus stdout and Prometheus adapters.
package observability

import "fmt"

// New creates the logger and metrics implementations selected by adapter name.
// Supported metrics adapters: "stdout", "prometheus". The logger always writes
// to stdout; jsonLogs selects JSON or text formatting.
func New(serviceName, logLevel, metricsAdapter string, jsonLogs bool) (Logger, Metrics, error) {
	logger := NewStdoutLogger(logLevel, jsonLogs)

	var metrics Metrics
	switch metricsAdapter {
	case "", "stdout":
		metrics = NewStdoutMetrics()
	case "prometheus":
		metrics = NewPrometheusMetrics(serviceName)
	default:
		return nil, nil, fmt.Errorf("unknown metrics adapter: %q", metricsAdapter)
	}

	return logger, metrics, nil
}

// Scoped returns a logger carrying a component field, the way every component
// constructor in this repository obtains its logger.
func Scoped(logger Logger, component string) Logger {
	return logger.WithFields(map[string]interface{}{"component": component})
}
