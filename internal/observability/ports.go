package observability

// Logger defines the interface for structured logging in the application.
// It provides context-aware logging with support for structured fields.
type Logger interface {
	// Info logs informational messages for normal operations.
	Info(msg string, fields ...interface{})

	// Warn logs conditions that are recoverable but noteworthy.
	Warn(msg string, fields ...interface{})

	// Error logs error conditions with the associated error object.
	// Always pass the actual error; the implementation will extract details.
	Error(msg string, fields ...interface{})

	// Debug logs detail useful only when diagnosing a problem.
	Debug(msg string, fields ...interface{})

	// WithFields returns a new Logger with the given fields added to all
	// subsequent logs. Useful for adding consistent context like run_id or
	// component name.
	WithFields(fields map[string]interface{}) Logger
}

// Metrics defines the interface for recording application metrics.
type Metrics interface {
	// IncrementCounter increments a counter metric by 1.
	// Use for counting discrete events: downloads, errors, completions.
	IncrementCounter(name string, tags map[string]string)

	// AddToCounter increments a counter metric by delta.
	// Use for batched events: rows upserted, bytes moved.
	AddToCounter(name string, delta int64, tags map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	// Use for latencies, sizes, or any value where distribution matters.
	RecordHistogram(name string, value float64, tags map[string]string)

	// RecordGauge records a point-in-time measurement.
	RecordGauge(name string, value float64, tags map[string]string)
}
