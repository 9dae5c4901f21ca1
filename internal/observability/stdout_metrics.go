package observability

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// stdoutMetrics implements Metrics by logging each observation. Values are
// kept in memory so tests can assert on them.
type stdoutMetrics struct {
	logger *log.Logger
	mu     sync.Mutex

	counters   map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// NewStdoutMetrics creates a Metrics implementation that logs to stdout.
func NewStdoutMetrics() Metrics {
	return &stdoutMetrics{
		logger:     log.New(os.Stdout, "", 0),
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
		gauges:     make(map[string]float64),
	}
}

func (m *stdoutMetrics) IncrementCounter(name string, tags map[string]string) {
	m.AddToCounter(name, 1, tags)
}

func (m *stdoutMetrics) AddToCounter(name string, delta int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := buildKey(name, tags)
	m.counters[key] += delta
	m.logger.Printf("METRIC COUNTER %s=%d", key, m.counters[key])
}

func (m *stdoutMetrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := buildKey(name, tags)
	m.histograms[key] = append(m.histograms[key], value)
	m.logger.Printf("METRIC HISTOGRAM %s=%g count=%d", key, value, len(m.histograms[key]))
}

func (m *stdoutMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := buildKey(name, tags)
	m.gauges[key] = value
	m.logger.Printf("METRIC GAUGE %s=%g", key, value)
}

func buildKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
