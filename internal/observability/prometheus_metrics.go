package observability

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// prometheusMetrics implements Metrics on the Prometheus client library.
// Metric names follow Prometheus conventions with the service name as prefix;
// dots in the port-level metric names become underscores.
type prometheusMetrics struct {
	serviceName string
	registry    *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusMetrics creates a Metrics implementation backed by a dedicated
// Prometheus registry. Collectors are created lazily per metric name.
func NewPrometheusMetrics(serviceName string) Metrics {
	return &prometheusMetrics{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),
		counters:    make(map[string]*prometheus.CounterVec),
		histograms:  make(map[string]*prometheus.HistogramVec),
		gauges:      make(map[string]*prometheus.GaugeVec),
	}
}

func (m *prometheusMetrics) IncrementCounter(name string, tags map[string]string) {
	m.counter(name, tags).Inc()
}

func (m *prometheusMetrics) AddToCounter(name string, delta int64, tags map[string]string) {
	m.counter(name, tags).Add(float64(delta))
}

func (m *prometheusMetrics) counter(name string, tags map[string]string) prometheus.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	cv, ok := m.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: m.metricName(name, "total"),
			Help: fmt.Sprintf("Total %s events", name),
		}, labelNames(tags))
		m.registry.MustRegister(cv)
		m.counters[name] = cv
	}
	return cv.With(prometheus.Labels(tagValues(tags)))
}

func (m *prometheusMetrics) RecordHistogram(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels := labelNames(tags)
	hv, ok := m.histograms[name]
	if !ok {
		hv = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    m.metricName(name, ""),
			Help:    fmt.Sprintf("Distribution of %s", name),
			Buckets: prometheus.DefBuckets,
		}, labels)
		m.registry.MustRegister(hv)
		m.histograms[name] = hv
	}
	hv.With(prometheus.Labels(tagValues(tags))).Observe(value)
}

func (m *prometheusMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels := labelNames(tags)
	gv, ok := m.gauges[name]
	if !ok {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: m.metricName(name, ""),
			Help: fmt.Sprintf("Current value of %s", name),
		}, labels)
		m.registry.MustRegister(gv)
		m.gauges[name] = gv
	}
	gv.With(prometheus.Labels(tagValues(tags))).Set(value)
}

func (m *prometheusMetrics) metricName(name, suffix string) string {
	n := strings.NewReplacer(".", "_", "-", "_").Replace(name)
	if suffix != "" {
		return fmt.Sprintf("%s_%s_%s", m.serviceName, n, suffix)
	}
	return fmt.Sprintf("%s_%s", m.serviceName, n)
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	return names
}

func tagValues(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return tags
}
