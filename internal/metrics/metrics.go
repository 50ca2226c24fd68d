// Package metrics defines the Prometheus collectors shared by the indexing
// pipeline and the HTTP service.
package metrics

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amanrdf"

// Metrics holds every collector on a private registry, so tests and
// multiple servers in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed   prometheus.Counter
	TriplesParsed    prometheus.Counter
	LinesSkipped     *prometheus.CounterVec
	DocsDispatched   *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	BatchSize        prometheus.Histogram
	ActiveWorkers    prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
	BreakerState prometheus.Gauge
}

// New builds and registers the collectors, plus Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Triple files fully read by a worker.",
		}),
		TriplesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triples_parsed_total",
			Help:      "Lines parsed into triples.",
		}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Lines skipped by the parser, by reason.",
		}, []string{"reason"}),
		DocsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_dispatched_total",
			Help:      "Documents accepted by the backend, by index.",
		}, []string{"index"}),
		DispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Bulk writes rejected or lost, by index.",
		}, []string{"index"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Documents per bulk write.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Workers currently processing a work unit.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_breaker_state",
			Help:      "Remote backend circuit breaker: 0 closed, 1 open, 2 half-open.",
		}),
	}

	m.registry.MustRegister(
		m.FilesProcessed,
		m.TriplesParsed,
		m.LinesSkipped,
		m.DocsDispatched,
		m.DispatchFailures,
		m.BatchSize,
		m.ActiveWorkers,
		m.HTTPRequests,
		m.HTTPLatency,
		m.BreakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes every collector to path in the text exposition
// format, for the node exporter textfile collector. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Sample is one amanrdf collector, summed over its labels. Histograms
// report their observation count.
type Sample struct {
	Name  string
	Value float64
}

// Snapshot gathers the amanrdf collectors, sorted by name. Runtime and
// process collectors are left out.
func (m *Metrics) Snapshot() ([]Sample, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	prefix := namespace + "_"
	var out []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		var sum float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				sum += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		out = append(out, Sample{Name: strings.TrimPrefix(mf.GetName(), prefix), Value: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ObserveFlush records one bulk write attempt.
func (m *Metrics) ObserveFlush(index string, size int, err error) {
	m.BatchSize.Observe(float64(size))
	if err != nil {
		m.DispatchFailures.WithLabelValues(index).Inc()
		return
	}
	m.DocsDispatched.WithLabelValues(index).Add(float64(size))
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SetBreakerState records the remote circuit breaker state as a number.
func (m *Metrics) SetBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}
