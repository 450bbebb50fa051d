// Package metrics exposes Prometheus counters for log capture and HTTP
// traffic on a registry owned by the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "type2lyfe"

type Collector struct {
	registry     *prometheus.Registry
	logsCreated  *prometheus.CounterVec
	logsReplayed *prometheus.CounterVec
	logsRejected *prometheus.CounterVec
	requests     *prometheus.HistogramVec
}

func New() *Collector {
	collector := &Collector{
		registry: prometheus.NewRegistry(),
		logsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_created_total",
			Help:      "Health logs stored, by log type and capture source.",
		}, []string{"log_type", "source"}),
		logsReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_replayed_total",
			Help:      "Create requests answered from an earlier submission with the same client id.",
		}, []string{"log_type"}),
		logsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_rejected_total",
			Help:      "Create requests refused before storage, by reason.",
		}, []string{"log_type", "reason"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	collector.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collector.logsCreated,
		collector.logsReplayed,
		collector.logsRejected,
		collector.requests,
	)
	return collector
}

func (collector *Collector) LogCreated(logType string, source string) {
	collector.logsCreated.WithLabelValues(logType, source).Inc()
}

func (collector *Collector) LogReplayed(logType string) {
	collector.logsReplayed.WithLabelValues(logType).Inc()
}

func (collector *Collector) LogRejected(logType string, reason string) {
	collector.logsRejected.WithLabelValues(logType, reason).Inc()
}

func (collector *Collector) ObserveRequest(method string, route string, status int, elapsed time.Duration) {
	collector.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (collector *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(collector.registry, promhttp.HandlerOpts{})
}
