package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters of the upload surface.
type Metrics struct {
	registry                *prometheus.Registry
	uploadsReceivedTotal    prometheus.Counter
	processingFailuresTotal prometheus.Counter
	exportsStartedTotal     prometheus.Counter
	exportsFailedTotal      prometheus.Counter
}

// NewMetrics creates and registers the server metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	uploadsReceivedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aircheck_uploads_received_total",
		Help: "Total number of uploads accepted by the form endpoint",
	})
	processingFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aircheck_processing_failures_total",
		Help: "Total number of upload processing runs with at least one failed subtask",
	})
	exportsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aircheck_exports_started_total",
		Help: "Total number of export runs started",
	})
	exportsFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aircheck_exports_failed_total",
		Help: "Total number of export runs that ended with an error event",
	})

	registry.MustRegister(
		uploadsReceivedTotal,
		processingFailuresTotal,
		exportsStartedTotal,
		exportsFailedTotal,
	)

	return &Metrics{
		registry:                registry,
		uploadsReceivedTotal:    uploadsReceivedTotal,
		processingFailuresTotal: processingFailuresTotal,
		exportsStartedTotal:     exportsStartedTotal,
		exportsFailedTotal:      exportsFailedTotal,
	}
}

// IncUploadsReceived counts one accepted upload.
func (m *Metrics) IncUploadsReceived() { m.uploadsReceivedTotal.Inc() }

// IncProcessingFailures counts one failed processing run.
func (m *Metrics) IncProcessingFailures() { m.processingFailuresTotal.Inc() }

// IncExportsStarted counts one started export run.
func (m *Metrics) IncExportsStarted() { m.exportsStartedTotal.Inc() }

// IncExportsFailed counts one export run ending in an error event.
func (m *Metrics) IncExportsFailed() { m.exportsFailedTotal.Inc() }

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
