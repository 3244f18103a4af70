package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline and HTTP collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	extractionTotal     *prometheus.CounterVec
	extractionDuration  *prometheus.HistogramVec
	extractionInFlight  prometheus.Gauge
	recordsByBand       *prometheus.CounterVec
	reviewTransitions   *prometheus.CounterVec
	consolidationWarns  *prometheus.CounterVec
	classificationTotal *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aforo",
			Subsystem:   "pipeline",
			Name:        "extraction_total",
			Help:        "Total extraction attempts by document type and status.",
			ConstLabels: constLabels,
		},
		[]string{"document_type", "status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "aforo",
			Subsystem:   "pipeline",
			Name:        "extraction_duration_seconds",
			Help:        "Extraction duration in seconds by status.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	extractionInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "aforo",
			Subsystem:   "pipeline",
			Name:        "extraction_in_flight",
			Help:        "Number of in-flight extractions.",
			ConstLabels: constLabels,
		},
	)
	recordsByBand := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aforo",
			Subsystem:   "pipeline",
			Name:        "records_by_band_total",
			Help:        "Extracted records by quality band.",
			ConstLabels: constLabels,
		},
		[]string{"band"},
	)
	reviewTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aforo",
			Subsystem:   "review",
			Name:        "transitions_total",
			Help:        "Record state transitions.",
			ConstLabels: constLabels,
		},
		[]string{"from", "to"},
	)
	consolidationWarns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aforo",
			Subsystem:   "consolidation",
			Name:        "warnings_total",
			Help:        "Report warnings by kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	classificationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aforo",
			Subsystem:   "pipeline",
			Name:        "classification_total",
			Help:        "Classified documents by resulting type.",
			ConstLabels: constLabels,
		},
		[]string{"document_type"},
	)
	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aforo",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "aforo",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		extractionTotal,
		extractionDuration,
		extractionInFlight,
		recordsByBand,
		reviewTransitions,
		consolidationWarns,
		classificationTotal,
		requestTotal,
		requestDuration,
	)

	return &Metrics{
		registry:            registry,
		extractionTotal:     extractionTotal,
		extractionDuration:  extractionDuration,
		extractionInFlight:  extractionInFlight,
		recordsByBand:       recordsByBand,
		reviewTransitions:   reviewTransitions,
		consolidationWarns:  consolidationWarns,
		classificationTotal: classificationTotal,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) StartExtraction() {
	if m == nil {
		return
	}
	m.extractionInFlight.Inc()
}

func (m *Metrics) FinishExtraction(documentType string, duration time.Duration, status string) {
	if m == nil {
		return
	}
	m.extractionInFlight.Dec()
	if status == "" {
		status = "unknown"
	}
	m.extractionTotal.WithLabelValues(documentType, status).Inc()
	m.extractionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) RecordClassification(documentType string) {
	if m == nil {
		return
	}
	m.classificationTotal.WithLabelValues(documentType).Inc()
}

func (m *Metrics) RecordBand(band string) {
	if m == nil {
		return
	}
	m.recordsByBand.WithLabelValues(band).Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.reviewTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordWarning(kind string) {
	if m == nil {
		return
	}
	m.consolidationWarns.WithLabelValues(kind).Inc()
}

// GinMiddleware records request count and latency labelled by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
