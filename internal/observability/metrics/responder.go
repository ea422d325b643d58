package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResponderMetrics holds the local API request metrics and the response
// operation metrics reported by the editor. It implements ports.Observer.
type ResponderMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	uploadedBytes     prometheus.Counter
}

func NewResponderMetrics(service string) *ResponderMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ora",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total local API requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ora",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Local API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ora",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight local API requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	operationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ora",
			Subsystem: "response",
			Name:      "operations_total",
			Help:      "Total response server operations by outcome.",
		},
		[]string{"service", "operation", "status"},
	)
	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ora",
			Subsystem: "response",
			Name:      "operation_duration_seconds",
			Help:      "Response server operation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)
	uploadedBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ora",
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Total bytes transferred to upload locations.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		operationTotal,
		operationDuration,
		uploadedBytes,
	)

	return &ResponderMetrics{
		service:           service,
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		uploadedBytes:     uploadedBytes,
	}
}

func (m *ResponderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ResponderMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ResponderMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationTotal.WithLabelValues(m.service, operation, operationStatus(err)).Inc()
	m.operationDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *ResponderMetrics) ObserveUploadedBytes(n int64) {
	if n <= 0 {
		return
	}
	m.uploadedBytes.Add(float64(n))
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "error"
	}
}
