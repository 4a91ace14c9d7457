// Package metrics exposes prometheus instrumentation for the vault
// operations and the HTTP transport.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service holds the prometheus registry and the vault collectors.
type Service struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// New creates a metrics service with its own registry (keeps tests isolated
// from the default global registry).
func New() *Service {
	registry := prometheus.NewRegistry()

	operationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_operations_total",
		Help: "Total number of vault operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	operationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_operation_duration_seconds",
		Help:    "Duration of vault operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	registry.MustRegister(operationsTotal, operationDuration)

	return &Service{
		registry:          registry,
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
	}
}

// ObserveOperation records one finished vault operation.
func (s *Service) ObserveOperation(operation string, outcome string, duration time.Duration) {
	s.operationsTotal.WithLabelValues(operation, outcome).Inc()
	s.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns the scrape endpoint handler for the management router.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
