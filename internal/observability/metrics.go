// Package observability wires the Prometheus collectors of p8tools into one
// registry and exposes them over HTTP.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Datastore *metrics.DatastoreMetrics
	Labeling  *metrics.LabelingMetrics
}

// NewMetrics creates a registry with all collectors and counts every built
// EnhancedError by component and category.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	labelingMetrics, err := metrics.NewLabelingMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create labeling metrics: %w", err)
	}

	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		labelingMetrics.RecordBuiltError(ee.GetComponent(), ee.GetCategory())
	})

	return &Metrics{
		registry:  registry,
		Datastore: datastoreMetrics,
		Labeling:  labelingMetrics,
	}, nil
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
