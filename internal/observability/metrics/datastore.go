package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for record store operations
type DatastoreMetrics struct {
	operationsTotal      *prometheus.CounterVec
	operationDuration    *prometheus.HistogramVec
	operationErrorsTotal *prometheus.CounterVec

	transactionsTotal *prometheus.CounterVec
	rescanRowsTotal   *prometheus.CounterVec
	tableRowsGauge    *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_operations_total",
			Help: "Total number of record store operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_operation_duration_seconds",
			Help:    "Time taken by record store operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.operationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_operation_errors_total",
			Help: "Total number of record store errors by category",
		},
		[]string{"operation", "category"},
	)

	m.transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_transactions_total",
			Help: "Total number of multi-statement transactions",
		},
		[]string{"operation", "status"}, // status: committed, rollback
	)

	m.rescanRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_rescan_rows_total",
			Help: "Rows touched by rescans",
		},
		[]string{"result"}, // result: inserted, available, unavailable
	)

	m.tableRowsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datastore_table_rows",
			Help: "Row counts of the images table after the last rescan",
		},
		[]string{"table", "scope"}, // scope: all, available
	)

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.operationErrorsTotal,
		m.transactionsTotal,
		m.rescanRowsTotal,
		m.tableRowsGauge,
	}
}

// Describe implements prometheus.Collector
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordOperation implements Recorder
func (m *DatastoreMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder
func (m *DatastoreMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder
func (m *DatastoreMetrics) RecordError(operation, category string) {
	m.operationErrorsTotal.WithLabelValues(operation, category).Inc()
}

// RecordTransaction records a committed or rolled back transaction
func (m *DatastoreMetrics) RecordTransaction(operation string, committed bool) {
	status := "committed"
	if !committed {
		status = "rollback"
	}
	m.transactionsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRescan records the outcome of a committed rescan
func (m *DatastoreMetrics) RecordRescan(inserted, available, unavailable int64) {
	m.rescanRowsTotal.WithLabelValues("inserted").Add(float64(inserted))
	m.rescanRowsTotal.WithLabelValues("available").Add(float64(available))
	m.rescanRowsTotal.WithLabelValues("unavailable").Add(float64(unavailable))
}

// SetImageCounts updates the images table row gauges
func (m *DatastoreMetrics) SetImageCounts(all, available int64) {
	m.tableRowsGauge.WithLabelValues("images", "all").Set(float64(all))
	m.tableRowsGauge.WithLabelValues("images", "available").Set(float64(available))
}

var _ Recorder = (*DatastoreMetrics)(nil)
