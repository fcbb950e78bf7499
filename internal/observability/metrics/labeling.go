package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LabelingMetrics covers the workflows built on the record store: selections,
// directory scans, label export and flowering interval detection.
type LabelingMetrics struct {
	selectionsTotal     *prometheus.CounterVec
	selectionResultSize *prometheus.HistogramVec

	scanFilesTotal *prometheus.CounterVec
	scanDuration   prometheus.Histogram

	exportImagesTotal *prometheus.CounterVec
	exportLabelLines  prometheus.Counter
	exportDuration    prometheus.Histogram

	intervalsDetected *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewLabelingMetrics creates and registers the labeling workflow metrics
func NewLabelingMetrics(registry *prometheus.Registry) (*LabelingMetrics, error) {
	m := &LabelingMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LabelingMetrics) initMetrics() {
	m.selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selection_queries_total",
			Help: "Total number of selection queries by status filter",
		},
		[]string{"status_filter", "result"}, // result: empty, matched, error
	)

	m.selectionResultSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "selection_result_size",
			Help:    "Number of paths returned by selection queries",
			Buckets: prometheus.ExponentialBuckets(SizeBucketStart, SizeBucketFactor, SizeBucketCount),
		},
		[]string{"status_filter"},
	)

	m.scanFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_files_total",
			Help: "Files seen by directory scans",
		},
		[]string{"result"}, // result: found, parse_error
	)

	m.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanner_duration_seconds",
			Help:    "Duration of complete directory scans",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15+5),
		},
	)

	m.exportImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_images_total",
			Help: "Images handled by label export",
		},
		[]string{"result"}, // result: exported, skipped_existing, skipped_unavailable, no_labels, error
	)

	m.exportLabelLines = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "export_label_lines_total",
			Help: "YOLO label lines written",
		},
	)

	m.exportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "export_duration_seconds",
			Help:    "Duration of complete export runs",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15+5),
		},
	)

	m.intervalsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowering_intervals_detected_total",
			Help: "Flowering intervals produced by the detector",
		},
		[]string{"node"},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Errors built anywhere in the application by component and category",
		},
		[]string{"component", "category"},
	)

	m.collectors = []prometheus.Collector{
		m.selectionsTotal,
		m.selectionResultSize,
		m.scanFilesTotal,
		m.scanDuration,
		m.exportImagesTotal,
		m.exportLabelLines,
		m.exportDuration,
		m.intervalsDetected,
		m.errorsTotal,
	}
}

// Describe implements prometheus.Collector
func (m *LabelingMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *LabelingMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordSelection records one selection query and its result size
func (m *LabelingMetrics) RecordSelection(statusFilter string, size int, err error) {
	switch {
	case err != nil:
		m.selectionsTotal.WithLabelValues(statusFilter, "error").Inc()
		return
	case size == 0:
		m.selectionsTotal.WithLabelValues(statusFilter, "empty").Inc()
	default:
		m.selectionsTotal.WithLabelValues(statusFilter, "matched").Inc()
	}
	m.selectionResultSize.WithLabelValues(statusFilter).Observe(float64(size))
}

// RecordScan records a finished directory scan
func (m *LabelingMetrics) RecordScan(found, parseErrors int, seconds float64) {
	m.scanFilesTotal.WithLabelValues("found").Add(float64(found))
	m.scanFilesTotal.WithLabelValues("parse_error").Add(float64(parseErrors))
	m.scanDuration.Observe(seconds)
}

// RecordExportImage records the outcome for one exported image
func (m *LabelingMetrics) RecordExportImage(result string, labelLines int) {
	m.exportImagesTotal.WithLabelValues(result).Inc()
	if labelLines > 0 {
		m.exportLabelLines.Add(float64(labelLines))
	}
}

// RecordExportRun records the duration of a complete export
func (m *LabelingMetrics) RecordExportRun(seconds float64) {
	m.exportDuration.Observe(seconds)
}

// RecordIntervals records detected flowering intervals for a node
func (m *LabelingMetrics) RecordIntervals(node string, n int) {
	m.intervalsDetected.WithLabelValues(node).Add(float64(n))
}

// RecordBuiltError counts an application error
func (m *LabelingMetrics) RecordBuiltError(component, category string) {
	m.errorsTotal.WithLabelValues(component, category).Inc()
}
