package flowering

import (
	"context"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// Analyzer reads node series from the store and detects intervals
type Analyzer struct {
	store    datastore.Interface
	detector Detector
	log      logger.Logger
	metrics  *metrics.LabelingMetrics
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithLogger sets the analyzer logger
func WithLogger(l logger.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.log = l }
}

// WithMetrics counts detected intervals per node
func WithMetrics(m *metrics.LabelingMetrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// NewAnalyzer creates an analyzer using detector
func NewAnalyzer(store datastore.Interface, detector Detector, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{store: store, detector: detector}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Global().Module("flowering")
	}
	return a
}

// DetectorFromSettings builds the detector configured under flowering
func DetectorFromSettings(s conf.FloweringSettings) (Detector, error) {
	policy, err := ParseEdgePolicy(s.EdgePolicy)
	if err != nil {
		return Detector{}, err
	}
	return NewDetector(s.Window, policy)
}

// NodeIntervals returns the flowering intervals of one node
func (a *Analyzer) NodeIntervals(ctx context.Context, nodeID string) ([]Interval, error) {
	records, err := a.store.NodeSeries(ctx, nodeID, true)
	if err != nil {
		return nil, err
	}
	intervals := a.detector.Detect(PointsFromRecords(records))

	if a.metrics != nil {
		a.metrics.RecordIntervals(nodeID, len(intervals))
	}
	a.log.Debug("intervals detected",
		logger.String("node_id", nodeID),
		logger.Int("points", len(records)),
		logger.Int("intervals", len(intervals)),
		logger.Int("window", a.detector.Window),
		logger.String("edge_policy", a.detector.EdgePolicy.String()))
	return intervals, nil
}
