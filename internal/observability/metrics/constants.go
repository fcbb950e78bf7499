// Package metrics provides the Prometheus collectors of p8tools.
package metrics

// Operation labels
const (
	OpUpsertImage        = "upsert_image"
	OpRescan             = "rescan"
	OpSetClassification  = "set_classification"
	OpSetFavorite        = "set_favorite"
	OpReplaceAnnotations = "replace_annotations"
	OpQueryAnnotations   = "query_annotations"
	OpListNodes          = "list_nodes"
	OpAggregate          = "aggregate"
	OpNodeSeries         = "node_series"
	OpGetImage           = "get_image"
	OpSelect             = "select"
	OpCounts             = "counts"
)

// Status labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
	StatusNoop    = "not_found"
)

// Histogram bucket parameters
const (
	BucketStart1ms = 0.001
	BucketFactor2  = 2.0
	BucketCount15  = 15

	// result sizes from 1 to ~32k rows
	SizeBucketStart  = 1.0
	SizeBucketFactor = 2.0
	SizeBucketCount  = 16
)
