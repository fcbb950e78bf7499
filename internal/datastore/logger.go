package datastore

import (
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// GetLogger returns the datastore module logger from the global logger
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// Metrics is the datastore metrics collector type
type Metrics = metrics.DatastoreMetrics
