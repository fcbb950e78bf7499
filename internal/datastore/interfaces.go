// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// DefaultBatchSize is the number of rows written per batch during rescans
const DefaultBatchSize = 1000

// Scope narrows an image query. Scopes are combined conjunctively.
type Scope = func(*gorm.DB) *gorm.DB

// Interface abstracts the record store over the images and annot tables.
type Interface interface {
	Open() error
	Close() error
	Dialect() Dialect

	// images
	UpsertImage(ctx context.Context, rec *ImageRecord) (inserted bool, err error)
	GetImage(ctx context.Context, filename string) (ImageRecord, error)
	SetClassification(ctx context.Context, filename string, c Classification) error
	SetFavorite(ctx context.Context, filename string, favorite bool) error
	FindImages(ctx context.Context, scopes ...Scope) ([]ImageRecord, error)
	Counts(ctx context.Context) (ImageCounts, error)

	// availability
	BeginRescan(ctx context.Context) (*Rescan, error)
	MarkAllUnavailable(ctx context.Context) (int64, error)
	MarkAvailable(ctx context.Context, filenames ...string) (int64, error)

	// annotations
	ReplaceAnnotations(ctx context.Context, filename string, annotType AnnotationType, records []AnnotationRecord) error
	QueryAnnotations(ctx context.Context, filename string, annotType *AnnotationType) ([]AnnotationRecord, error)
	AnnotatedFilenames(ctx context.Context, types ...AnnotationType) ([]string, error)

	// nodes
	ListNodeIDs(ctx context.Context, includeUnavailable bool) ([]string, error)
	AggregateByNode(ctx context.Context) ([]NodeAggregate, error)
	NodeSeries(ctx context.Context, nodeID string, classifiedOnly bool) ([]ImageRecord, error)
	NodeDates(ctx context.Context, nodeID string) ([]time.Time, error)
}

// DataStore implements Interface on top of a GORM database.
type DataStore struct {
	DB        *gorm.DB
	dialect   Dialect
	log       logger.Logger
	metrics   *Metrics
	batchSize int
}

// Option configures a DataStore
type Option func(*DataStore)

// WithLogger sets the logger; defaults to the global datastore module logger
func WithLogger(l logger.Logger) Option {
	return func(ds *DataStore) {
		if l != nil {
			ds.log = l
		}
	}
}

// WithMetrics records operation counts and durations
func WithMetrics(m *Metrics) Option {
	return func(ds *DataStore) { ds.metrics = m }
}

// WithBatchSize sets the rescan batch size
func WithBatchSize(n int) Option {
	return func(ds *DataStore) {
		if n > 0 {
			ds.batchSize = n
		}
	}
}

func newDataStore(dialect Dialect, opts ...Option) DataStore {
	ds := DataStore{
		dialect:   dialect,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(&ds)
	}
	if ds.log == nil {
		ds.log = GetLogger()
	}
	return ds
}

// New creates the store selected by settings.Database.Type. Call Open before use.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	opts = append([]Option{WithBatchSize(settings.Database.BatchSize)}, opts...)

	switch settings.Database.Type {
	case conf.DatabaseSQLite, "":
		return &SQLiteStore{DataStore: newDataStore(DialectSQLite, opts...), Settings: settings}, nil
	case conf.DatabaseMySQL:
		return &MySQLStore{DataStore: newDataStore(DialectMySQL, opts...), Settings: settings}, nil
	default:
		return nil, validationError("unsupported database type", "database.type", settings.Database.Type)
	}
}

// Dialect returns the SQL dialect of the underlying connection
func (ds *DataStore) Dialect() Dialect {
	return ds.dialect
}

// db returns the context-bound session, or an error if Open was not called
func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return ds.DB.WithContext(ctx), nil
}

// recorder returns the operation recorder, a no-op without metrics
func (ds *DataStore) recorder() metrics.Recorder {
	if ds.metrics == nil {
		return metrics.NoopRecorder{}
	}
	return ds.metrics
}

// observe records duration and outcome of one store operation
func (ds *DataStore) observe(operation string, start time.Time, err error) {
	rec := ds.recorder()
	rec.RecordDuration(operation, time.Since(start).Seconds())

	switch {
	case err == nil:
		rec.RecordOperation(operation, metrics.StatusSuccess)
	case errors.IsNotFound(err):
		rec.RecordOperation(operation, metrics.StatusNoop)
	default:
		rec.RecordOperation(operation, metrics.StatusError)
		var ee *errors.EnhancedError
		if errors.As(err, &ee) {
			rec.RecordError(operation, ee.GetCategory())
		} else {
			rec.RecordError(operation, string(errors.CategoryGeneric))
		}
	}
}

// transaction runs fn in a transaction and records whether it committed.
// GORM rolls back on error and on panic.
func (ds *DataStore) transaction(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	err = db.Transaction(fn)
	if ds.metrics != nil {
		ds.metrics.RecordTransaction(operation, err == nil)
	}
	return err
}
