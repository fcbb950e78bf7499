// Package api implements the JSON endpoints of p8tools under /api/v1.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/WullT/P8-Tools/internal/annotation"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/flowering"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
	"github.com/WullT/P8-Tools/internal/scanner"
	"github.com/WullT/P8-Tools/internal/selection"
	"github.com/WullT/P8-Tools/internal/suncalc"
)

// DefaultCacheTTL is the lifetime of cached node aggregates
const DefaultCacheTTL = 30 * time.Second

const nodesCacheKey = "nodes"

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Engine   *selection.Engine
	Analyzer *flowering.Analyzer
	SunCalc  *suncalc.SunCalc
	Scanner  *scanner.Scanner
	Exporter *annotation.Exporter

	classes   annotation.ClassMap
	nodeCache *cache.Cache
	cacheTTL  time.Duration
	log       logger.Logger
	metrics   *observability.Metrics

	// scans and exports rewrite availability or files, one at a time
	jobMu sync.Mutex
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics wires selection, scan and export metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSunCalc enables the daylight endpoints and selections
func WithSunCalc(sc *suncalc.SunCalc) Option {
	return func(c *Controller) { c.SunCalc = sc }
}

// WithScanner enables POST /scan
func WithScanner(s *scanner.Scanner) Option {
	return func(c *Controller) { c.Scanner = s }
}

// WithExporter enables POST /export
func WithExporter(e *annotation.Exporter) Option {
	return func(c *Controller) { c.Exporter = e }
}

// WithCacheTTL sets the lifetime of cached node aggregates
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Controller) { c.cacheTTL = ttl }
}

// New creates the controller and registers its routes on e
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, opts ...Option) (*Controller, error) {
	c := &Controller{
		Echo:     e,
		DS:       ds,
		Settings: settings,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Global().Module("api")
	}

	labeling := c.labelingMetrics()

	engineOpts := []selection.Option{selection.WithLogger(c.log.Module("selection"))}
	if labeling != nil {
		engineOpts = append(engineOpts, selection.WithMetrics(labeling))
	}
	c.Engine = selection.NewEngine(ds, selection.Bounds{
		StartHour: settings.Selection.StartHour,
		EndHour:   settings.Selection.EndHour,
	}, engineOpts...)

	detector, err := flowering.DetectorFromSettings(settings.Flowering)
	if err != nil {
		return nil, err
	}
	analyzerOpts := []flowering.AnalyzerOption{flowering.WithLogger(c.log.Module("flowering"))}
	if labeling != nil {
		analyzerOpts = append(analyzerOpts, flowering.WithMetrics(labeling))
	}
	c.Analyzer = flowering.NewAnalyzer(ds, detector, analyzerOpts...)

	c.classes = annotation.DefaultClassMap()
	if len(settings.Annotation.Classes) > 0 {
		if c.classes, err = annotation.ClassMapFromSettings(settings.Annotation.Classes); err != nil {
			return nil, err
		}
	}

	c.nodeCache = cache.New(c.cacheTTL, 2*c.cacheTTL)

	c.Group = e.Group("/api/v1")
	c.initRoutes()
	return c, nil
}

func (c *Controller) labelingMetrics() *metrics.LabelingMetrics {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Labeling
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/counts", c.GetCounts)

	c.initImageRoutes()
	c.initAnnotationRoutes()
	c.initNodeRoutes()
	c.initJobRoutes()
}

// HealthCheck reports that the store answers
func (c *Controller) HealthCheck(ctx echo.Context) error {
	if _, err := c.DS.Counts(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "database unavailable", http.StatusServiceUnavailable)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  string(c.DS.Dialect()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetCounts returns the total and available image counts
func (c *Controller) GetCounts(ctx echo.Context) error {
	counts, err := c.DS.Counts(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to count images", statusFromError(err))
	}
	return ctx.JSON(http.StatusOK, counts)
}

// invalidateNodes drops cached aggregates after a label or availability change
func (c *Controller) invalidateNodes() {
	c.nodeCache.Flush()
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString(),
	}
}

// HandleError logs err with a correlation id and writes the error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// statusFromError maps error categories to HTTP status codes
func statusFromError(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err), errors.IsGeometry(err), errors.IsParse(err):
		return http.StatusBadRequest
	case errors.IsCategory(err, errors.CategoryConflict):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryDiskUsage):
		return http.StatusInsufficientStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.IsCategory(err, errors.CategoryCancellation):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// badRequest builds a validation error for a malformed request parameter
func badRequest(field, format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
