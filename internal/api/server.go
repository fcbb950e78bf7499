package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/WullT/P8-Tools/internal/annotation"
	mw "github.com/WullT/P8-Tools/internal/api/middleware"
	v1 "github.com/WullT/P8-Tools/internal/api/v1"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability"
	"github.com/WullT/P8-Tools/internal/scanner"
	"github.com/WullT/P8-Tools/internal/suncalc"
)

// Server is the HTTP server of p8tools.
// It manages the Echo instance, middleware and routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	dataStore datastore.Interface
	sunCalc   *suncalc.SunCalc
	scanner   *scanner.Scanner
	exporter  *annotation.Exporter
	metrics   *observability.Metrics

	apiController *v1.Controller

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithDataStore sets the datastore for the server.
func WithDataStore(ds datastore.Interface) ServerOption {
	return func(s *Server) {
		s.dataStore = ds
	}
}

// WithSunCalc sets the sun calculator for the server.
func WithSunCalc(sc *suncalc.SunCalc) ServerOption {
	return func(s *Server) {
		s.sunCalc = sc
	}
}

// WithScanner enables rescans over HTTP.
func WithScanner(sc *scanner.Scanner) ServerOption {
	return func(s *Server) {
		s.scanner = sc
	}
}

// WithExporter enables label export over HTTP.
func WithExporter(e *annotation.Exporter) ServerOption {
	return func(s *Server) {
		s.exporter = e
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.dataStore == nil {
		return nil, fmt.Errorf("server requires a datastore")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("metrics", config.Metrics),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLogger(s.log.Module("http")))

	securityConfig := mw.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = s.config.AllowedOrigins

	s.echo.Use(mw.NewCORS(securityConfig))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
	s.echo.Use(mw.NewSecureHeaders(securityConfig))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	s.echo.GET("/health", s.healthCheck)

	if s.config.Metrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	opts := []v1.Option{
		v1.WithLogger(s.log),
		v1.WithCacheTTL(s.config.CacheTTL),
	}
	if s.metrics != nil {
		opts = append(opts, v1.WithMetrics(s.metrics))
	}
	if s.sunCalc != nil {
		opts = append(opts, v1.WithSunCalc(s.sunCalc))
	}
	if s.scanner != nil {
		opts = append(opts, v1.WithScanner(s.scanner))
	}
	if s.exporter != nil {
		opts = append(opts, v1.WithExporter(s.exporter))
	}

	apiController, err := v1.New(s.echo, s.dataStore, s.settings, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize API v1: %w", err)
	}
	s.apiController = apiController
	return nil
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start serves HTTP requests and blocks until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete")
	return nil
}

// APIController returns the v1 API controller.
func (s *Server) APIController() *v1.Controller {
	return s.apiController
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
