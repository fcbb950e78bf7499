// Package runtime holds the process-wide services shared by the commands:
// logging, metrics, the record store and the components built on it.
package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/WullT/P8-Tools/internal/annotation"
	"github.com/WullT/P8-Tools/internal/buildinfo"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/flowering"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability"
	"github.com/WullT/P8-Tools/internal/scanner"
	"github.com/WullT/P8-Tools/internal/selection"
	"github.com/WullT/P8-Tools/internal/suncalc"
)

// Context is created once per process and passed to every command
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Metrics  *observability.Metrics
	Fs       afero.Fs

	central *logger.CentralLogger
	log     logger.Logger

	mu      sync.Mutex
	store   datastore.Interface
	sunCalc *suncalc.SunCalc
}

// New creates an uninitialized context; call Init once settings are loaded
func New(build *buildinfo.Context) *Context {
	return &Context{
		Settings: &conf.Settings{},
		Build:    build,
		Fs:       afero.NewOsFs(),
	}
}

// Init installs the central logger and the metrics registry
func (c *Context) Init(settings *conf.Settings) error {
	c.Settings = settings
	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	c.central = central
	c.log = central.Module("main")

	if c.Metrics == nil {
		m, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		c.Metrics = m
	}

	c.log.Debug("runtime initialized",
		logger.String("version", c.Build.GetVersion()),
		logger.String("database", settings.Database.Type))
	return nil
}

// Logger returns a logger for module
func (c *Context) Logger(module string) logger.Logger {
	if c.central == nil {
		return logger.Global().Module(module)
	}
	return c.central.Module(module)
}

// Store opens the configured record store on first use
func (c *Context) Store() (datastore.Interface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, nil
	}

	opts := []datastore.Option{datastore.WithLogger(c.Logger("datastore"))}
	if c.Metrics != nil {
		opts = append(opts, datastore.WithMetrics(c.Metrics.Datastore))
	}
	store, err := datastore.New(c.Settings, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// SunCalc returns the shared sun calculator
func (c *Context) SunCalc() *suncalc.SunCalc {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sunCalc == nil {
		c.sunCalc = suncalc.New(suncalc.DefaultCacheTTL)
	}
	return c.sunCalc
}

// DaylightHours returns the civil dawn and dusk hours of a configured node
func (c *Context) DaylightHours(nodeID string, day time.Time) (start, end int, err error) {
	loc, ok := c.Settings.LocationOf(nodeID)
	if !ok {
		return 0, 0, errors.Newf("node %q has no configured location", nodeID).
			Component("runtime").
			Category(errors.CategoryNotFound).
			Context("node_id", nodeID).
			Build()
	}
	return c.SunCalc().DaylightHours(loc.Latitude, loc.Longitude, day)
}

// Engine creates the selection engine with the configured default hours
func (c *Context) Engine(store datastore.Interface) *selection.Engine {
	opts := []selection.Option{selection.WithLogger(c.Logger("selection"))}
	if c.Metrics != nil {
		opts = append(opts, selection.WithMetrics(c.Metrics.Labeling))
	}
	return selection.NewEngine(store, selection.Bounds{
		StartHour: c.Settings.Selection.StartHour,
		EndHour:   c.Settings.Selection.EndHour,
	}, opts...)
}

// Scanner creates a scanner over the configured extensions
func (c *Context) Scanner(store datastore.Interface) *scanner.Scanner {
	opts := []scanner.Option{scanner.WithLogger(c.Logger("scanner"))}
	if c.Metrics != nil {
		opts = append(opts, scanner.WithMetrics(c.Metrics.Labeling))
	}
	return scanner.New(store, c.Fs, c.Settings.Main.Extensions, opts...)
}

// Analyzer creates the flowering analyzer from the configured detector
func (c *Context) Analyzer(store datastore.Interface) (*flowering.Analyzer, error) {
	detector, err := flowering.DetectorFromSettings(c.Settings.Flowering)
	if err != nil {
		return nil, err
	}
	opts := []flowering.AnalyzerOption{flowering.WithLogger(c.Logger("flowering"))}
	if c.Metrics != nil {
		opts = append(opts, flowering.WithMetrics(c.Metrics.Labeling))
	}
	return flowering.NewAnalyzer(store, detector, opts...), nil
}

// ClassMap returns the configured annotation type to class mapping
func (c *Context) ClassMap() (annotation.ClassMap, error) {
	if len(c.Settings.Annotation.Classes) == 0 {
		return annotation.DefaultClassMap(), nil
	}
	return annotation.ClassMapFromSettings(c.Settings.Annotation.Classes)
}

// Exporter creates the YOLO exporter configured under annotation
func (c *Context) Exporter(store datastore.Interface) (*annotation.Exporter, error) {
	classes, err := c.ClassMap()
	if err != nil {
		return nil, err
	}
	cfg, err := annotation.ExportConfigFromSettings(c.Settings)
	if err != nil {
		return nil, err
	}
	cfg.ImageBase = conf.GetBasePath(cfg.ImageBase)
	opts := []annotation.ExporterOption{annotation.WithExportLogger(c.Logger("export"))}
	if c.Metrics != nil {
		opts = append(opts, annotation.WithExportMetrics(c.Metrics.Labeling))
	}
	return annotation.NewExporter(store, c.Fs, classes, cfg, opts...), nil
}

// Close closes the store and flushes the logger
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.store != nil {
		err = c.store.Close()
		c.store = nil
	}
	if c.central != nil {
		if cerr := c.central.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
