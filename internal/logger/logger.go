// Package logger provides module-scoped structured logging on top of log/slog.
//
// Console output is human-readable text, file output is JSON. Every component
// receives a Logger scoped to its module name:
//
//	central, err := logger.NewCentralLogger(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	defer central.Close()
//
//	log := central.Module("datastore")
//	log.Info("rescan finished",
//	    logger.Int("found", n),
//	    logger.Duration("elapsed", time.Since(start)))
//
// Per-module levels are set in the configuration:
//
//	logging:
//	  default_level: info
//	  module_levels:
//	    datastore: trace   # shows SQL statements
package logger

import (
	"context"
	"time"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

// Logger is the logging interface injected into every component
type Logger interface {
	// Module returns a logger scoped to a sub-module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every record
	With(fields ...Field) Logger
	// WithContext attaches the trace ID stored in ctx, if any
	WithContext(ctx context.Context) Logger

	// Log logs with an explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

const errorKey = "error"

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a 64-bit integer field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates an unsigned 64-bit integer field, used for byte counts
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float field. Values are rounded to three decimals on output.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field. The key is always "error".
//
//	if err := store.SetFlower(ctx, name, c); err != nil {
//	    log.Error("classification failed", logger.Error(err), logger.String("image", name))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field rendered as a string such as "1.5s"
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field holding an arbitrary value
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
