package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerAdapter routes GORM output into a module Logger. Statements are
// logged at trace level, so they only show up when the datastore module level
// is "trace". Slow statements and failures are logged at warn.
//
//	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
//	    Logger: logger.NewGormLoggerAdapter(log.Module("gorm"), 200*time.Millisecond),
//	})
type GormLoggerAdapter struct {
	log           Logger
	slowThreshold time.Duration
}

// NewGormLoggerAdapter creates a GORM logger. A zero slowThreshold disables
// slow statement warnings.
func NewGormLoggerAdapter(log Logger, slowThreshold time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &GormLoggerAdapter{log: log, slowThreshold: slowThreshold}
}

// LogMode is ignored; levels come from the logging configuration
func (a *GormLoggerAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return a
}

// Info maps GORM's chatty info level to debug
func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	a.log.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.log.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	a.log.Error(fmt.Sprintf(msg, data...))
}

// Trace logs one executed statement
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	log := a.log.WithContext(ctx)

	fields := []Field{
		String("sql", sql),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("statement failed", append(fields, Error(err))...)
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow statement", append(fields, Duration("threshold", a.slowThreshold))...)
	default:
		log.Trace("statement", fields...)
	}
}
