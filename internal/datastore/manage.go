package datastore

import (
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/WullT/P8-Tools/internal/logger"
)

// DefaultSlowQueryThreshold is used when the settings leave it unset
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// createGormLogger routes GORM statement logs into the datastore logger
func createGormLogger(log logger.Logger, slowThreshold time.Duration) gormlogger.Interface {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowQueryThreshold
	}
	return logger.NewGormLoggerAdapter(log.Module("gorm"), slowThreshold)
}

// performAutoMigration creates or updates the images and annot tables
func performAutoMigration(db *gorm.DB, log logger.Logger, dbType, target string) error {
	start := time.Now()
	migrationLogger := log.With(logger.String("db_type", dbType))
	migrationLogger.Debug("starting database migration", logger.String("target", target))

	if err := db.AutoMigrate(&ImageRecord{}, &AnnotationRecord{}); err != nil {
		migrationLogger.Error("database migration failed", logger.Error(err))
		return dbError(err, "auto_migrate", "db_type", dbType)
	}

	migrationLogger.Debug("database migration completed",
		logger.Duration("duration", time.Since(start)))
	return nil
}

// closeDB releases the pooled connections behind db
func closeDB(db *gorm.DB, log logger.Logger) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("failed to close database", logger.Error(err))
		return dbError(err, "close")
	}
	return nil
}
