package datastore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Database.SQLite.Path == "" {
		return validationError("sqlite path must not be empty", "database.sqlite.path", "")
	}
	return nil
}

// sqliteDSN builds the go-sqlite3 connection string. WAL lets readers
// proceed while a rescan holds the write lock.
func sqliteDSN(path string, settings conf.SQLiteSettings) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	if settings.BusyTimeout > 0 {
		params.Set("_busy_timeout", fmt.Sprint(settings.BusyTimeout.Milliseconds()))
	}
	return path + "?" + params.Encode()
}

// Open opens or creates the SQLite database and migrates the schema
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Database.SQLite.Path
	if path != ":memory:" {
		path = conf.GetBasePath(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "create_database_dir").
				FileContext(path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path, store.Settings.Database.SQLite)), &gorm.Config{
		Logger: createGormLogger(store.log, store.Settings.Database.SlowThreshold),
	})
	if err != nil {
		store.log.Error("failed to open SQLite database",
			logger.String("path", path),
			logger.Error(err))
		return dbError(err, "open", "db_type", "sqlite", "path", path)
	}

	// one writer at a time; go-sqlite3 serializes anyway and this avoids SQLITE_BUSY storms
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "db_type", "sqlite")
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	if err := performAutoMigration(db, store.log, "sqlite", path); err != nil {
		_ = closeDB(db, store.log)
		store.DB = nil
		return err
	}

	store.log.Info("database opened",
		logger.String("db_type", "sqlite"),
		logger.String("path", path))
	return nil
}

// Close closes the SQLite database
func (store *SQLiteStore) Close() error {
	err := closeDB(store.DB, store.log)
	store.DB = nil
	return err
}
