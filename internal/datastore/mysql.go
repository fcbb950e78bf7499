package datastore

import (
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	m := settings.Database.MySQL
	switch {
	case m.Host == "":
		return validationError("mysql host must not be empty", "database.mysql.host", "")
	case m.Database == "":
		return validationError("mysql database must not be empty", "database.mysql.database", "")
	case m.Username == "":
		return validationError("mysql username must not be empty", "database.mysql.username", "")
	}
	return nil
}

// mysqlConfig builds the driver configuration. Times are stored and read in UTC.
func mysqlConfig(m conf.MySQLSettings) *mysqldriver.Config {
	cfg := mysqldriver.NewConfig()
	cfg.User = m.Username
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	port := m.Port
	if port == "" {
		port = "3306"
	}
	cfg.Addr = net.JoinHostPort(m.Host, port)
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true // RowsAffected counts matched rows, as SQLite does
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

// Open connects to MySQL and migrates the schema
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	m := store.Settings.Database.MySQL
	cfg := mysqlConfig(m)

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{
		Logger: createGormLogger(store.log, store.Settings.Database.SlowThreshold),
	})
	if err != nil {
		store.log.Error("failed to open MySQL database",
			logger.String("host", m.Host),
			logger.String("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return dbError(err, "open", "db_type", "mysql", "host", m.Host, "database", m.Database)
	}

	store.DB = db
	if err := performAutoMigration(db, store.log, "mysql", cfg.Addr+"/"+cfg.DBName); err != nil {
		_ = closeDB(db, store.log)
		store.DB = nil
		return err
	}

	store.log.Info("database opened",
		logger.String("db_type", "mysql"),
		logger.String("host", m.Host),
		logger.String("database", m.Database))
	return nil
}

// Close closes the MySQL connection pool
func (store *MySQLStore) Close() error {
	err := closeDB(store.DB, store.log)
	store.DB = nil
	return err
}
