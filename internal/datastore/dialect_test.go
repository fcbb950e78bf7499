package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/WullT/P8-Tools/internal/conf"
)

func TestDialectTimeOfDay(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "strftime('%H:%M', date)", DialectSQLite.TimeOfDay("date"))
	assert.Equal(t, "DATE_FORMAT(date, '%H:%i')", DialectMySQL.TimeOfDay("date"))
	assert.Equal(t, "strftime('%Y-%m-%d', date)", DialectSQLite.Day("date"))
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()
	dsn := sqliteDSN("/tmp/flowers.db", conf.SQLiteSettings{BusyTimeout: 5 * time.Second})
	assert.Contains(t, dsn, "/tmp/flowers.db?")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_journal_mode=WAL")
}

func TestMySQLConfig(t *testing.T) {
	t.Parallel()
	cfg := mysqlConfig(conf.MySQLSettings{Username: "p8", Password: "secret", Host: "db", Database: "flowers"})
	assert.Equal(t, "db:3306", cfg.Addr)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Contains(t, cfg.FormatDSN(), "/flowers?")
}

func TestNew_UnknownType(t *testing.T) {
	t.Parallel()
	_, err := New(&conf.Settings{Database: conf.DatabaseSettings{Type: "postgres"}})
	assert.Error(t, err)
}

func TestClassificationScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    Classification
		score int
		ok    bool
	}{
		{Present, 1, true},
		{Uncertain, 0, true},
		{Absent, -1, true},
		{Unclassified, 0, false},
	}
	for _, tt := range tests {
		score, ok := tt.in.Score()
		assert.Equal(t, tt.score, score, tt.in.String())
		assert.Equal(t, tt.ok, ok, tt.in.String())
	}

	c, err := ParseClassification("present")
	assert.NoError(t, err)
	assert.Equal(t, Present, c)
	_, err = ParseClassification("maybe")
	assert.Error(t, err)

	at, err := ParseAnnotationType("3")
	assert.NoError(t, err)
	assert.Equal(t, TypeWildCarrot, at)
	at, err = ParseAnnotationType("Cornflower")
	assert.NoError(t, err)
	assert.Equal(t, TypeCornflower, at)
}
