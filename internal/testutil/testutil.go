// Package testutil provides shared test helpers for the p8tools packages.
package testutil

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/WullT/P8-Tools/internal/capture"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/logger"
)

// DefaultTestTimeout bounds async test operations
const DefaultTestTimeout = 5 * time.Second

// Logger returns a logger that discards everything
func Logger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// Settings returns settings with a fresh SQLite database under t.TempDir
func Settings(t *testing.T) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Database: conf.DatabaseSettings{
			Type: conf.DatabaseSQLite,
			SQLite: conf.SQLiteSettings{
				Path:        filepath.Join(t.TempDir(), "flowers.db"),
				BusyTimeout: time.Second,
			},
			BatchSize: 2,
		},
		Selection: conf.SelectionSettings{StartHour: conf.DefaultStartHour, EndHour: conf.DefaultEndHour},
		Flowering: conf.FloweringSettings{Window: 5, EdgePolicy: conf.EdgePolicyHold},
	}
}

// NewStore opens a SQLite store in a temporary directory and closes it on cleanup
func NewStore(t *testing.T, opts ...datastore.Option) datastore.Interface {
	t.Helper()
	opts = append([]datastore.Option{datastore.WithLogger(Logger())}, opts...)
	store, err := datastore.New(Settings(t), opts...)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Image builds an available record from a capture filename
func Image(t *testing.T, filename string) datastore.ImageRecord {
	t.Helper()
	meta, err := capture.Parse(filename)
	require.NoError(t, err)
	return datastore.ImageRecord{
		Filename:  meta.Filename,
		Path:      meta.NodeID + "/" + meta.Filename,
		NodeID:    meta.NodeID,
		Date:      meta.Date,
		Available: true,
	}
}

// Seed inserts available records for the given capture filenames
func Seed(t *testing.T, store datastore.Interface, filenames ...string) {
	t.Helper()
	ctx := context.Background()
	for _, name := range filenames {
		rec := Image(t, name)
		inserted, err := store.UpsertImage(ctx, &rec)
		require.NoError(t, err)
		require.True(t, inserted, "duplicate seed %s", name)
	}
}
