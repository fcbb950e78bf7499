package scanner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
	"github.com/WullT/P8-Tools/internal/scanner"
	tu "github.com/WullT/P8-Tools/internal/testutil"
)

func touch(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, afero.WriteFile(fs, p, []byte("jpeg"), 0o644))
	}
}

func TestWalk(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs,
		"/data/nodeA/nodeA_2021-06-01T10-00-00Z.jpg",
		"/data/nodeA/2021/nodeA_2021-06-02T10-00-00Z.JPG",
		"/data/nodeB/nodeB_2021-06-01T10-00-00Z.png",
		"/data/nodeB/notes.txt",
		"/data/nodeB/thumbnail.jpg",
	)

	s := scanner.New(tu.NewStore(t), fs, []string{"jpg"}, scanner.WithLogger(tu.Logger()))
	records, failures, err := s.Walk(context.Background(), "/data")
	require.NoError(t, err)

	require.Len(t, records, 2)
	paths := []string{records[0].Path, records[1].Path}
	assert.ElementsMatch(t, []string{
		"nodeA/nodeA_2021-06-01T10-00-00Z.jpg",
		"nodeA/2021/nodeA_2021-06-02T10-00-00Z.JPG",
	}, paths)
	for _, r := range records {
		assert.Equal(t, "nodeA", r.NodeID)
		assert.True(t, r.Available)
	}

	require.Len(t, failures, 1)
	assert.Equal(t, "/data/nodeB/thumbnail.jpg", failures[0].Path)
	assert.True(t, errors.IsParse(failures[0].Err))
	assert.Equal(t, failures[0].Err.Error(), failures[0].Reason)
}

func TestScan_Rescan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := tu.NewStore(t)
	m, err := metrics.NewLabelingMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	touch(t, fs,
		"/data/nodeA_2021-06-01T10-00-00Z.jpg",
		"/data/nodeA_2021-06-01T11-00-00Z.jpg",
		"/data/broken_name.jpg",
	)
	s := scanner.New(store, fs, []string{".jpg"}, scanner.WithLogger(tu.Logger()), scanner.WithMetrics(m))

	report, err := s.Scan(ctx, "/data")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Matched)
	assert.Len(t, report.ParseErrors, 1)
	assert.EqualValues(t, 2, report.Store.Inserted)

	body, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"path":"/data/broken_name.jpg","reason":"`)
	assert.EqualValues(t, 2, report.Store.Available)

	require.NoError(t, store.SetClassification(ctx, "nodeA_2021-06-01T11-00-00Z.jpg", datastore.Present))
	require.NoError(t, fs.Remove("/data/nodeA_2021-06-01T11-00-00Z.jpg"))

	// scanning twice is idempotent apart from the vanished file
	report, err = s.Scan(ctx, "/data")
	require.NoError(t, err)
	assert.EqualValues(t, 0, report.Store.Inserted)
	assert.EqualValues(t, 1, report.Store.Available)
	assert.EqualValues(t, 1, report.Store.Unavailable)

	gone, err := store.GetImage(ctx, "nodeA_2021-06-01T11-00-00Z.jpg")
	require.NoError(t, err)
	assert.False(t, gone.Available)
	assert.Equal(t, datastore.Present, gone.Flower)
}

func TestScan_MissingBaseLeavesStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := tu.NewStore(t)
	tu.Seed(t, store, "nodeA_2021-06-01T10-00-00Z.jpg")

	s := scanner.New(store, afero.NewMemMapFs(), nil, scanner.WithLogger(tu.Logger()))
	_, err := s.Scan(ctx, "/nowhere")
	require.Error(t, err)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Available)
}

func TestScan_EmptyBaseLeavesStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := tu.NewStore(t)
	s := scanner.New(store, fs, []string{".jpg"}, scanner.WithLogger(tu.Logger()))

	touch(t, fs, "/data/nodeA_2021-06-01T10-00-00Z.jpg")
	report, err := s.Scan(ctx, "/data")
	require.NoError(t, err)
	require.False(t, report.Skipped)
	require.EqualValues(t, 1, report.Store.Available)

	// the directory still exists but holds no captures, e.g. an unmounted share
	require.NoError(t, fs.Remove("/data/nodeA_2021-06-01T10-00-00Z.jpg"))
	report, err = s.Scan(ctx, "/data")
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, report.Matched)
	assert.Zero(t, report.Store.Unavailable)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.All)
	assert.EqualValues(t, 1, counts.Available)
}

func TestScan_ProgressLogged(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs,
		"/data/n_2021-06-01T10-00-00Z.jpg",
		"/data/n_2021-06-01T10-00-01Z.jpg",
		"/data/n_2021-06-01T10-00-02Z.jpg",
		"/data/n_2021-06-01T10-00-03Z.jpg",
	)
	var buf bytes.Buffer
	log := logger.NewSlogLogger(&buf, logger.LogLevelInfo, nil)

	s := scanner.New(tu.NewStore(t), fs, []string{".jpg"}, scanner.WithLogger(log), scanner.WithProgressInterval(2))
	_, err := s.Scan(context.Background(), "/data")
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("scan progress")))
}

func TestWalk_Cancelled(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	touch(t, fs, "/data/n_2021-06-01T10-00-00Z.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scanner.New(tu.NewStore(t), fs, nil, scanner.WithLogger(tu.Logger()))
	_, _, err := s.Walk(ctx, "/data")
	assert.Error(t, err)
}
