package annotation_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/WullT/P8-Tools/internal/annotation"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
	tu "github.com/WullT/P8-Tools/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

const (
	imgDaisy   = "nodeA_2021-06-01T10-00-00Z.jpg"
	imgCarrot  = "nodeA_2021-06-01T11-00-00Z.jpg"
	imgGone    = "nodeB_2021-06-01T10-00-00Z.jpg"
	imgPlain   = "nodeB_2021-06-01T12-00-00Z.jpg"
	imgOldCopy = "nodeB_2021-06-01T13-00-00Z.jpg"
)

func jpeg(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 180, B: 20, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

type fixture struct {
	store datastore.Interface
	fs    afero.Fs
	cfg   annotation.ExportConfig
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := tu.NewStore(t)
	tu.Seed(t, store, imgDaisy, imgCarrot, imgGone, imgPlain, imgOldCopy)

	fs := afero.NewMemMapFs()
	for _, fn := range []string{imgDaisy, imgCarrot, imgOldCopy} {
		rec, err := store.GetImage(ctx, fn)
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fs, filepath.Join("/images", rec.Path), jpeg(t, 400, 300), 0o644))
	}

	boxes := []annotation.Box{{ID: 0, X0: 10, Y0: 10, X1: 50, Y1: 30}}
	for fn, typ := range map[string]datastore.AnnotationType{
		imgDaisy:   datastore.TypeDaisy,
		imgCarrot:  datastore.TypeWildCarrot,
		imgGone:    datastore.TypeDaisy,
		imgOldCopy: datastore.TypeCornflower,
	} {
		recs, err := annotation.ToRecords(fn, typ, boxes, 400, 300)
		require.NoError(t, err)
		require.NoError(t, store.ReplaceAnnotations(ctx, fn, typ, recs))
	}

	// imgGone vanished from disk
	rescan, err := store.BeginRescan(ctx)
	require.NoError(t, err)
	_, err = rescan.Commit(ctx, []datastore.ImageRecord{
		tu.Image(t, imgDaisy), tu.Image(t, imgCarrot), tu.Image(t, imgPlain), tu.Image(t, imgOldCopy),
	})
	require.NoError(t, err)

	// exported by an earlier run
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/export/images", imgOldCopy), []byte("x"), 0o644))

	return fixture{
		store: store,
		fs:    fs,
		cfg: annotation.ExportConfig{
			ImageBase:  "/images",
			LabelDir:   "/export/labels",
			ImageDir:   "/export/images",
			CopyImages: true,
			Resolution: 200,
			Workers:    3,
		},
	}
}

func TestExporter_Run(t *testing.T) {
	f := setup(t)
	m, err := metrics.NewLabelingMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	exp := annotation.NewExporter(f.store, f.fs, annotation.DefaultClassMap(), f.cfg,
		annotation.WithExportLogger(tu.Logger()),
		annotation.WithExportMetrics(m))
	report, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Candidates)
	assert.Equal(t, 1, report.Existing)
	assert.Equal(t, 1, report.Unavailable)
	assert.Equal(t, 2, report.Labeled)
	assert.Equal(t, 2, report.LabelLines)
	assert.Equal(t, 2, report.Copied)
	assert.Zero(t, report.Failed)

	carrot, err := afero.ReadFile(f.fs, "/export/labels/nodeA_2021-06-01T11-00-00Z.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(carrot), "1 "), string(carrot))

	daisy, err := afero.ReadFile(f.fs, "/export/labels/nodeA_2021-06-01T10-00-00Z.txt")
	require.NoError(t, err)
	assert.Equal(t, "0 0.075000 0.066667 0.100000 0.066667\n", string(daisy))

	exists, err := afero.Exists(f.fs, "/export/labels/nodeB_2021-06-01T10-00-00Z.txt")
	require.NoError(t, err)
	assert.False(t, exists, "unavailable image must not be exported")
	exists, err = afero.Exists(f.fs, "/export/labels/nodeB_2021-06-01T13-00-00Z.txt")
	require.NoError(t, err)
	assert.False(t, exists, "already exported image is skipped")

	copied, err := f.fs.Open(filepath.Join("/export/images", imgDaisy))
	require.NoError(t, err)
	defer copied.Close()
	cfg, _, err := image.DecodeConfig(copied)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)

	raw, err := afero.ReadFile(f.fs, "/export/data.yaml")
	require.NoError(t, err)
	var manifest annotation.Manifest
	require.NoError(t, yaml.Unmarshal(raw, &manifest))
	assert.Equal(t, 3, manifest.NC)
	assert.Equal(t, []string{"daisy", "wildcarrot", "cornflower"}, manifest.Names)
}

func TestExporter_LabelsOnly(t *testing.T) {
	f := setup(t)
	f.cfg.CopyImages = false

	report, err := annotation.NewExporter(f.store, f.fs, annotation.DefaultClassMap(), f.cfg,
		annotation.WithExportLogger(tu.Logger())).Run(context.Background())
	require.NoError(t, err)
	// without image copies nothing counts as previously exported
	assert.Zero(t, report.Existing)
	assert.Equal(t, 3, report.Labeled)
	assert.Zero(t, report.Copied)
}

func TestExporter_MissingSourceIsPerImageFailure(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.fs.Remove(filepath.Join("/images", "nodeA", imgCarrot)))

	report, err := annotation.NewExporter(f.store, f.fs, annotation.DefaultClassMap(), f.cfg,
		annotation.WithExportLogger(tu.Logger())).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Copied)
}

func TestExporter_Cancelled(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := annotation.NewExporter(f.store, f.fs, annotation.DefaultClassMap(), f.cfg,
		annotation.WithExportLogger(tu.Logger())).Run(ctx)
	require.Error(t, err)
}

func TestResize(t *testing.T) {
	t.Parallel()
	wide := annotation.Resize(imaging.New(400, 100, color.Black), 1280)
	assert.Equal(t, image.Rect(0, 0, 1280, 320), wide.Bounds())

	tall := annotation.Resize(imaging.New(100, 400, color.Black), 200)
	assert.Equal(t, image.Rect(0, 0, 50, 200), tall.Bounds())

	same := imaging.New(10, 10, color.Black)
	assert.Same(t, same, annotation.Resize(same, 0))
}
