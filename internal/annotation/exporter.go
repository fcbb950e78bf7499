package annotation

import (
	"context"
	"image"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/WullT/P8-Tools/internal/capture"
	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// Export outcomes per image
const (
	ResultWritten     = "written"     // label file written
	ResultNoLabels    = "no_labels"   // annotated, but no mapped boxes
	ResultUnavailable = "unavailable" // file not found by the last rescan
	ResultExisting    = "existing"    // image already present in the image dir
	ResultFailed      = "failed"
)

// ExportConfig configures an export run
type ExportConfig struct {
	ImageBase    string // directory the stored relative paths resolve against
	LabelDir     string
	ImageDir     string
	ManifestPath string // data.yaml; defaults to the parent of LabelDir
	CopyImages   bool
	Resolution   int // long edge of image copies; 0 copies unscaled
	Workers      int
	MinFreeBytes uint64 // abort when the label dir has less free space; 0 disables
}

// ExportConfigFromSettings builds the export configuration from settings
func ExportConfigFromSettings(s *conf.Settings) (ExportConfig, error) {
	var minFree uint64
	if s.Annotation.MinFreeSpace != "" {
		v, err := conf.ParseSize(s.Annotation.MinFreeSpace)
		if err != nil {
			return ExportConfig{}, err
		}
		minFree = v
	}
	return ExportConfig{
		ImageBase:    s.Main.BasePath,
		LabelDir:     s.Annotation.LabelDir,
		ImageDir:     s.Annotation.ImageDir,
		CopyImages:   s.Annotation.CopyImages,
		Resolution:   s.Annotation.ExportResolution,
		Workers:      s.Annotation.Workers,
		MinFreeBytes: minFree,
	}, nil
}

// ExportReport summarizes an export run
type ExportReport struct {
	Candidates  int           `json:"candidates"`
	Existing    int           `json:"existing"`
	Unavailable int           `json:"unavailable"`
	Labeled     int           `json:"labeled"`
	LabelLines  int           `json:"label_lines"`
	Copied      int           `json:"copied"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Manifest is the YOLO dataset description written next to the labels
type Manifest struct {
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// Exporter writes YOLO label files, and optionally resized image copies, for
// every available annotated image
type Exporter struct {
	store   datastore.Interface
	fs      afero.Fs
	classes ClassMap
	cfg     ExportConfig
	log     logger.Logger
	metrics *metrics.LabelingMetrics

	freeSpace func(ctx context.Context, path string) (uint64, error)
}

// ExporterOption configures an Exporter
type ExporterOption func(*Exporter)

// WithExportLogger sets the exporter logger
func WithExportLogger(l logger.Logger) ExporterOption {
	return func(e *Exporter) { e.log = l }
}

// WithExportMetrics records per-image outcomes
func WithExportMetrics(m *metrics.LabelingMetrics) ExporterOption {
	return func(e *Exporter) { e.metrics = m }
}

// NewExporter creates an exporter over fs
func NewExporter(store datastore.Interface, fs afero.Fs, classes ClassMap, cfg ExportConfig, opts ...ExporterOption) *Exporter {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = filepath.Join(filepath.Dir(filepath.Clean(cfg.LabelDir)), "data.yaml")
	}
	e := &Exporter{
		store:     store,
		fs:        fs,
		classes:   classes,
		cfg:       cfg,
		freeSpace: diskFree,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Global().Module("export")
	}
	return e
}

func diskFree(ctx context.Context, p string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, p)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

func exportError(err error, op string, kv ...any) error {
	b := errors.New(err).
		Component("export").
		Category(errors.CategoryExport).
		Context("operation", op)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			b = b.Context(k, kv[i+1])
		}
	}
	return b.Build()
}

// Run exports every image annotated with a mapped type. Images whose copy
// already exists in the image dir are skipped. Per-image failures are logged
// and counted; Run itself fails only on setup errors or cancellation.
func (e *Exporter) Run(ctx context.Context) (ExportReport, error) {
	start := time.Now()
	var report ExportReport

	if err := e.prepare(ctx); err != nil {
		return report, err
	}

	filenames, err := e.store.AnnotatedFilenames(ctx, e.classes.Types()...)
	if err != nil {
		return report, err
	}
	existing, err := e.existingImages()
	if err != nil {
		return report, err
	}

	todo := make([]string, 0, len(filenames))
	for _, fn := range filenames {
		if _, ok := existing[fn]; ok {
			report.Existing++
			e.record(ResultExisting, 0)
			continue
		}
		todo = append(todo, fn)
	}
	report.Candidates = len(filenames)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, fn := range todo {
		fn := fn
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := e.exportOne(gctx, fn)

			mu.Lock()
			defer mu.Unlock()
			switch out.result {
			case ResultUnavailable:
				report.Unavailable++
			case ResultWritten:
				report.Labeled++
				report.LabelLines += out.lines
			case ResultFailed:
				report.Failed++
			}
			if out.copied {
				report.Copied++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if err := e.writeManifest(); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordExportRun(report.Elapsed.Seconds())
	}
	e.log.Info("export finished",
		logger.Int("candidates", report.Candidates),
		logger.Int("existing", report.Existing),
		logger.Int("labeled", report.Labeled),
		logger.Int("copied", report.Copied),
		logger.Int("unavailable", report.Unavailable),
		logger.Int("failed", report.Failed),
		logger.Duration("elapsed", report.Elapsed))
	return report, nil
}

func (e *Exporter) prepare(ctx context.Context) error {
	dirs := []string{e.cfg.LabelDir}
	if e.cfg.CopyImages {
		dirs = append(dirs, e.cfg.ImageDir)
	}
	for _, dir := range dirs {
		if err := e.fs.MkdirAll(dir, 0o755); err != nil {
			return exportError(err, "create_dir", "dir", dir)
		}
	}

	if e.cfg.MinFreeBytes == 0 {
		return nil
	}
	free, err := e.freeSpace(ctx, e.cfg.LabelDir)
	if err != nil {
		return exportError(err, "disk_usage", "dir", e.cfg.LabelDir)
	}
	if free < e.cfg.MinFreeBytes {
		return errors.Newf("only %d bytes free in %s, need %d", free, e.cfg.LabelDir, e.cfg.MinFreeBytes).
			Component("export").
			Category(errors.CategoryDiskUsage).
			Context("free_bytes", free).
			Build()
	}
	return nil
}

// existingImages lists the image copies made by earlier runs
func (e *Exporter) existingImages() (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if !e.cfg.CopyImages {
		return found, nil
	}
	infos, err := afero.ReadDir(e.fs, e.cfg.ImageDir)
	if err != nil {
		return nil, exportError(err, "list_image_dir", "dir", e.cfg.ImageDir)
	}
	for _, info := range infos {
		if !info.IsDir() {
			found[info.Name()] = struct{}{}
		}
	}
	return found, nil
}

type outcome struct {
	result string
	lines  int
	copied bool
}

func (e *Exporter) exportOne(ctx context.Context, filename string) outcome {
	log := e.log.With(logger.String("filename", filename))

	rec, err := e.store.GetImage(ctx, filename)
	if err != nil {
		log.Warn("skipping image", logger.Error(err))
		e.record(ResultFailed, 0)
		return outcome{result: ResultFailed}
	}
	if !rec.Available {
		log.Debug("image not available")
		e.record(ResultUnavailable, 0)
		return outcome{result: ResultUnavailable}
	}

	annots, err := e.store.QueryAnnotations(ctx, filename, nil)
	if err != nil {
		log.Warn("reading annotations failed", logger.Error(err))
		e.record(ResultFailed, 0)
		return outcome{result: ResultFailed}
	}
	lines, err := LabelLines(annots, e.classes)
	if err != nil {
		log.Warn("invalid annotations", logger.Error(err))
		e.record(ResultFailed, 0)
		return outcome{result: ResultFailed}
	}

	out := outcome{result: ResultNoLabels}
	if len(lines) > 0 {
		labelPath := filepath.Join(e.cfg.LabelDir, capture.Stem(filename)+".txt")
		if err := afero.WriteFile(e.fs, labelPath, []byte(LabelFile(lines)), 0o644); err != nil {
			log.Warn("writing label file failed", logger.Error(err))
			e.record(ResultFailed, 0)
			return outcome{result: ResultFailed}
		}
		out = outcome{result: ResultWritten, lines: len(lines)}
	}

	if e.cfg.CopyImages {
		if err := e.copyImage(rec); err != nil {
			log.Warn("copying image failed", logger.Error(err))
			e.record(ResultFailed, out.lines)
			out.result = ResultFailed
			return out
		}
		out.copied = true
	}

	e.record(out.result, out.lines)
	return out
}

// copyImage writes a copy of the image whose long edge equals the export
// resolution
func (e *Exporter) copyImage(rec datastore.ImageRecord) error {
	src := filepath.Join(e.cfg.ImageBase, filepath.FromSlash(path.Clean(rec.Path)))
	format, err := imaging.FormatFromFilename(rec.Filename)
	if err != nil {
		return exportError(err, "image_format", "filename", rec.Filename)
	}

	in, err := e.fs.Open(src)
	if err != nil {
		return exportError(err, "open_image", "path", src)
	}
	defer in.Close()

	img, err := imaging.Decode(in, imaging.AutoOrientation(true))
	if err != nil {
		return exportError(err, "decode_image", "path", src)
	}
	img = Resize(img, e.cfg.Resolution)

	dst := filepath.Join(e.cfg.ImageDir, rec.Filename)
	out, err := e.fs.Create(dst)
	if err != nil {
		return exportError(err, "create_image", "path", dst)
	}
	if err := imaging.Encode(out, img, format, imaging.JPEGQuality(90)); err != nil {
		_ = out.Close()
		_ = e.fs.Remove(dst)
		return exportError(err, "encode_image", "path", dst)
	}
	return out.Close()
}

// Resize scales img so its long edge equals longEdge, keeping the aspect
// ratio. A non-positive longEdge returns img unchanged.
func Resize(img image.Image, longEdge int) image.Image {
	if longEdge <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() >= b.Dy() {
		if b.Dx() == longEdge {
			return img
		}
		return imaging.Resize(img, longEdge, 0, imaging.Lanczos)
	}
	if b.Dy() == longEdge {
		return img
	}
	return imaging.Resize(img, 0, longEdge, imaging.Lanczos)
}

func (e *Exporter) writeManifest() error {
	names := e.classes.Names()
	m := Manifest{
		Train: e.cfg.ImageDir,
		Val:   e.cfg.ImageDir,
		NC:    len(names),
		Names: names,
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return exportError(err, "marshal_manifest")
	}
	if err := afero.WriteFile(e.fs, e.cfg.ManifestPath, data, 0o644); err != nil {
		return exportError(err, "write_manifest", "path", e.cfg.ManifestPath)
	}
	return nil
}

func (e *Exporter) record(result string, lines int) {
	if e.metrics != nil {
		e.metrics.RecordExportImage(result, lines)
	}
}
