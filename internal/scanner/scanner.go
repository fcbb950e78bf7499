// Package scanner walks the image base directory and reconciles the record
// store with the files found on disk.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/WullT/P8-Tools/internal/capture"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// DefaultProgressInterval is the number of files between progress log lines
const DefaultProgressInterval = 1000

// ParseFailure is a file whose name does not carry node and capture time
type ParseFailure struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func newParseFailure(p string, err error) ParseFailure {
	return ParseFailure{Path: p, Reason: err.Error(), Err: err}
}

// Report summarizes a scan
type Report struct {
	Matched     int                    `json:"matched"` // files with a configured extension
	ParseErrors []ParseFailure         `json:"parse_errors"`
	Store       datastore.RescanReport `json:"store"`
	Elapsed     time.Duration          `json:"elapsed"`

	// Skipped is set when nothing matched and availability was left unchanged
	Skipped bool `json:"skipped"`
}

// Scanner finds capture files below a base directory
type Scanner struct {
	store            datastore.Interface
	fs               afero.Fs
	extensions       []string
	log              logger.Logger
	metrics          *metrics.LabelingMetrics
	progressInterval int
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the scanner logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// WithMetrics records scan results
func WithMetrics(m *metrics.LabelingMetrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithProgressInterval sets how often progress is logged
func WithProgressInterval(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.progressInterval = n
		}
	}
}

// New creates a scanner for files with the given extensions, e.g. ".jpg".
// Extensions match case-insensitively; none means ".jpg".
func New(store datastore.Interface, fs afero.Fs, extensions []string, opts ...Option) *Scanner {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	if len(exts) == 0 {
		exts = []string{".jpg"}
	}

	s := &Scanner{
		store:            store,
		fs:               fs,
		extensions:       exts,
		progressInterval: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("scanner")
	}
	return s
}

func (s *Scanner) matches(name string) bool {
	return slices.Contains(s.extensions, strings.ToLower(filepath.Ext(name)))
}

// Walk collects records for every matching file below base. Paths are stored
// relative to base with forward slashes. Files whose names do not parse are
// returned as failures and do not stop the walk.
func (s *Scanner) Walk(ctx context.Context, base string) ([]datastore.ImageRecord, []ParseFailure, error) {
	var (
		records  []datastore.ImageRecord
		failures []ParseFailure
		matched  int
	)

	err := afero.Walk(s.fs, base, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || !s.matches(info.Name()) {
			return nil
		}

		matched++
		if matched%s.progressInterval == 0 {
			s.log.Info("scan progress",
				logger.Int("files", matched),
				logger.String("last", info.Name()))
		}

		meta, perr := capture.Parse(p)
		if perr != nil {
			s.log.Warn("skipping file with unparsable name",
				logger.String("path", p),
				logger.Error(perr))
			failures = append(failures, newParseFailure(p, perr))
			return nil
		}
		rel, rerr := capture.RelativePath(base, p)
		if rerr != nil {
			failures = append(failures, newParseFailure(p, rerr))
			return nil
		}

		records = append(records, datastore.ImageRecord{
			Filename:  meta.Filename,
			Path:      rel,
			NodeID:    meta.NodeID,
			Date:      meta.Date,
			Available: true,
		})
		return nil
	})
	if err != nil {
		return nil, nil, errors.New(err).
			Component("scanner").
			Category(errors.CategoryFileIO).
			Context("operation", "walk").
			Context("base", base).
			Build()
	}
	return records, failures, nil
}

// Scan walks base and commits the result as one rescan: new files are
// inserted, vanished files become unavailable and labels are kept. A walk
// that matches no files commits nothing.
func (s *Scanner) Scan(ctx context.Context, base string) (Report, error) {
	start := time.Now()
	var report Report

	rescan, err := s.store.BeginRescan(ctx)
	if err != nil {
		return report, err
	}
	log := s.log.With(logger.String("run_id", rescan.RunID))
	log.Info("scan started", logger.String("base", base))

	records, failures, err := s.Walk(ctx, base)
	if err != nil {
		log.Error("scan aborted, availability unchanged", logger.Error(err))
		return report, err
	}
	report.Matched = len(records) + len(failures)
	report.ParseErrors = failures

	// An empty or unmounted base would otherwise mark every record unavailable
	if report.Matched == 0 {
		report.Skipped = true
		report.Elapsed = time.Since(start)
		log.Warn("no files found, availability unchanged", logger.String("base", base))
		return report, nil
	}

	report.Store, err = rescan.Commit(ctx, records)
	if err != nil {
		return report, err
	}
	report.Elapsed = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordScan(report.Matched, len(failures), report.Elapsed.Seconds())
	}
	log.Info("scan finished",
		logger.Int("matched", report.Matched),
		logger.Int("parse_errors", len(failures)),
		logger.Int64("inserted", report.Store.Inserted),
		logger.Int64("available", report.Store.Available),
		logger.Int64("unavailable", report.Store.Unavailable),
		logger.Duration("elapsed", report.Elapsed))
	return report, nil
}
