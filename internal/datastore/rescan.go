package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

// Rescan is a two-phase availability refresh. The caller collects the files
// found on disk and hands them to Commit, which inserts new records and
// recomputes availability in one transaction. A Rescan that is never
// committed leaves the store untouched.
type Rescan struct {
	RunID string

	ds      *DataStore
	started time.Time

	mu        sync.Mutex
	committed bool
}

// BeginRescan starts a rescan run
func (ds *DataStore) BeginRescan(ctx context.Context) (*Rescan, error) {
	if _, err := ds.db(ctx); err != nil {
		return nil, err
	}
	r := &Rescan{
		RunID:   uuid.NewString(),
		ds:      ds,
		started: time.Now(),
	}
	ds.log.Debug("rescan started", logger.String("run_id", r.RunID))
	return r, nil
}

// Commit inserts the records in found that are not yet known, marks every
// record unavailable and then marks the found filenames available again.
// Classification and favorite flags of existing records are preserved.
// Invalid records are logged and skipped.
func (r *Rescan) Commit(ctx context.Context, found []ImageRecord) (report RescanReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds := r.ds
	start := time.Now()
	defer func() { ds.observe(metrics.OpRescan, start, err) }()

	if r.committed {
		return report, errors.Newf("rescan %s already committed", r.RunID).
			Component("datastore").
			Category(errors.CategoryState).
			Context("run_id", r.RunID).
			Build()
	}

	records := r.dedupe(found)
	filenames := make([]string, len(records))
	for i := range records {
		filenames[i] = records[i].Filename
	}

	report = RescanReport{RunID: r.RunID, Found: len(records)}

	err = ds.transaction(ctx, metrics.OpRescan, func(tx *gorm.DB) error {
		if len(records) > 0 {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(records, ds.batchSize)
			if result.Error != nil {
				return dbError(result.Error, "rescan_insert", "run_id", r.RunID)
			}
			report.Inserted = result.RowsAffected
		}

		if err := tx.Model(&ImageRecord{}).Where("available = ?", true).
			Update("available", false).Error; err != nil {
			return dbError(err, "rescan_reset", "run_id", r.RunID)
		}

		available, err := markAvailable(tx, filenames, ds.batchSize)
		if err != nil {
			return dbError(err, "rescan_mark_available", "run_id", r.RunID)
		}
		report.Available = available

		var total int64
		if err := tx.Model(&ImageRecord{}).Count(&total).Error; err != nil {
			return dbError(err, "rescan_count", "run_id", r.RunID)
		}
		report.Unavailable = total - available
		return nil
	})
	if err != nil {
		ds.log.Error("rescan rolled back",
			logger.String("run_id", r.RunID),
			logger.Error(err))
		return RescanReport{RunID: r.RunID}, err
	}

	r.committed = true
	report.Elapsed = time.Since(r.started)
	if ds.metrics != nil {
		ds.metrics.RecordRescan(report.Inserted, report.Available, report.Unavailable)
	}
	ds.log.Info("rescan committed",
		logger.String("run_id", r.RunID),
		logger.Int("found", report.Found),
		logger.Int64("inserted", report.Inserted),
		logger.Int64("available", report.Available),
		logger.Int64("unavailable", report.Unavailable),
		logger.Duration("elapsed", report.Elapsed))
	return report, nil
}

// dedupe drops invalid records and repeated filenames, keeping the first
func (r *Rescan) dedupe(found []ImageRecord) []ImageRecord {
	seen := make(map[string]struct{}, len(found))
	out := make([]ImageRecord, 0, len(found))
	for i := range found {
		rec := found[i]
		if err := validateImageRecord(&rec); err != nil {
			r.ds.log.Warn("skipping invalid image record",
				logger.String("run_id", r.RunID),
				logger.String("filename", rec.Filename),
				logger.Error(err))
			continue
		}
		if _, dup := seen[rec.Filename]; dup {
			continue
		}
		seen[rec.Filename] = struct{}{}
		rec.Date = rec.Date.UTC()
		rec.Available = true
		out = append(out, rec)
	}
	return out
}

// markAvailable flags filenames as available in batches and returns the
// number of matched rows
func markAvailable(tx *gorm.DB, filenames []string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var total int64
	for i := 0; i < len(filenames); i += batchSize {
		end := min(i+batchSize, len(filenames))
		result := tx.Model(&ImageRecord{}).
			Where("filename IN ?", filenames[i:end]).
			Update("available", true)
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
	}
	return total, nil
}

// MarkAllUnavailable flags every record as unavailable
func (ds *DataStore) MarkAllUnavailable(ctx context.Context) (int64, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return 0, err
	}
	result := db.Model(&ImageRecord{}).Where("available = ?", true).Update("available", false)
	if result.Error != nil {
		return 0, dbError(result.Error, "mark_all_unavailable")
	}
	return result.RowsAffected, nil
}

// MarkAvailable flags the given filenames as available. Unknown filenames are
// ignored; the returned count covers matched records only.
func (ds *DataStore) MarkAvailable(ctx context.Context, filenames ...string) (int64, error) {
	if len(filenames) == 0 {
		return 0, nil
	}
	var n int64
	err := ds.transaction(ctx, "mark_available", func(tx *gorm.DB) error {
		var err error
		n, err = markAvailable(tx, filenames, ds.batchSize)
		return err
	})
	if err != nil {
		return 0, dbError(err, "mark_available", "count", len(filenames))
	}
	return n, nil
}
