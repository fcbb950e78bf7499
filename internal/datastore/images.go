package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

func validateImageRecord(rec *ImageRecord) error {
	switch {
	case rec == nil:
		return validationError("image record is nil", "record", nil)
	case strings.TrimSpace(rec.Filename) == "":
		return validationError("filename must not be empty", "filename", rec.Filename)
	case rec.NodeID == "":
		return validationError("node id must not be empty", "node_id", rec.Filename)
	case rec.Date.IsZero():
		return validationError("capture date must be set", "date", rec.Filename)
	}
	return nil
}

// UpsertImage inserts rec unless a record with the same filename exists.
// Existing records are never overwritten; inserted reports which case applied.
func (ds *DataStore) UpsertImage(ctx context.Context, rec *ImageRecord) (inserted bool, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpUpsertImage, start, err) }()

	if err = validateImageRecord(rec); err != nil {
		return false, err
	}
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}

	rec.Date = rec.Date.UTC()
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if result.Error != nil {
		err = dbError(result.Error, "upsert_image", "filename", rec.Filename)
		return false, err
	}
	return result.RowsAffected > 0, nil
}

// GetImage returns the record for filename
func (ds *DataStore) GetImage(ctx context.Context, filename string) (rec ImageRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpGetImage, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return rec, err
	}
	if err = db.Where("filename = ?", filename).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = notFoundError("image", filename)
			return rec, err
		}
		err = dbError(err, "get_image", "filename", filename)
		return rec, err
	}
	return rec, nil
}

// updateImageColumn sets one column on one image. A filename that matches no
// row is reported as NotFound.
func (ds *DataStore) updateImageColumn(ctx context.Context, operation, filename, column string, value any) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	result := db.Model(&ImageRecord{}).Where("filename = ?", filename).Update(column, value)
	if result.Error != nil {
		return dbError(result.Error, operation, "filename", filename, "column", column)
	}
	if result.RowsAffected == 0 {
		return notFoundError("image", filename)
	}
	return nil
}

// SetClassification stores the flower label of one image. Unclassified writes NULL.
func (ds *DataStore) SetClassification(ctx context.Context, filename string, c Classification) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpSetClassification, start, err) }()

	err = ds.updateImageColumn(ctx, "set_classification", filename, "flower", c)
	if err == nil {
		ds.log.Debug("classification updated",
			logger.String("filename", filename),
			logger.String("flower", c.String()))
	}
	return err
}

// SetFavorite sets or clears the favorite flag of one image
func (ds *DataStore) SetFavorite(ctx context.Context, filename string, favorite bool) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpSetFavorite, start, err) }()

	var value any
	if favorite {
		value = 1
	}
	return ds.updateImageColumn(ctx, "set_favorite", filename, "favorite", value)
}

// FindImages returns the images matching every scope, ordered by node and date
func (ds *DataStore) FindImages(ctx context.Context, scopes ...Scope) (records []ImageRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpSelect, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	if err = db.Scopes(scopes...).Order("node_id, date").Find(&records).Error; err != nil {
		err = dbError(err, "find_images")
		return nil, err
	}
	return records, nil
}

// Counts returns the number of known and available images
func (ds *DataStore) Counts(ctx context.Context) (counts ImageCounts, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpCounts, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return counts, err
	}
	if err = db.Model(&ImageRecord{}).Count(&counts.All).Error; err != nil {
		err = dbError(err, "count_images")
		return counts, err
	}
	if err = db.Model(&ImageRecord{}).Where("available = ?", true).Count(&counts.Available).Error; err != nil {
		err = dbError(err, "count_available_images")
		return counts, err
	}
	if ds.metrics != nil {
		ds.metrics.SetImageCounts(counts.All, counts.Available)
	}
	return counts, nil
}
