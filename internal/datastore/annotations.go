package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/WullT/P8-Tools/internal/logger"
	"github.com/WullT/P8-Tools/internal/observability/metrics"
)

func validateAnnotation(filename string, annotType AnnotationType, rec *AnnotationRecord) error {
	if rec.X1 <= rec.X0 || rec.Y1 <= rec.Y0 {
		return geometryError(filename, rec)
	}
	if rec.Filename != "" && rec.Filename != filename {
		return validationError("annotation belongs to another image", "filename", rec.Filename)
	}
	if rec.AnnotType != 0 && rec.AnnotType != annotType {
		return validationError("annotation has another type", "annot_type", rec.AnnotType)
	}
	return nil
}

// ReplaceAnnotations replaces every annotation of annotType on filename with
// records. An empty slice clears that type. On error the previous rows are kept.
func (ds *DataStore) ReplaceAnnotations(ctx context.Context, filename string, annotType AnnotationType, records []AnnotationRecord) (err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpReplaceAnnotations, start, err) }()

	if filename == "" {
		return validationError("filename must not be empty", "filename", filename)
	}
	if !annotType.Valid() {
		return validationError("unknown annotation type", "annot_type", int(annotType))
	}

	rows := make([]AnnotationRecord, len(records))
	for i := range records {
		if err = validateAnnotation(filename, annotType, &records[i]); err != nil {
			return err
		}
		rows[i] = records[i]
		rows[i].Filename = filename
		rows[i].AnnotType = annotType
	}

	err = ds.transaction(ctx, metrics.OpReplaceAnnotations, func(tx *gorm.DB) error {
		if err := tx.Where("filename = ? AND annot_type = ?", filename, annotType).
			Delete(&AnnotationRecord{}).Error; err != nil {
			return dbError(err, "delete_annotations", "filename", filename, "annot_type", int(annotType))
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return dbError(err, "insert_annotations", "filename", filename, "annot_type", int(annotType))
		}
		return nil
	})
	if err != nil {
		return err
	}

	ds.log.Debug("annotations replaced",
		logger.String("filename", filename),
		logger.String("annot_type", annotType.String()),
		logger.Int("count", len(rows)))
	return nil
}

// QueryAnnotations returns the annotations of filename ordered by type and id.
// A nil annotType returns every type.
func (ds *DataStore) QueryAnnotations(ctx context.Context, filename string, annotType *AnnotationType) (records []AnnotationRecord, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpQueryAnnotations, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Where("filename = ?", filename)
	if annotType != nil {
		q = q.Where("annot_type = ?", *annotType)
	}
	if err = q.Order("annot_type, annot_id").Find(&records).Error; err != nil {
		err = dbError(err, "query_annotations", "filename", filename)
		return nil, err
	}
	return records, nil
}

// AnnotatedFilenames returns the distinct filenames carrying at least one
// annotation of the given types, sorted. No types means any type.
func (ds *DataStore) AnnotatedFilenames(ctx context.Context, types ...AnnotationType) (filenames []string, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpQueryAnnotations, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Model(&AnnotationRecord{}).Distinct("filename")
	if len(types) > 0 {
		q = q.Where("annot_type IN ?", types)
	}
	if err = q.Order("filename").Pluck("filename", &filenames).Error; err != nil {
		err = dbError(err, "annotated_filenames")
		return nil, err
	}
	return filenames, nil
}
