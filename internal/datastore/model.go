package datastore

import (
	"time"
)

// ImageRecord is one camera-trap image known to the store
type ImageRecord struct {
	Filename    string         `gorm:"column:filename;primaryKey;type:varchar(255)"` // path basename, unique
	Path        string         `gorm:"column:path;type:text"`                        // relative to the image base directory
	NodeID      string         `gorm:"column:node_id;type:varchar(128);index:idx_images_node_date,priority:1"`
	Date        time.Time      `gorm:"column:date;index:idx_images_node_date,priority:2"`
	Flower      Classification `gorm:"column:flower"`
	Pollinator  *int           `gorm:"column:pollinator"`   // reserved
	CaptureType *int           `gorm:"column:capture_type"` // reserved
	Favorite    *int           `gorm:"column:favorite"`
	Available   bool           `gorm:"column:available;index"`
}

// TableName keeps the table name used by existing databases
func (ImageRecord) TableName() string {
	return "images"
}

// IsFavorite reports whether the image carries the favorite flag
func (r *ImageRecord) IsFavorite() bool {
	return r.Favorite != nil && *r.Favorite == 1
}

// AnnotationRecord is one bounding box drawn on an image, stored in pixel
// coordinates. The normalized form is derived on export and never stored.
type AnnotationRecord struct {
	Filename    string         `gorm:"column:filename;type:varchar(255);index:idx_annot_file_type,priority:1"`
	AnnotID     int            `gorm:"column:annot_id"` // sequence within (filename, annot_type)
	CX          int            `gorm:"column:cx"`
	CY          int            `gorm:"column:cy"`
	W           int            `gorm:"column:w"`
	H           int            `gorm:"column:h"`
	X0          int            `gorm:"column:x0"`
	Y0          int            `gorm:"column:y0"`
	X1          int            `gorm:"column:x1"`
	Y1          int            `gorm:"column:y1"`
	ImageWidth  int            `gorm:"column:image_width"`
	ImageHeight int            `gorm:"column:image_height"`
	AnnotType   AnnotationType `gorm:"column:annot_type;index:idx_annot_file_type,priority:2"`
}

// TableName keeps the table name used by existing databases
func (AnnotationRecord) TableName() string {
	return "annot"
}

// NodeAggregate holds per-node classification counts
type NodeAggregate struct {
	NodeID     string `gorm:"column:node_id" json:"node_id"`
	Images     int64  `gorm:"column:images" json:"images"`
	Classified int64  `gorm:"column:classified" json:"classified"`
	Present    int64  `gorm:"column:present" json:"present"`
	Uncertain  int64  `gorm:"column:uncertain" json:"uncertain"`
	Absent     int64  `gorm:"column:absent" json:"absent"`
}

// ImageCounts holds the total and available image counts
type ImageCounts struct {
	All       int64 `json:"all"`
	Available int64 `json:"available"`
}

// RescanReport summarizes a committed rescan
type RescanReport struct {
	RunID       string        `json:"run_id"`
	Found       int           `json:"found"`       // files seen on disk
	Inserted    int64         `json:"inserted"`    // records that did not exist before
	Available   int64         `json:"available"`   // records marked available
	Unavailable int64         `json:"unavailable"` // records left unavailable
	Elapsed     time.Duration `json:"elapsed"`
}
