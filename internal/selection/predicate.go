package selection

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/WullT/P8-Tools/internal/datastore"
)

// NodeEquals restricts the selection to one camera node
func NodeEquals(nodeID string) datastore.Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("node_id = ?", nodeID)
	}
}

// hourBound renders an hour as the zero-padded "HH:00" compared against the
// time of day of the capture
func hourBound(h int) string {
	return fmt.Sprintf("%02d:00", h)
}

// TimeOfDayBetween keeps images captured between the start and end hour,
// both inclusive. A nil bound is open. The end bound is "HH:00", so an end
// hour of 17 excludes 17:01.
func TimeOfDayBetween(d datastore.Dialect, start, end *int) datastore.Scope {
	tod := d.TimeOfDay("date")
	return func(db *gorm.DB) *gorm.DB {
		if start != nil {
			db = db.Where(tod+" >= ?", hourBound(*start))
		}
		if end != nil {
			db = db.Where(tod+" <= ?", hourBound(*end))
		}
		return db
	}
}

// DateBetween keeps images captured in [from, to). Zero times are open bounds.
func DateBetween(from, to time.Time) datastore.Scope {
	return func(db *gorm.DB) *gorm.DB {
		if !from.IsZero() {
			db = db.Where("date >= ?", from.UTC())
		}
		if !to.IsZero() {
			db = db.Where("date < ?", to.UTC())
		}
		return db
	}
}

// StatusIs filters on the classification state
func StatusIs(s Status) datastore.Scope {
	return func(db *gorm.DB) *gorm.DB {
		switch s {
		case StatusUnclassified:
			return db.Where("flower IS NULL")
		case StatusClassified:
			return db.Where("flower IS NOT NULL")
		case StatusUncertain:
			return db.Where("flower = ?", 0)
		case StatusFavorite:
			return db.Where("favorite = ?", 1)
		default:
			return db
		}
	}
}

// AvailableOnly drops images that were not found by the last rescan
func AvailableOnly() datastore.Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("available = ?", true)
	}
}
