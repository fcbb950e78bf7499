// Package capture parses the metadata encoded in camera-trap image filenames.
//
// Camera nodes name their captures <node_id>_<YYYY-MM-DDTHH-MM-SS>Z.<ext>,
// for example 00-17-88-01-02-03_2021-06-26T11-04-04Z.jpg. The timestamp is UTC.
package capture

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/WullT/P8-Tools/internal/errors"
)

// TimestampLayout is the time layout embedded in capture filenames
const TimestampLayout = "2006-01-02T15-04-05Z"

// Metadata is what a capture filename tells about an image
type Metadata struct {
	Filename string    // basename including extension
	NodeID   string    // prefix before the first underscore
	Date     time.Time // capture time in UTC
}

// Parse extracts node and capture time from a filename or path. Both / and \
// are accepted as path separators.
func Parse(p string) (Metadata, error) {
	base := Basename(p)

	nodeID, rest, found := strings.Cut(base, "_")
	if !found || nodeID == "" {
		return Metadata{}, parseError(p, "missing node prefix")
	}

	stamp, _, _ := strings.Cut(rest, "_")
	stamp, _, _ = strings.Cut(stamp, ".")

	date, err := time.ParseInLocation(TimestampLayout, stamp, time.UTC)
	if err != nil {
		return Metadata{}, errors.New(err).
			Component("capture").
			Category(errors.CategoryFileParsing).
			FileContext(p).
			Context("timestamp", stamp).
			Build()
	}

	return Metadata{Filename: base, NodeID: nodeID, Date: date}, nil
}

// Format builds the capture filename for a node and time. ext may be given
// with or without a leading dot.
func Format(nodeID string, date time.Time, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return nodeID + "_" + date.UTC().Format(TimestampLayout) + ext
}

// Basename returns the last element of p after normalizing separators
func Basename(p string) string {
	return path.Base(ToSlash(p))
}

// ToSlash converts Windows separators to forward slashes regardless of the
// host platform, so paths recorded on one system match on another.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// RelativePath returns p relative to base with forward slashes
func RelativePath(base, p string) (string, error) {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return "", errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("base", base).
			FileContext(p).
			Build()
	}
	return ToSlash(rel), nil
}

// Stem returns the basename without its extension
func Stem(p string) string {
	base := Basename(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

func parseError(p, reason string) error {
	return errors.Newf("malformed capture filename %q: %s", p, reason).
		Component("capture").
		Category(errors.CategoryFileParsing).
		FileContext(p).
		Build()
}
