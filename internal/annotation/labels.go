package annotation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/WullT/P8-Tools/internal/datastore"
)

// LabelLine renders one YOLO label line: "<class> <cx> <cy> <w> <h>"
func LabelLine(class int, nb NormalizedBox) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", class, nb.CX, nb.CY, nb.W, nb.H)
}

// LabelLines renders the label lines of one image. Records of unmapped types
// are ignored. Lines are grouped by ascending class, then by annotation id.
// The stored center and size are normalized by the stored image dimensions.
func LabelLines(records []datastore.AnnotationRecord, cm ClassMap) ([]string, error) {
	type entry struct {
		class int
		rec   datastore.AnnotationRecord
	}
	entries := make([]entry, 0, len(records))
	for _, rec := range records {
		class, ok := cm.Class(rec.AnnotType)
		if !ok {
			continue
		}
		entries = append(entries, entry{class: class, rec: rec})
	}
	slices.SortStableFunc(entries, func(a, b entry) int {
		if a.class != b.class {
			return a.class - b.class
		}
		return a.rec.AnnotID - b.rec.AnnotID
	})

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		r := e.rec
		if r.ImageWidth <= 0 || r.ImageHeight <= 0 {
			return nil, degenerate("annotation %d of %s has image dimensions %dx%d",
				r.AnnotID, r.Filename, r.ImageWidth, r.ImageHeight)
		}
		nb := normalizeCenter(r.CX, r.CY, r.W, r.H, r.ImageWidth, r.ImageHeight)
		lines = append(lines, LabelLine(e.class, nb))
	}
	return lines, nil
}

// LabelFile joins lines into label file content, or returns "" when there
// is nothing to write
func LabelFile(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
