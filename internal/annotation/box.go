// Package annotation converts between the rectangles drawn in the labeling
// UI, the pixel boxes stored in the annot table and the normalized boxes
// written to YOLO label files.
package annotation

import (
	"math"

	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
)

// Shape is a rectangle as drawn in the UI. Corners may come in any order and
// coordinates may be fractional.
type Shape struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Box is a pixel-space rectangle with X0 < X1 and Y0 < Y1
type Box struct {
	ID int `json:"id"`
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Center returns the integer box center, truncated
func (b Box) Center() (cx, cy int) {
	return (b.X0 + b.X1) / 2, (b.Y0 + b.Y1) / 2
}

// Size returns the box width and height
func (b Box) Size() (w, h int) {
	return abs(b.X1 - b.X0), abs(b.Y1 - b.Y0)
}

// Valid reports whether the box spans a positive area
func (b Box) Valid() bool {
	return b.X1 > b.X0 && b.Y1 > b.Y0
}

// NormalizedBox is a box as fractions of the image size, YOLO style
type NormalizedBox struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func degenerate(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("annotation").
		Category(errors.CategoryGeometry).
		Build()
}

// Normalize converts b to fractions of a width x height image
func Normalize(b Box, width, height int) (NormalizedBox, error) {
	if width <= 0 || height <= 0 {
		return NormalizedBox{}, degenerate("image dimensions %dx%d must be positive", width, height)
	}
	if !b.Valid() {
		return NormalizedBox{}, degenerate("box (%d,%d)-(%d,%d) has no area", b.X0, b.Y0, b.X1, b.Y1)
	}
	cx, cy := b.Center()
	w, h := b.Size()
	return normalizeCenter(cx, cy, w, h, width, height), nil
}

func normalizeCenter(cx, cy, w, h, width, height int) NormalizedBox {
	return NormalizedBox{
		CX: float64(cx) / float64(width),
		CY: float64(cy) / float64(height),
		W:  float64(w) / float64(width),
		H:  float64(h) / float64(height),
	}
}

// roundHalfUp rounds to the nearest integer, halves upward. The small bias
// absorbs float error from the normalize/denormalize round trip.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5 + 1e-9))
}

// Denormalize converts nb back to pixels of a width x height image
func Denormalize(nb NormalizedBox, width, height int) Box {
	cx, cy := nb.CX*float64(width), nb.CY*float64(height)
	w, h := nb.W*float64(width), nb.H*float64(height)
	x0 := roundHalfUp(cx - w/2)
	y0 := roundHalfUp(cy - h/2)
	return Box{
		X0: x0,
		Y0: y0,
		X1: x0 + roundHalfUp(w),
		Y1: y0 + roundHalfUp(h),
	}
}

// FromShapes converts drawn rectangles to pixel boxes. Coordinates are
// truncated, corners sorted per axis and shapes without area dropped. Ids
// 0..n-1 are assigned to the kept boxes in input order.
func FromShapes(shapes []Shape) []Box {
	boxes := make([]Box, 0, len(shapes))
	for _, s := range shapes {
		x0, x1 := int(s.X0), int(s.X1)
		y0, y1 := int(s.Y0), int(s.Y1)
		b := Box{
			X0: min(x0, x1),
			Y0: min(y0, y1),
			X1: max(x0, x1),
			Y1: max(y0, y1),
		}
		if !b.Valid() {
			continue
		}
		b.ID = len(boxes)
		boxes = append(boxes, b)
	}
	return boxes
}

// ToRecords builds annot rows for boxes drawn on a width x height image.
// No boxes yields no rows whatever the dimensions, so a type can be cleared
// without knowing the image size.
func ToRecords(filename string, annotType datastore.AnnotationType, boxes []Box, width, height int) ([]datastore.AnnotationRecord, error) {
	if len(boxes) == 0 {
		return []datastore.AnnotationRecord{}, nil
	}
	if width <= 0 || height <= 0 {
		return nil, degenerate("image dimensions %dx%d must be positive", width, height)
	}
	records := make([]datastore.AnnotationRecord, 0, len(boxes))
	for _, b := range boxes {
		if !b.Valid() {
			return nil, degenerate("box %d (%d,%d)-(%d,%d) has no area", b.ID, b.X0, b.Y0, b.X1, b.Y1)
		}
		cx, cy := b.Center()
		w, h := b.Size()
		records = append(records, datastore.AnnotationRecord{
			Filename:    filename,
			AnnotID:     b.ID,
			CX:          cx,
			CY:          cy,
			W:           w,
			H:           h,
			X0:          b.X0,
			Y0:          b.Y0,
			X1:          b.X1,
			Y1:          b.Y1,
			ImageWidth:  width,
			ImageHeight: height,
			AnnotType:   annotType,
		})
	}
	return records, nil
}

// BoxFromRecord returns the pixel box stored in rec
func BoxFromRecord(rec datastore.AnnotationRecord) Box {
	return Box{ID: rec.AnnotID, X0: rec.X0, Y0: rec.Y0, X1: rec.X1, Y1: rec.Y1}
}
