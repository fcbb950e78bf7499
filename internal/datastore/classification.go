package datastore

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/WullT/P8-Tools/internal/errors"
)

// Classification is the tri-state flower label of an image. The zero value
// is Unclassified and is stored as NULL.
type Classification int8

const (
	Unclassified Classification = iota
	Absent
	Uncertain
	Present
)

// Score returns the stored integer: 1 present, 0 uncertain, -1 absent.
// ok is false for Unclassified.
func (c Classification) Score() (score int, ok bool) {
	switch c {
	case Present:
		return 1, true
	case Uncertain:
		return 0, true
	case Absent:
		return -1, true
	default:
		return 0, false
	}
}

// ClassificationFromScore maps a stored integer back to a Classification
func ClassificationFromScore(v int64) (Classification, error) {
	switch v {
	case 1:
		return Present, nil
	case 0:
		return Uncertain, nil
	case -1:
		return Absent, nil
	default:
		return Unclassified, errors.Newf("invalid flower value %d", v).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
}

func (c Classification) String() string {
	switch c {
	case Present:
		return "present"
	case Uncertain:
		return "uncertain"
	case Absent:
		return "absent"
	default:
		return "none"
	}
}

// ParseClassification accepts present, absent, uncertain, none and the
// stored integers 1, -1, 0.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "yes", "1":
		return Present, nil
	case "absent", "no", "-1":
		return Absent, nil
	case "uncertain", "unsure", "0":
		return Uncertain, nil
	case "none", "unclassified", "":
		return Unclassified, nil
	default:
		return Unclassified, errors.Newf("invalid classification %q", s).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Value implements driver.Valuer
func (c Classification) Value() (driver.Value, error) {
	score, ok := c.Score()
	if !ok {
		return nil, nil
	}
	return int64(score), nil
}

// Scan implements sql.Scanner
func (c *Classification) Scan(src any) error {
	var v int64
	switch s := src.(type) {
	case nil:
		*c = Unclassified
		return nil
	case int64:
		v = s
	case int32:
		v = int64(s)
	case int:
		v = int64(s)
	case []byte:
		if _, err := fmt.Sscan(string(s), &v); err != nil {
			return fmt.Errorf("scan flower %q: %w", s, err)
		}
	default:
		return fmt.Errorf("scan flower: unsupported type %T", src)
	}

	parsed, err := ClassificationFromScore(v)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// GormDataType keeps the column an integer
func (Classification) GormDataType() string {
	return "int"
}

// MarshalText renders the classification by name for JSON and YAML
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AnnotationType identifies one labeling task. Annotations of different types
// on the same image are stored and replaced independently.
type AnnotationType int

const (
	TypeDaisy      AnnotationType = 2
	TypeWildCarrot AnnotationType = 3
	TypeCornflower AnnotationType = 4
)

// AnnotationTypes lists all known annotation types in ascending order
var AnnotationTypes = []AnnotationType{TypeDaisy, TypeWildCarrot, TypeCornflower}

func (t AnnotationType) String() string {
	switch t {
	case TypeDaisy:
		return "daisy"
	case TypeWildCarrot:
		return "wildcarrot"
	case TypeCornflower:
		return "cornflower"
	default:
		return fmt.Sprintf("type%d", int(t))
	}
}

// Valid reports whether t is a known annotation type
func (t AnnotationType) Valid() bool {
	switch t {
	case TypeDaisy, TypeWildCarrot, TypeCornflower:
		return true
	default:
		return false
	}
}

// ParseAnnotationType accepts the type name or its number
func ParseAnnotationType(s string) (AnnotationType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, t := range AnnotationTypes {
		if key == t.String() || key == fmt.Sprint(int(t)) {
			return t, nil
		}
	}
	return 0, errors.Newf("unknown annotation type %q", s).
		Component("datastore").
		Category(errors.CategoryValidation).
		Build()
}
