package annotation

import (
	"slices"

	"github.com/WullT/P8-Tools/internal/conf"
	"github.com/WullT/P8-Tools/internal/datastore"
	"github.com/WullT/P8-Tools/internal/errors"
)

// ClassMap maps annotation types to YOLO class indices. No two types share a
// class.
type ClassMap struct {
	classes map[datastore.AnnotationType]int
	names   map[int]string
}

// DefaultClassMap maps daisy, wild carrot and cornflower to classes 0, 1, 2
func DefaultClassMap() ClassMap {
	cm, _ := NewClassMap(map[datastore.AnnotationType]int{
		datastore.TypeDaisy:      0,
		datastore.TypeWildCarrot: 1,
		datastore.TypeCornflower: 2,
	}, nil)
	return cm
}

func classMapError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("annotation").
		Category(errors.CategoryValidation).
		Build()
}

// NewClassMap validates and builds a class map. names is optional; missing
// names default to the annotation type name.
func NewClassMap(classes map[datastore.AnnotationType]int, names map[int]string) (ClassMap, error) {
	cm := ClassMap{
		classes: make(map[datastore.AnnotationType]int, len(classes)),
		names:   make(map[int]string, len(classes)),
	}
	owner := make(map[int]datastore.AnnotationType, len(classes))
	for t, class := range classes {
		if !t.Valid() {
			return ClassMap{}, classMapError("unknown annotation type %d", int(t))
		}
		if class < 0 {
			return ClassMap{}, classMapError("class index of %s must not be negative", t)
		}
		if other, dup := owner[class]; dup {
			return ClassMap{}, classMapError("class %d is mapped from both %s and %s", class, other, t)
		}
		owner[class] = t
		cm.classes[t] = class
		if name := names[class]; name != "" {
			cm.names[class] = name
		} else {
			cm.names[class] = t.String()
		}
	}
	return cm, nil
}

// ClassMapFromSettings builds the class map configured under annotation.classes
func ClassMapFromSettings(settings []conf.ClassSetting) (ClassMap, error) {
	if len(settings) == 0 {
		return DefaultClassMap(), nil
	}
	classes := make(map[datastore.AnnotationType]int, len(settings))
	names := make(map[int]string, len(settings))
	for _, s := range settings {
		t := datastore.AnnotationType(s.Type)
		if _, dup := classes[t]; dup {
			return ClassMap{}, classMapError("annotation type %d is mapped twice", s.Type)
		}
		classes[t] = s.Class
		names[s.Class] = s.Name
	}
	return NewClassMap(classes, names)
}

// Class returns the class index of t
func (cm ClassMap) Class(t datastore.AnnotationType) (int, bool) {
	class, ok := cm.classes[t]
	return class, ok
}

// Types returns the mapped annotation types in ascending class order
func (cm ClassMap) Types() []datastore.AnnotationType {
	types := make([]datastore.AnnotationType, 0, len(cm.classes))
	for t := range cm.classes {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b datastore.AnnotationType) int {
		return cm.classes[a] - cm.classes[b]
	})
	return types
}

// Names returns the class names indexed by class. Gaps in the class indices
// are filled with empty names.
func (cm ClassMap) Names() []string {
	maxClass := -1
	for class := range cm.names {
		maxClass = max(maxClass, class)
	}
	names := make([]string, maxClass+1)
	for class, name := range cm.names {
		names[class] = name
	}
	return names
}

// Len returns the number of mapped types
func (cm ClassMap) Len() int {
	return len(cm.classes)
}
