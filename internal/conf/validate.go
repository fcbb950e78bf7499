// conf/validate.go

package conf

import (
	"fmt"
	"strings"
)

// Database backends
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// Edge policies of the interval detector
const (
	EdgePolicyHold   = "hold"
	EdgePolicyAbsent = "absent"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateMainSettings,
		validateDatabaseSettings,
		validateSelectionSettings,
		validateFloweringSettings,
		validateAnnotationSettings,
		validateNodeSettings,
		validateWebServerSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMainSettings(s *Settings) error {
	if s.Main.BasePath == "" {
		return fmt.Errorf("main.basepath must be set")
	}
	if len(s.Main.Extensions) == 0 {
		return fmt.Errorf("main.extensions must list at least one extension")
	}
	for i, ext := range s.Main.Extensions {
		if !strings.HasPrefix(ext, ".") {
			s.Main.Extensions[i] = "." + ext
		}
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	var errs []string

	switch s.Database.Type {
	case DatabaseSQLite:
		if s.Database.SQLite.Path == "" {
			errs = append(errs, "database.sqlite.path must be set")
		}
	case DatabaseMySQL:
		if s.Database.MySQL.Host == "" || s.Database.MySQL.Database == "" {
			errs = append(errs, "database.mysql.host and database.mysql.database must be set")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, s.Database.Type))
	}

	if s.Database.BatchSize <= 0 {
		errs = append(errs, "database.batchsize must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("database settings errors: %v", errs)
	}
	return nil
}

func validateSelectionSettings(s *Settings) error {
	start, end := s.Selection.StartHour, s.Selection.EndHour
	if start < 0 || end > 24 || start >= end {
		return fmt.Errorf("selection hours must satisfy 0 <= starthour < endhour <= 24, got %d and %d", start, end)
	}
	return nil
}

func validateFloweringSettings(s *Settings) error {
	if err := validateWindow(s.Flowering.Window); err != nil {
		return fmt.Errorf("flowering.window: %w", err)
	}
	if err := validateEdgePolicy(s.Flowering.EdgePolicy); err != nil {
		return fmt.Errorf("flowering.edgepolicy: %w", err)
	}
	return nil
}

func validateWindow(w int) error {
	if w < 1 || w%2 == 0 {
		return fmt.Errorf("must be a positive odd number, got %d", w)
	}
	return nil
}

func validateEdgePolicy(p string) error {
	switch p {
	case EdgePolicyHold, EdgePolicyAbsent:
		return nil
	default:
		return fmt.Errorf("must be %q or %q, got %q", EdgePolicyHold, EdgePolicyAbsent, p)
	}
}

func validateAnnotationSettings(s *Settings) error {
	var errs []string
	a := &s.Annotation

	if len(a.Classes) == 0 {
		errs = append(errs, "annotation.classes must not be empty")
	}
	types := make(map[int]bool, len(a.Classes))
	classes := make(map[int]bool, len(a.Classes))
	for _, c := range a.Classes {
		if types[c.Type] {
			errs = append(errs, fmt.Sprintf("annotation type %d is mapped twice", c.Type))
		}
		if classes[c.Class] {
			errs = append(errs, fmt.Sprintf("class index %d is used by more than one annotation type", c.Class))
		}
		if c.Class < 0 {
			errs = append(errs, fmt.Sprintf("class index %d must not be negative", c.Class))
		}
		types[c.Type] = true
		classes[c.Class] = true
	}

	if a.LabelDir == "" {
		errs = append(errs, "annotation.labeldir must be set")
	}
	if a.CopyImages && a.ImageDir == "" {
		errs = append(errs, "annotation.imagedir must be set when copyimages is enabled")
	}
	if a.ExportResolution <= 0 {
		errs = append(errs, "annotation.exportresolution must be positive")
	}
	if a.Workers < 1 {
		errs = append(errs, "annotation.workers must be at least 1")
	}
	if a.MinFreeSpace != "" {
		if _, err := ParseSize(a.MinFreeSpace); err != nil {
			errs = append(errs, fmt.Sprintf("annotation.minfreespace: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("annotation settings errors: %v", errs)
	}
	return nil
}

func validateNodeSettings(s *Settings) error {
	seen := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes: every node needs an id")
		}
		if seen[n.ID] {
			return fmt.Errorf("nodes: node %s is listed twice", n.ID)
		}
		seen[n.ID] = true
		if n.Latitude < -90 || n.Latitude > 90 {
			return fmt.Errorf("nodes: latitude of %s must be between -90 and 90", n.ID)
		}
		if n.Longitude < -180 || n.Longitude > 180 {
			return fmt.Errorf("nodes: longitude of %s must be between -180 and 180", n.ID)
		}
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if s.WebServer.Enabled && s.WebServer.Listen == "" {
		return fmt.Errorf("webserver.listen must be set when the webserver is enabled")
	}
	return nil
}
