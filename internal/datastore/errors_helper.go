// Package datastore provides error handling helpers for database operations
package datastore

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/WullT/P8-Tools/internal/errors"
)

// dbError creates a properly categorized database error with context.
// Constraint violations are reported as conflicts.
func dbError(err error, operation string, context ...any) error {
	priority := errors.PriorityMedium
	if isDatabaseCorruption(err) {
		priority = errors.PriorityCritical
	}
	category := errors.CategoryDatabase
	if isConstraintViolation(err) {
		category = errors.CategoryConflict
	}

	builder := errors.New(err).
		Component("datastore").
		Category(category).
		Priority(priority).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	if isDatabaseLocked(err) {
		builder = builder.Context("locked", true)
	}

	return builder.Build()
}

// validationError creates a validation error for invalid caller input
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// geometryError reports a box whose corners do not span a positive area
func geometryError(filename string, rec *AnnotationRecord) error {
	return errors.Newf("degenerate box (%d,%d)-(%d,%d) on %s", rec.X0, rec.Y0, rec.X1, rec.Y1, filename).
		Component("datastore").
		Category(errors.CategoryGeometry).
		Context("filename", filename).
		Context("annot_id", rec.AnnotID).
		Build()
}

// notFoundError reports an operation on a filename absent from the store
func notFoundError(resource, identifier string) error {
	return errors.Newf("%s %s not found", resource, identifier).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Build()
}

// isDatabaseLocked reports SQLITE_BUSY / SQLITE_LOCKED and MySQL lock waits
func isDatabaseLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1205 || mysqlErr.Number == 1213 // lock wait timeout, deadlock
	}
	return false
}

// isConstraintViolation reports unique and other constraint failures
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func isDatabaseCorruption(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrCorrupt || sqliteErr.Code == sqlite3.ErrNotADB) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "malformed") || strings.Contains(errStr, "file is not a database")
}
