package datastore

import "fmt"

// Dialect identifies the SQL flavour of the connected database
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// TimeOfDay returns an SQL expression rendering column as zero-padded "HH:MM"
func (d Dialect) TimeOfDay(column string) string {
	switch d {
	case DialectMySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%H:%%i')", column)
	default:
		return fmt.Sprintf("strftime('%%H:%%M', %s)", column)
	}
}

// Day returns an SQL expression rendering column as "YYYY-MM-DD"
func (d Dialect) Day(column string) string {
	switch d {
	case DialectMySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", column)
	default:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
	}
}
