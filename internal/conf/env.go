// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "P8_DEBUG", validateEnvBool},
		{"main.basepath", "P8_BASEPATH", validateEnvPath},

		{"database.type", "P8_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "P8_DATABASE_PATH", validateEnvPath},
		{"database.mysql.username", "P8_MYSQL_USERNAME", nil},
		{"database.mysql.password", "P8_MYSQL_PASSWORD", nil},
		{"database.mysql.host", "P8_MYSQL_HOST", nil},
		{"database.mysql.port", "P8_MYSQL_PORT", validateEnvPort},
		{"database.mysql.database", "P8_MYSQL_DATABASE", nil},

		{"flowering.window", "P8_FLOWERING_WINDOW", validateEnvWindow},
		{"flowering.edgepolicy", "P8_FLOWERING_EDGEPOLICY", validateEnvEdgePolicy},

		{"webserver.listen", "P8_WEBSERVER_LISTEN", nil},
		{"logging.default_level", "P8_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPath(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	default:
		return fmt.Errorf("must be %q or %q", DatabaseSQLite, DatabaseMySQL)
	}
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be a port number between 1 and 65535")
	}
	return nil
}

func validateEnvWindow(value string) error {
	w, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	return validateWindow(w)
}

func validateEnvEdgePolicy(value string) error {
	return validateEdgePolicy(value)
}

func validateEnvLogLevel(value string) error {
	switch value {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of trace, debug, info, warn, error")
	}
}
