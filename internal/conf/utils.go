// conf/utils.go various util functions for configuration package
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/WullT/P8-Tools/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml. If
// one of them already holds a config.yaml it is returned alone.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			filepath.Join(homeDir, "AppData", "Roaming", "p8tools"),
			".",
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "p8tools"),
			"/etc/p8tools",
			".",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// GetBasePath expands environment variables and a leading ~ in path
func GetBasePath(path string) string {
	expanded := os.ExpandEnv(path)
	if rest, ok := strings.CutPrefix(expanded, "~"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, rest)
		}
	}
	return filepath.Clean(expanded)
}

// ParseSize parses a human readable size such as "500MB" or "2GB" into bytes.
// A bare number is taken as bytes.
func ParseSize(size string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(size))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	units := []struct {
		suffix string
		factor uint64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	factor := uint64(1)
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			s = strings.TrimSpace(num)
			factor = u.factor
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid size %q", size)
	}
	return uint64(value * float64(factor)), nil
}
