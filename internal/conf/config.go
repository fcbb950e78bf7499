// config.go: settings struct for p8tools and functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/WullT/P8-Tools/internal/errors"
	"github.com/WullT/P8-Tools/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings describes where the camera-trap images live
type MainSettings struct {
	Name       string   `yaml:"name"`
	BasePath   string   `yaml:"basepath"`   // root directory scanned for images
	Extensions []string `yaml:"extensions"` // file extensions picked up by the scanner
}

// SQLiteSettings holds the SQLite database location
type SQLiteSettings struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busytimeout"`
}

// MySQLSettings holds MySQL connection parameters
type MySQLSettings struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// DatabaseSettings selects and configures the record store backend
type DatabaseSettings struct {
	Type          string         `yaml:"type"` // sqlite or mysql
	SQLite        SQLiteSettings `yaml:"sqlite"`
	MySQL         MySQLSettings  `yaml:"mysql"`
	BatchSize     int            `yaml:"batchsize"`     // rows per batch during rescans
	SlowThreshold time.Duration  `yaml:"slowthreshold"` // statements slower than this are logged at warn
}

// SelectionSettings holds the default time-of-day range of the image browser.
// A query bound equal to one of these is treated as no bound.
type SelectionSettings struct {
	StartHour int `yaml:"starthour"`
	EndHour   int `yaml:"endhour"`
}

// FloweringSettings configures the interval detector
type FloweringSettings struct {
	Window     int    `yaml:"window"`     // odd number of points in the centered moving minimum
	EdgePolicy string `yaml:"edgepolicy"` // hold or absent
}

// ClassSetting maps one annotation type to a YOLO class index
type ClassSetting struct {
	Type  int    `yaml:"type"`
	Class int    `yaml:"class"`
	Name  string `yaml:"name"`
}

// AnnotationSettings configures YOLO label export
type AnnotationSettings struct {
	Classes          []ClassSetting `yaml:"classes"`
	LabelDir         string         `yaml:"labeldir"`
	ImageDir         string         `yaml:"imagedir"`
	CopyImages       bool           `yaml:"copyimages"`
	ExportResolution int            `yaml:"exportresolution"` // long edge of exported image copies in pixels
	Workers          int            `yaml:"workers"`
	MinFreeSpace     string         `yaml:"minfreespace"` // e.g. "500MB"; export aborts when the target has less
}

// NodeLocation holds the coordinates of a camera node
type NodeLocation struct {
	ID        string  `yaml:"id"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// WebServerSettings configures the JSON API
type WebServerSettings struct {
	Enabled  bool          `yaml:"enabled"`
	Listen   string        `yaml:"listen"`
	CacheTTL time.Duration `yaml:"cachettl"` // lifetime of cached node aggregates
	Metrics  bool          `yaml:"metrics"`  // expose /metrics
}

// Settings contains all configuration options
type Settings struct {
	Debug bool `yaml:"debug"`

	Main       MainSettings         `yaml:"main"`
	Database   DatabaseSettings     `yaml:"database"`
	Selection  SelectionSettings    `yaml:"selection"`
	Flowering  FloweringSettings    `yaml:"flowering"`
	Annotation AnnotationSettings   `yaml:"annotation"`
	Nodes      []NodeLocation       `yaml:"nodes"`
	WebServer  WebServerSettings    `yaml:"webserver"`
	Logging    logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// LocationOf returns the configured coordinates of a node
func (s *Settings) LocationOf(nodeID string) (NodeLocation, bool) {
	for _, n := range s.Nodes {
		if n.ID == nodeID {
			return n, true
		}
	}
	return NodeLocation{}, false
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, binds environment variables and reads the config
// file. An explicit file set via viper key "config" takes precedence over the
// default search paths.
func initViper() error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		GetLogger().Warn("environment variable issues", logger.Error(err))
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil { //nolint:gosec // config is not secret by default
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded default config.yaml
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temporary file so a
// crash never leaves a half-written config behind. Comments are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GetLogger returns the conf module logger. It is fetched from the global
// logger on every call since the central logger is installed after Load.
func GetLogger() logger.Logger {
	return logger.Global().Module("conf")
}
