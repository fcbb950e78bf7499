package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadFromFile resets viper and loads settings from the given YAML content
func loadFromFile(t *testing.T, content string) (*Settings, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	viper.Set("config", path)
	return Load()
}

//nolint:paralleltest // uses global viper
func TestLoadEmbeddedDefaults(t *testing.T) {
	data, err := getDefaultConfig()
	require.NoError(t, err)

	settings, err := loadFromFile(t, string(data))
	require.NoError(t, err)

	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, "flowers.db", settings.Database.SQLite.Path)
	assert.Equal(t, 5*time.Second, settings.Database.SQLite.BusyTimeout)
	assert.Equal(t, 1000, settings.Database.BatchSize)
	assert.Equal(t, DefaultStartHour, settings.Selection.StartHour)
	assert.Equal(t, DefaultEndHour, settings.Selection.EndHour)
	assert.Equal(t, 5, settings.Flowering.Window)
	assert.Equal(t, EdgePolicyHold, settings.Flowering.EdgePolicy)
	assert.Equal(t, 1280, settings.Annotation.ExportResolution)
	require.Len(t, settings.Annotation.Classes, 3)
	assert.Equal(t, ClassSetting{Type: 3, Class: 1, Name: "wildcarrot"}, settings.Annotation.Classes[1])
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	assert.Same(t, settings, GetSettings())
}

//nolint:paralleltest // uses global viper
func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	settings, err := loadFromFile(t, "main:\n  basepath: /data/images\nnodes:\n  - id: n1\n    latitude: 47.1\n    longitude: 8.2\n")
	require.NoError(t, err)

	assert.Equal(t, "/data/images", settings.Main.BasePath)
	assert.Equal(t, []string{".jpg"}, settings.Main.Extensions)
	assert.Equal(t, 4, settings.Annotation.Workers)

	loc, ok := settings.LocationOf("n1")
	require.True(t, ok)
	assert.InDelta(t, 47.1, loc.Latitude, 1e-9)
	_, ok = settings.LocationOf("n2")
	assert.False(t, ok)
}

//nolint:paralleltest // uses global viper and environment
func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("P8_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("P8_FLOWERING_EDGEPOLICY", "absent")

	settings, err := loadFromFile(t, "debug: false\n")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", settings.Database.SQLite.Path)
	assert.Equal(t, EdgePolicyAbsent, settings.Flowering.EdgePolicy)
}

//nolint:paralleltest // uses global viper
func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := loadFromFile(t, "flowering:\n  window: 4\n")
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 1)
}

//nolint:paralleltest // uses global viper
func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	data, err := getDefaultConfig()
	require.NoError(t, err)
	settings, err := loadFromFile(t, string(data))
	require.NoError(t, err)

	settings.Flowering.EdgePolicy = EdgePolicyAbsent
	settings.Nodes = []NodeLocation{{ID: "n7", Latitude: 46.9, Longitude: 7.4}}

	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(out, settings))

	saved, err := os.ReadFile(out)
	require.NoError(t, err)

	reloaded, err := loadFromFile(t, string(saved))
	require.NoError(t, err)
	assert.Equal(t, EdgePolicyAbsent, reloaded.Flowering.EdgePolicy)
	assert.Equal(t, settings.Nodes, reloaded.Nodes)
	assert.Equal(t, settings.Database.SlowThreshold, reloaded.Database.SlowThreshold)
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	valid := func() *Settings {
		return &Settings{
			Main:      MainSettings{BasePath: "images", Extensions: []string{"jpg"}},
			Database:  DatabaseSettings{Type: DatabaseSQLite, SQLite: SQLiteSettings{Path: "x.db"}, BatchSize: 1000},
			Selection: SelectionSettings{StartHour: 8, EndHour: 18},
			Flowering: FloweringSettings{Window: 5, EdgePolicy: EdgePolicyHold},
			Annotation: AnnotationSettings{
				Classes:          []ClassSetting{{Type: 2, Class: 0}, {Type: 3, Class: 1}},
				LabelDir:         "labels",
				ExportResolution: 1280,
				Workers:          1,
				MinFreeSpace:     "1GB",
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"unknown database", func(s *Settings) { s.Database.Type = "postgres" }, true},
		{"zero batch", func(s *Settings) { s.Database.BatchSize = 0 }, true},
		{"inverted hours", func(s *Settings) { s.Selection.StartHour = 18; s.Selection.EndHour = 8 }, true},
		{"even window", func(s *Settings) { s.Flowering.Window = 6 }, true},
		{"unknown edge policy", func(s *Settings) { s.Flowering.EdgePolicy = "drop" }, true},
		{"class map not injective", func(s *Settings) { s.Annotation.Classes[1].Class = 0 }, true},
		{"type mapped twice", func(s *Settings) { s.Annotation.Classes[1].Type = 2 }, true},
		{"copy without image dir", func(s *Settings) { s.Annotation.CopyImages = true }, true},
		{"bad free space", func(s *Settings) { s.Annotation.MinFreeSpace = "lots" }, true},
		{"bad latitude", func(s *Settings) { s.Nodes = []NodeLocation{{ID: "n1", Latitude: 91}} }, true},
		{"duplicate node", func(s *Settings) { s.Nodes = []NodeLocation{{ID: "n1"}, {ID: "n1"}} }, true},
		{"webserver without listen", func(s *Settings) { s.WebServer.Enabled = true }, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, []string{".jpg"}, s.Main.Extensions, "extensions gain a leading dot")
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"500MB", 500 << 20, false},
		{"2gb", 2 << 30, false},
		{"1.5 KB", 1536, false},
		{"42", 42, false},
		{"", 0, true},
		{"-1MB", 0, true},
		{"many", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvBool("true"))
	assert.Error(t, validateEnvBool("yes please"))
	assert.NoError(t, validateEnvPort("3306"))
	assert.Error(t, validateEnvPort("70000"))
	assert.NoError(t, validateEnvWindow("7"))
	assert.Error(t, validateEnvWindow("8"))
	assert.NoError(t, validateEnvDatabaseType("mysql"))
	assert.Error(t, validateEnvLogLevel("verbose"))
	assert.Error(t, validateEnvPath("  "))
}
