// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default hour range of the image browser
const (
	DefaultStartHour = 8
	DefaultEndHour   = 18
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "p8tools")
	viper.SetDefault("main.basepath", "images")
	viper.SetDefault("main.extensions", []string{".jpg"})

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.sqlite.path", "flowers.db")
	viper.SetDefault("database.sqlite.busytimeout", 5*time.Second)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "p8tools")
	viper.SetDefault("database.batchsize", 1000)
	viper.SetDefault("database.slowthreshold", 200*time.Millisecond)

	viper.SetDefault("selection.starthour", DefaultStartHour)
	viper.SetDefault("selection.endhour", DefaultEndHour)

	viper.SetDefault("flowering.window", 5)
	viper.SetDefault("flowering.edgepolicy", "hold")

	viper.SetDefault("annotation.classes", []map[string]any{
		{"type": 2, "class": 0, "name": "daisy"},
		{"type": 3, "class": 1, "name": "wildcarrot"},
		{"type": 4, "class": 2, "name": "cornflower"},
	})
	viper.SetDefault("annotation.labeldir", "export/labels")
	viper.SetDefault("annotation.imagedir", "export/images")
	viper.SetDefault("annotation.copyimages", true)
	viper.SetDefault("annotation.exportresolution", 1280)
	viper.SetDefault("annotation.workers", 4)
	viper.SetDefault("annotation.minfreespace", "500MB")

	viper.SetDefault("webserver.enabled", false)
	viper.SetDefault("webserver.listen", "127.0.0.1:8080")
	viper.SetDefault("webserver.cachettl", 30*time.Second)
	viper.SetDefault("webserver.metrics", true)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/p8tools.log")
	viper.SetDefault("logging.file_output.level", "debug")
}
