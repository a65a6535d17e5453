// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default extraction geometry.
const (
	DefaultWindowSize      = 1 << 16
	DefaultHopSize         = DefaultWindowSize / 4
	DefaultMacroWindowSize = 1 << 22
	DefaultFeatureWidth    = 2
	DefaultMelBands        = 23
	DefaultTopDB           = 80.0
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/mfcc.log")
	viper.SetDefault("logging.file_output.level", "debug")

	viper.SetDefault("extraction.windowsize", DefaultWindowSize)
	viper.SetDefault("extraction.hopsize", DefaultHopSize)
	viper.SetDefault("extraction.macrowindowsize", DefaultMacroWindowSize)
	viper.SetDefault("extraction.featurewidth", DefaultFeatureWidth)
	viper.SetDefault("extraction.channel", -1)
	viper.SetDefault("extraction.queuedepth", 0)
	viper.SetDefault("extraction.maxretries", 0)
	viper.SetDefault("extraction.infertimeout", time.Duration(0))

	viper.SetDefault("model.type", ModelTypeBuiltin)
	viper.SetDefault("model.path", "")
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.melbands", DefaultMelBands)
	viper.SetDefault("model.topdb", DefaultTopDB)

	viper.SetDefault("output.path", "")
	viper.SetDefault("output.format", OutputFormatCSV)

	viper.SetDefault("server.listen", "127.0.0.1:8080")
	viper.SetDefault("server.jobttl", time.Hour)
	viper.SetDefault("server.maxjobs", 2)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.debug", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "mfcc")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.retain", false)
	viper.SetDefault("mqtt.progressrate", 2.0)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")
	viper.SetDefault("telemetry.environment", "production")
}
