// config.go: settings struct for mfcc-go and functions to load it.
package conf

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/tphakala/mfcc-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is the prefix for environment variable overrides,
// e.g. MFCC_EXTRACTION_WINDOWSIZE.
const EnvPrefix = "MFCC"

// ExtractionSettings controls how a recording is split into windows and
// handed to the feature module.
type ExtractionSettings struct {
	WindowSize      int           // samples per analysis window, also n_fft
	HopSize         int           // stride between analysis windows
	MacroWindowSize int           // frames per macro-chunk before overlap is added
	FeatureWidth    int           // values per feature row (n_mfcc)
	Channel         int           // channel to extract, -1 for all channels
	QueueDepth      int           // producer read-ahead in windows, 0 = whole plan
	MaxRetries      int           // per-window retries for reads and inference
	InferTimeout    time.Duration // per-window inference timeout, 0 = none
}

// SelectedChannel returns the configured channel or nil when all channels
// are extracted.
func (e *ExtractionSettings) SelectedChannel() *int {
	if e.Channel < 0 {
		return nil
	}
	ch := e.Channel
	return &ch
}

// ModelSettings selects and configures the feature module.
type ModelSettings struct {
	Type     string  // builtin or tflite
	Path     string  // path to .tflite model, tflite only
	Threads  int     // interpreter threads, 0 = auto
	MelBands int     // mel filterbank size, builtin only
	TopDB    float64 // dynamic range clamp for log-mel power, builtin only
}

// OutputSettings controls where extracted feature rows are written.
type OutputSettings struct {
	Path   string // output file, empty for stdout
	Format string // csv, json or yaml
}

// ServerSettings configures the HTTP job API.
type ServerSettings struct {
	Listen  string        // listen address
	JobTTL  time.Duration // how long finished jobs are kept
	MaxJobs int           // concurrently running jobs
}

// MQTTSettings configures progress and result publishing.
type MQTTSettings struct {
	Enabled      bool    // true to publish progress and results
	Debug        bool    // true to log every publish
	Broker       string  // MQTT broker URL
	Topic        string  // topic prefix
	ClientID     string  // client ID, generated when empty
	Username     string  // MQTT username
	Password     string  // MQTT password
	Retain       bool    // retain result messages
	ProgressRate float64 // maximum progress messages per second
}

// TelemetrySettings configures Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool   // true to report errors to Sentry
	DSN         string // Sentry DSN
	Environment string // Sentry environment tag
}

// Settings contains all configuration options for mfcc-go.
type Settings struct {
	Debug bool // true to enable debug mode

	Logging    logger.LoggingConfig
	Extraction ExtractionSettings
	Model      ModelSettings
	Output     OutputSettings
	Server     ServerSettings
	MQTT       MQTTSettings
	Telemetry  TelemetrySettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// configFile overrides the default search paths when non-empty.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment overrides and reads the config file.
// Without a config file the embedded defaults are used.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err == nil {
		GetLogger().Debug("config file loaded", logger.String("path", viper.ConfigFileUsed()))
		return nil
	}

	var configFileNotFoundError viper.ConfigFileNotFoundError
	if !errors.As(err, &configFileNotFoundError) {
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	data, err := getDefaultConfig()
	if err != nil {
		return err
	}
	if err := viper.ReadConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error reading embedded default config: %w", err)
	}
	return nil
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config file: %w", err)
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
