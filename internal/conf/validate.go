// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
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

	if err := ValidateExtractionSettings(&settings.Extraction); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateModelSettings(&settings.Model); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateServerSettings(&settings.Server); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTelemetrySettings(&settings.Telemetry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// ValidateExtractionSettings checks window geometry and pipeline limits.
// The pipeline repeats the geometry checks for callers that bypass conf.
func ValidateExtractionSettings(settings *ExtractionSettings) error {
	var errs []string

	if settings.WindowSize <= 0 {
		errs = append(errs, fmt.Sprintf("window size must be positive, got %d", settings.WindowSize))
	}
	if settings.HopSize <= 0 || settings.HopSize >= settings.WindowSize {
		errs = append(errs, fmt.Sprintf("hop size must be in (0, %d), got %d", settings.WindowSize, settings.HopSize))
	}
	if settings.MacroWindowSize < settings.WindowSize {
		errs = append(errs, fmt.Sprintf("macro window size %d must not be smaller than window size %d",
			settings.MacroWindowSize, settings.WindowSize))
	}
	if settings.HopSize > 0 && settings.MacroWindowSize%settings.HopSize != 0 {
		errs = append(errs, fmt.Sprintf("macro window size %d must be a multiple of hop size %d",
			settings.MacroWindowSize, settings.HopSize))
	}
	if settings.FeatureWidth <= 0 {
		errs = append(errs, fmt.Sprintf("feature width must be positive, got %d", settings.FeatureWidth))
	}
	if settings.Channel < -1 {
		errs = append(errs, fmt.Sprintf("channel must be -1 (all) or a channel index, got %d", settings.Channel))
	}
	if settings.QueueDepth < 0 {
		errs = append(errs, "queue depth must not be negative")
	}
	if settings.MaxRetries < 0 {
		errs = append(errs, "max retries must not be negative")
	}
	if settings.InferTimeout < 0 {
		errs = append(errs, "infer timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("extraction settings errors: %v", errs)
	}
	return nil
}

func validateModelSettings(settings *ModelSettings) error {
	var errs []string

	switch settings.Type {
	case ModelTypeBuiltin:
		if settings.MelBands <= 0 {
			errs = append(errs, "mel bands must be positive")
		}
		if settings.TopDB < 0 {
			errs = append(errs, "top dB must not be negative")
		}
	case ModelTypeTFLite:
		if settings.Path == "" {
			errs = append(errs, "model path is required for tflite models")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown model type %q, must be %s or %s",
			settings.Type, ModelTypeBuiltin, ModelTypeTFLite))
	}
	if settings.Threads < 0 {
		errs = append(errs, "threads must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("model settings errors: %v", errs)
	}
	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	format := strings.ToLower(settings.Format)
	if !slices.Contains([]string{OutputFormatCSV, OutputFormatJSON, OutputFormatYAML}, format) {
		return fmt.Errorf("output format %q is not supported", settings.Format)
	}
	settings.Format = format
	return nil
}

func validateServerSettings(settings *ServerSettings) error {
	var errs []string

	if settings.Listen == "" {
		errs = append(errs, "listen address is required")
	}
	if settings.JobTTL <= 0 {
		errs = append(errs, "job TTL must be positive")
	}
	if settings.MaxJobs <= 0 {
		errs = append(errs, "max jobs must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("server settings errors: %v", errs)
	}
	return nil
}

func validateMQTTSettings(settings *MQTTSettings) error {
	if !settings.Enabled {
		return nil
	}

	var errs []string

	if settings.Broker == "" {
		errs = append(errs, "MQTT broker URL is required when MQTT is enabled")
	} else if _, err := url.Parse(settings.Broker); err != nil {
		errs = append(errs, fmt.Sprintf("invalid MQTT broker URL: %v", err))
	}
	if settings.Topic == "" {
		errs = append(errs, "MQTT topic is required when MQTT is enabled")
	}
	if settings.ProgressRate <= 0 {
		errs = append(errs, "MQTT progress rate must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("MQTT settings errors: %v", errs)
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Enabled && settings.DSN == "" {
		return fmt.Errorf("telemetry DSN is required when telemetry is enabled")
	}
	return nil
}
