package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/mfcc-go/cmd/extract"
	"github.com/tphakala/mfcc-go/cmd/info"
	"github.com/tphakala/mfcc-go/cmd/serve"
	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "mfcc",
		Short:         "Windowed MFCC feature extraction for long recordings",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: search standard locations)")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		extract.Command(settings),
		info.Command(settings),
		serve.Command(settings, version),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, version)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(telemetryFlushTimeout)
		if err := logger.Global().Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to flush logs: %v\n", err)
		}
	}

	return rootCmd
}

// initialize sets up logging and telemetry once settings are known.
func initialize(settings *conf.Settings, version string) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(&settings.Telemetry, version); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return nil
}

// setupFlags defines the extraction and model flags shared by all subcommands.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")

	flags.Int("window", conf.DefaultWindowSize, "Samples per analysis window (n_fft)")
	flags.Int("hop", conf.DefaultHopSize, "Stride between analysis windows")
	flags.Int("macro", conf.DefaultMacroWindowSize, "Frames per macro-chunk before overlap")
	flags.Int("width", conf.DefaultFeatureWidth, "Values per feature row")
	flags.Int("channel", -1, "Channel to extract, -1 for all channels")
	flags.Int("queue-depth", 0, "Read-ahead in windows, 0 for unbounded")
	flags.Int("retries", 0, "Per-window retries for reads and inference")
	flags.Duration("infer-timeout", 0, "Per-window inference timeout, 0 for none")

	flags.String("model-type", conf.ModelTypeBuiltin, "Feature module: builtin or tflite")
	flags.String("model", "", "Path to .tflite model file")
	flags.Int("threads", 0, "Interpreter threads, 0 for auto")

	bindings := map[string]string{
		"debug":                      "debug",
		"extraction.windowsize":      "window",
		"extraction.hopsize":         "hop",
		"extraction.macrowindowsize": "macro",
		"extraction.featurewidth":    "width",
		"extraction.channel":         "channel",
		"extraction.queuedepth":      "queue-depth",
		"extraction.maxretries":      "retries",
		"extraction.infertimeout":    "infer-timeout",
		"model.type":                 "model-type",
		"model.path":                 "model",
		"model.threads":              "threads",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
