// Package extract provides the extract command.
package extract

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/mfcc-go/internal/analysis"
	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/mqtt"
	"github.com/tphakala/mfcc-go/internal/observability"
)

// Command creates a command that extracts features from a file or every
// supported file in a directory.
func Command(settings *conf.Settings) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "extract <file|directory>",
		Short: "Extract MFCC feature rows from audio files",
		Long: `Extract MFCC feature rows from a WAV or FLAC file, or from every
supported file found under a directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, err := observability.NewMetrics()
			if err != nil {
				return err
			}

			publisher, client, err := mqtt.NewFromSettings(ctx, &settings.MQTT, m.MQTT)
			if err != nil {
				return fmt.Errorf("error connecting to MQTT broker: %w", err)
			}
			if client != nil {
				defer client.Disconnect()
			}

			var progress io.Writer = cmd.ErrOrStderr()
			if quiet {
				progress = nil
			}
			opts := analysis.Options{
				Metrics:   m.Pipeline,
				Publisher: publisher,
				Progress:  progress,
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("error accessing %s: %w", args[0], err)
			}
			if info.IsDir() {
				return analysis.DirectoryAnalysis(ctx, settings, args[0], opts)
			}
			return analysis.FileAnalysis(ctx, settings, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the progress line")
	if err := setupFlags(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().StringP("output", "o", "", "Output file or directory, stdout when empty")
	cmd.Flags().StringP("format", "f", conf.OutputFormatCSV, "Output format: csv, json or yaml")

	if err := viper.BindPFlag("output.path", cmd.Flags().Lookup("output")); err != nil {
		return fmt.Errorf("error binding output flag: %w", err)
	}
	if err := viper.BindPFlag("output.format", cmd.Flags().Lookup("format")); err != nil {
		return fmt.Errorf("error binding format flag: %w", err)
	}
	return nil
}
