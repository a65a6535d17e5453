// Package serve provides the serve command.
package serve

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/mfcc-go/internal/analysis"
	"github.com/tphakala/mfcc-go/internal/api"
	"github.com/tphakala/mfcc-go/internal/conf"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/mqtt"
	"github.com/tphakala/mfcc-go/internal/observability"
)

// Command creates a command that runs the HTTP job API.
func Command(settings *conf.Settings, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extraction job API",
		Long: `Run an HTTP server that accepts extraction jobs for files on the
local filesystem and reports their progress and results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.Global().Module("serve")

			m, err := observability.NewMetrics()
			if err != nil {
				return err
			}

			extractor, err := analysis.NewExtractor(settings, m.Pipeline)
			if err != nil {
				return err
			}
			defer func() {
				if err := extractor.Close(); err != nil {
					log.Warn("failed to release feature module", logger.Error(err))
				}
			}()

			publisher, client, err := mqtt.NewFromSettings(ctx, &settings.MQTT, m.MQTT)
			if err != nil {
				return fmt.Errorf("error connecting to MQTT broker: %w", err)
			}
			opts := []api.ServerOption{api.WithMetrics(m)}
			if client != nil {
				defer client.Disconnect()
				opts = append(opts, api.WithPublisher(publisher))
			}

			server, err := api.New(settings, extractor, opts...)
			if err != nil {
				return err
			}

			log.Info("mfcc-go job API starting",
				logger.String("version", version),
				logger.String("model_type", settings.Model.Type))
			return server.Run(ctx)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().Int("max-jobs", 2, "Maximum concurrently running jobs")
	cmd.Flags().Duration("job-ttl", time.Hour, "How long finished jobs are kept")

	bindings := map[string]string{
		"server.listen":  "listen",
		"server.maxjobs": "max-jobs",
		"server.jobttl":  "job-ttl",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
