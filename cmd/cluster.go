package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/export"
	"github.com/yuletide/openskidata-processor/internal/geocode"
	"github.com/yuletide/openskidata-processor/internal/pipeline"
	"github.com/yuletide/openskidata-processor/internal/resilience"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/stats"
)

var (
	clusterDryRun bool
	clusterOutput string
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run the full ski-area clustering pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if clusterDryRun {
			zap.L().Info("cluster: dry run, forcing sqlite store for local inspection",
				zap.String("configured_driver", cfg.Store.Driver))
			cfg.Store.Driver = "sqlite"
			cfg.Store.DatabaseURL = "skicluster-dryrun.db"
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var geocoder geocode.Geocoder = geocode.NoopGeocoder{}
		if cfg.Geocoder.Enabled {
			geocoder = geocode.NewHTTPGeocoder(cfg.Geocoder.BaseURL,
				geocode.WithAPIKey(cfg.Geocoder.APIKey),
				geocode.WithRateLimit(cfg.Geocoder.RateLimitRPS),
				geocode.WithRetryConfig(resilience.FromRetryConfig(
					cfg.Geocoder.RetryMaxAttempts,
					cfg.Geocoder.RetryInitialBackoffMs,
					cfg.Geocoder.RetryMaxBackoffMs,
					cfg.Geocoder.RetryMultiplier,
					cfg.Geocoder.RetryJitterFraction,
				)),
				geocode.WithCircuitConfig(resilience.FromCircuitConfig(
					cfg.Geocoder.CircuitFailureThreshold,
					cfg.Geocoder.CircuitResetTimeoutSecs,
				)),
			)
		}

		p := pipeline.New(cfg, st, stats.NoopSummarizer{}, geocoder)
		result, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "cluster: pipeline run")
		}

		zap.L().Info("cluster: run complete",
			zap.Int("examined", result.Totals.Examined),
			zap.Int("removed", result.Totals.Removed),
			zap.Int("assigned", result.Totals.Assigned),
			zap.Int("merged", result.Totals.Merged),
			zap.Int("synthesized", result.Totals.Synthesized),
		)

		return writeSkiAreas(ctx, st)
	},
}

func init() {
	clusterCmd.Flags().BoolVar(&clusterDryRun, "dry-run", false, "run against a local sqlite store instead of the configured driver, for local inspection")
	clusterCmd.Flags().StringVar(&clusterOutput, "output", "", "write finished ski areas as JSON to this file (default: stdout)")
	rootCmd.AddCommand(clusterCmd)
}

func writeSkiAreas(ctx context.Context, st skistore.Store) error {
	cursor, err := st.SkiAreas(ctx, skistore.SkiAreaFilter{})
	if err != nil {
		return eris.Wrap(err, "cluster: list ski areas for export")
	}
	skiAreas, err := skistore.Collect(ctx, cursor)
	if err != nil {
		return eris.Wrap(err, "cluster: collect ski areas for export")
	}

	out := os.Stdout
	if clusterOutput != "" {
		f, err := os.Create(clusterOutput)
		if err != nil {
			return eris.Wrap(err, "cluster: create output file")
		}
		defer f.Close()
		out = f
	}

	return export.NewJSONWriter(out).Write(ctx, skiAreas)
}
