package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/williamzujkowski/dependency-risk-profiler/api/schemas"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/aggregator"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/enrich"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/history"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/manifest"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/observability"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/profile"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/reporting"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/scoring"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/vulncache"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/vulnsource"
)

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd() *cobra.Command {
	var (
		format    string
		output    string
		noHistory bool
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze <manifest>",
		Short: "Analyzes a project manifest and reports a dependency risk profile",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			for key, flag := range map[string]string{
				"cache.no_cache":            "no-cache",
				"cache.clear_cache":         "clear-cache",
				"cache.dir":                 "cache-dir",
				"cache.ttl":                 "cache-ttl",
				"aggregator.concurrency":    "concurrency",
				"aggregator.global_timeout": "timeout",
				"sources.enabled":           "sources",
			} {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}
			if noHistory {
				cfg.History.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			manifestPath := args[0]
			eco, deps, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			logger.Info("Parsed manifest",
				zap.String("manifest", manifestPath),
				zap.String("ecosystem", string(eco)),
				zap.Int("dependencies", len(deps)),
			)

			cache := vulncache.New(cfg.Cache.Dir, cfg.Cache.TTL, logger)
			if cfg.Cache.ClearCache {
				if err := cache.Clear(); err != nil {
					return err
				}
				logger.Info("Cleared vulnerability cache", zap.String("dir", cfg.Cache.Dir))
			}

			client := vulnsource.NewHTTPClient(cfg.Sources.RequestTimeout)
			sources := vulnsource.Build(cfg.Sources, client, logger)

			if cfg.Enrich.Enabled {
				enrich.New(&cfg, client, logger).Run(ctx, deps)
			}
			aggregator.New(&cfg, sources, cache, logger).Run(ctx, deps)

			scorer := scoring.New(&cfg)
			scored := make([]schemas.ScoredDependency, len(deps))
			for i, dep := range deps {
				scored[i] = schemas.ScoredDependency{
					Dependency: dep,
					Score:      scorer.Score(dep),
				}
			}

			prof := profile.New().Build(manifestPath, eco, scored)
			if prof.UnavailableCount > 0 {
				logger.Warn("Some dependencies had incomplete vulnerability data",
					zap.Int("count", prof.UnavailableCount))
			}

			if cfg.History.Enabled {
				recordHistory(&cfg, prof, logger)
			}

			formatter, err := reporting.New(format)
			if err != nil {
				return err
			}
			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return formatter.Format(out, prof)
		},
	}

	analyzeCmd.Flags().StringVarP(&format, "format", "f", "terminal", "output format (terminal, json)")
	analyzeCmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().Bool("no-cache", false, "skip cache reads (still writes fresh results through)")
	analyzeCmd.Flags().Bool("clear-cache", false, "delete the cache directory before the run")
	analyzeCmd.Flags().String("cache-dir", "", "override the cache directory")
	analyzeCmd.Flags().Duration("cache-ttl", 24*time.Hour, "cache entry time-to-live")
	analyzeCmd.Flags().Int("concurrency", 16, "maximum concurrent source requests")
	analyzeCmd.Flags().Duration("timeout", 120*time.Second, "global aggregation timeout")
	analyzeCmd.Flags().StringSlice("sources", nil, "vulnerability sources to query (osv, nvd, github)")
	analyzeCmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this run in the trend database")

	return analyzeCmd
}

// recordHistory appends the run summary to the trend store. History is an
// accessory concern; failures are logged, never fatal.
func recordHistory(cfg *config.Config, prof schemas.ProjectProfile, logger *zap.Logger) {
	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Warn("Could not open history database", zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.Record(prof); err != nil {
		logger.Warn("Could not record profile history", zap.Error(err))
	}
}
