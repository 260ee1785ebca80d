package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/history"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/observability"
)

// newTrendCmd creates the `trend` command, which prints the recent run
// history for a manifest together with the score change between runs.
func newTrendCmd() *cobra.Command {
	var limit int

	trendCmd := &cobra.Command{
		Use:   "trend <manifest>",
		Short: "Shows how a manifest's risk profile changed across recent runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			store, err := history.Open(cfg.History.Path, observability.GetLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(args[0], limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No recorded runs for %s.\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GENERATED\tSCORE\tCHANGE\tCRITICAL\tHIGH\tMEDIUM\tLOW\tUNAVAILABLE")
			for i, run := range runs {
				// Runs come back newest first, so the previous run is the
				// next element.
				change := "-"
				if i+1 < len(runs) {
					change = fmt.Sprintf("%+.2f", run.OverallScore-runs[i+1].OverallScore)
				}
				fmt.Fprintf(w, "%s\t%.2f\t%s\t%d\t%d\t%d\t%d\t%d\n",
					run.GeneratedAt.Format("2006-01-02 15:04:05"),
					run.OverallScore,
					change,
					run.CriticalCount,
					run.HighCount,
					run.MediumCount,
					run.LowCount,
					run.UnavailableCount,
				)
			}
			return w.Flush()
		},
	}

	trendCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show")
	return trendCmd
}
