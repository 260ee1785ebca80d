package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/williamzujkowski/dependency-risk-profiler/internal/config"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/observability"
	"github.com/williamzujkowski/dependency-risk-profiler/internal/vulncache"
)

// newCacheCmd creates the `cache` command group for inspecting and clearing
// the on-disk vulnerability cache.
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manages the on-disk vulnerability cache",
	}
	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints entry counts and sizes for the cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			stats, err := cache.Stat()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Directory: %s\n", stats.Dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Entries:   %d\n", stats.EntryCount)
			fmt.Fprintf(cmd.OutOrStdout(), "Size:      %d bytes\n", stats.TotalBytes)
			if stats.EntryCount > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Oldest:    %s\n", stats.Oldest.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(cmd.OutOrStdout(), "Newest:    %s\n", stats.Newest.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Deletes every cached source response",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		},
	}
}

func openCache() (*vulncache.Disk, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return vulncache.New(cfg.Cache.Dir, cfg.Cache.TTL, observability.GetLogger()), nil
}
