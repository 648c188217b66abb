package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/gmailconn/internal/database"
	"github.com/vijay-prabhu/gmailconn/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the local message cache",
	Long: `The cache stores messages fetched by get, list and batch so repeated
reads skip the API. Enable it with:

  [cache]
  enabled = true`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached messages, newest first",
	RunE:  runCacheList,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete messages cached longer than --older-than",
	Long: `Delete cached messages fetched before the given age.

Examples:
  gmailconn cache prune --older-than=30d
  gmailconn cache prune --older-than=0d   # Empty the cache`,
	RunE: runCachePrune,
}

var (
	cacheListLimit int
	cacheOlderThan string
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)

	cacheListCmd.Flags().IntVar(&cacheListLimit, "limit", 50, "Maximum number of messages (0 for all)")
	cachePruneCmd.Flags().StringVar(&cacheOlderThan, "older-than", "30d", "Age threshold (e.g., 12h, 7d, 2w)")
}

// openCache opens the cache database without touching Gmail
func openCache() (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return nil, fmt.Errorf("cache is disabled (set cache.enabled = true in %s)", configPath)
	}
	db, err := database.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return db, nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	db, err := openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	msgs, err := db.ListMessages(cmd.Context(), cacheListLimit)
	if err != nil {
		return fmt.Errorf("failed to list cached messages: %w", err)
	}
	if msgs == nil {
		msgs = []database.CachedMessage{}
	}

	return output.OutputTo(cmd.OutOrStdout(), outputFmt, msgs)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	db, err := openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	return output.OutputTo(cmd.OutOrStdout(), outputFmt, stats)
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	age, err := parseDuration(cacheOlderThan)
	if err != nil {
		return fmt.Errorf("invalid --older-than: %w", err)
	}

	db, err := openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := db.PruneBefore(cmd.Context(), time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached messages\n", removed)
	return nil
}
