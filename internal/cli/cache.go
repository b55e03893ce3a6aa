package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqtrace/internal/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the model response cache",
	Long: `The model response cache lives under cache.dir (default .reqtrace-cache).
Entries are grouped by namespace: "generate" for text completions and "embed"
for embeddings.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entries and disk usage per namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := settings()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Cache directory: %s\n\n", cfg.Cache.Dir)
		return printCacheUsage(os.Stdout, cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL))
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired and unreadable entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := settings()
		if err != nil {
			return err
		}
		removed, err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Prune()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Printf("✓ Removed %d expired entries\n", removed)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := settings()
		if err != nil {
			return err
		}
		if err := cache.NewDiskCache(cfg.Cache.Dir, cfg.Cache.DiskTTL).Clear(); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Printf("✓ Cleared %s\n", cfg.Cache.Dir)
		return nil
	},
}

func printCacheUsage(w io.Writer, c *cache.DiskCache) error {
	usage, err := c.Usage()
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}
	if len(usage) == 0 {
		_, err := fmt.Fprintln(w, "Cache is empty")
		return err
	}

	var entries, expired int
	var size int64
	_, _ = fmt.Fprintf(w, "%-12s %8s %8s %12s\n", "NAMESPACE", "ENTRIES", "EXPIRED", "BYTES")
	for _, u := range usage {
		_, _ = fmt.Fprintf(w, "%-12s %8d %8d %12d\n", u.Namespace, u.Entries, u.Expired, u.Bytes)
		entries += u.Entries
		expired += u.Expired
		size += u.Bytes
	}
	_, err = fmt.Fprintf(w, "%-12s %8d %8d %12d\n", "total", entries, expired, size)
	return err
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
