package main

import (
	"fmt"

	"github.com/localcore/client/pkg/httpcache"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the HTTP response cache",
}

func init() {
	cacheCmd.PersistentFlags().Int64("max-bytes", 50*1024*1024, "Maximum cache size in bytes")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheCleanupCmd)
}

func openCache(cmd *cobra.Command) (*httpcache.Cache, error) {
	maxBytes, _ := cmd.Flags().GetInt64("max-bytes")
	dbPath := fmt.Sprintf("%s/%s.cache.db", dataDir(cmd), appID(cmd))
	return httpcache.New(httpcache.Config{DBPath: dbPath, MaxSizeBytes: maxBytes})
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := c.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("entries:   %d\n", stats.TotalEntries)
		fmt.Printf("bytes:     %d\n", stats.TotalSizeBytes)
		fmt.Printf("hits:      %d\n", stats.HitCount)
		fmt.Printf("misses:    %d\n", stats.MissCount)
		fmt.Printf("hit rate:  %.2f%%\n", stats.HitRate*100)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ cache cleared")
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		removed, err := c.CleanupExpired()
		if err != nil {
			return err
		}
		fmt.Printf("✓ removed %d expired entries\n", removed)
		return nil
	},
}
