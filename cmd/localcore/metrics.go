package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/localcore/client/pkg/httpcache"
	"github.com/localcore/client/pkg/metrics"
	"github.com/localcore/client/pkg/netqueue"
	"github.com/localcore/client/pkg/vault"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Serve Prometheus metrics and run periodic maintenance sweeps",
}

func init() {
	metricsServeCmd.Flags().String("addr", "127.0.0.1:9090", "Address to serve /metrics on")
	metricsServeCmd.Flags().String("master-key", "", "Master key for the vault's expiry-cleanup sweep (required)")
	metricsServeCmd.Flags().Duration("sweep-interval", 5*time.Minute, "Interval between cleanup sweeps")
	_ = metricsServeCmd.MarkFlagRequired("master-key")

	metricsCmd.AddCommand(metricsServeCmd)
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /metrics and periodically clean up expired vault entries, stale cache entries, and aged queue requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		masterKey, _ := cmd.Flags().GetString("master-key")
		interval, _ := cmd.Flags().GetDuration("sweep-interval")

		v, err := vault.New(vault.Config{
			AppID:     appID(cmd),
			DBPath:    fmt.Sprintf("%s/%s.vault.db", dataDir(cmd), appID(cmd)),
			MasterKey: masterKey,
		})
		if err != nil {
			return fmt.Errorf("failed to open vault: %w", err)
		}
		defer v.Close()

		c, err := httpcache.New(httpcache.Config{
			DBPath:       fmt.Sprintf("%s/%s.cache.db", dataDir(cmd), appID(cmd)),
			MaxSizeBytes: 50 * 1024 * 1024,
		})
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer c.Close()

		q, err := netqueue.New(netqueue.Config{
			DBPath: fmt.Sprintf("%s/%s.queue.db", dataDir(cmd), appID(cmd)),
		})
		if err != nil {
			return fmt.Errorf("failed to open queue: %w", err)
		}
		defer q.Close()

		collector := metrics.NewCollector(interval,
			metrics.Sweep{Name: "vault-expiry", Run: func() error {
				_, err := v.CleanupExpired()
				return err
			}},
			metrics.Sweep{Name: "cache-expiry", Run: func() error {
				_, err := c.CleanupExpired()
				return err
			}},
			metrics.Sweep{Name: "queue-stale", Run: func() error {
				_, err := q.CleanupOld(24 * time.Hour)
				return err
			}},
		)
		collector.Start()
		defer collector.Stop()

		http.Handle("/metrics", metrics.Handler())
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", addr)
		return http.ListenAndServe(addr, nil)
	},
}
