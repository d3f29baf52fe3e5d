package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"feedtap/internal/batch"
	"feedtap/internal/metrics"
	"feedtap/internal/store"
)

var (
	batchFile        string
	batchWorkers     int
	batchInterval    time.Duration
	batchStorePath   string
	batchMetricsAddr string
	batchNoProgress  bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a JSON-lines file of engagement targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		targets, err := batch.ReadTargets(batchFile)
		if err != nil {
			return err
		}

		var collector *metrics.Collector
		metricsAddr := batchMetricsAddr
		if metricsAddr == "" {
			metricsAddr = cfg.Batch.MetricsAddr
		}
		if metricsAddr != "" {
			collector = metrics.NewCollector()
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			srv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics listener stopped", zap.Error(err))
				}
			}()
			defer srv.Shutdown(context.Background())
		}

		orch, cleanup, err := buildOrchestrator(cmd, collector)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := batch.Options{
			Runner:   orch,
			Workers:  batchWorkers,
			Interval: batchInterval,
			Progress: !batchNoProgress,
			Logger:   logger,
		}
		if batchWorkers == 0 {
			opts.Workers = cfg.Batch.Workers
		}
		if !cmd.Flags().Changed("interval") {
			opts.Interval = cfg.Batch.Interval
		}

		storePath := batchStorePath
		if storePath == "" {
			storePath = cfg.Batch.Store
		}
		if storePath != "" {
			s, err := store.Open(storePath, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			opts.Store = s
		}

		summary, err := batch.Run(cmd.Context(), targets, opts)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "JSON-lines target file")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "concurrent action workers (default from config)")
	batchCmd.Flags().DurationVar(&batchInterval, "interval", 0, "pacing between action starts (default from config)")
	batchCmd.Flags().StringVar(&batchStorePath, "store", "", "sqlite file recording every outcome")
	batchCmd.Flags().StringVar(&batchMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "suppress the progress bar")
	batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
