package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluxion-dev/fluxion/pkg/devtools"
	"github.com/fluxion-dev/fluxion/pkg/fluxion"
	"github.com/fluxion-dev/fluxion/pkg/telemetry"
)

func serveCmd() *cobra.Command {
	var (
		addrFlag     string
		profileFlag  string
		intervalFlag time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a workload and serve the devtools inspector over it",
		Long: `serve builds the selected workload profile, drives it with periodic
write batches, and exposes the devtools inspector: /stats, /events,
/live (WebSocket), and /metrics (Prometheus).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(profileFlag, -1, -1, -1, -1, time.Hour, "-")
			if err != nil {
				return err
			}

			insp := devtools.New()
			rt := fluxion.New(
				fluxion.WithHook(insp),
				fluxion.WithHook(telemetry.Prometheus()),
			)

			w := buildWorkload(cfg, rt)
			go driveWrites(w, cfg.BatchSize, intervalFlag)

			fmt.Printf("fluxion-bench: serving inspector on http://%s (profile %s)\n", addrFlag, cfg.Profile)
			return http.ListenAndServe(addrFlag, insp.Handler())
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "127.0.0.1:6900", "listen address")
	cmd.Flags().StringVar(&profileFlag, "profile", "fast", "workload profile: fast|standard|stress")
	cmd.Flags().DurationVar(&intervalFlag, "interval", 250*time.Millisecond, "delay between write batches")

	return cmd
}

// driveWrites bumps a rotating window of sources forever.
func driveWrites(w *workload, batchSize int, interval time.Duration) {
	offset := 0
	for {
		w.writeBatch(offset, batchSize)
		offset += batchSize
		time.Sleep(interval)
	}
}
