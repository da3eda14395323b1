package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

func newRunCmd() *cobra.Command {
	var nowFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every subscription once",
		Long: `run performs a single lifecycle pass: reminders, trial conversions, renewals,
payment retries and grace period cancellations. Pass --now to evaluate the
pass at a fixed instant instead of the current time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseNow(nowFlag)
			if err != nil {
				return err
			}
			if err := loadEnvFiles(cmd); err != nil {
				return err
			}
			cfg, err := loadAppConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			e, err := buildEngine(ctx, cfg, reg, log)
			if err != nil {
				log.ErrorContext(ctx, "failed to start lifecycle engine", logger.Error(err))
				return err
			}
			defer e.Close()

			if cfg.MetricsAddr != "" {
				startOpsServer(ctx, cfg.MetricsAddr, reg, e.checks, log)
			}

			events, err := e.driver.Run(ctx, now)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lifecycle pass at %s emitted %d events\n", now.Format(time.RFC3339), len(events))
			return nil
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "evaluate the pass at this RFC3339 instant instead of the current time")
	return cmd
}

// parseNow returns the current UTC time for an empty value.
func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	now, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now value %q: %w", value, err)
	}
	return now.UTC(), nil
}

