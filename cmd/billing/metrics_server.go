package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// startOpsServer exposes metrics and probes on addr until ctx is done.
func startOpsServer(ctx context.Context, addr string, reg prometheus.Gatherer, checks map[string]httpserver.Check, log *slog.Logger) {
	srv := httpserver.New(httpserver.WithAddr(addr), httpserver.WithLogger(log))
	handler := httpserver.OpsHandler(reg, log, checks)

	go func() {
		if err := srv.Run(ctx, handler); err != nil {
			log.WarnContext(ctx, "ops server stopped unexpectedly", logger.Error(err))
		}
	}()
}
