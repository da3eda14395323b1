// Package httpserver runs the operational HTTP endpoint of the billing
// worker: Prometheus metrics plus liveness and readiness probes.
//
//	srv := httpserver.New(httpserver.WithAddr(":9090"), httpserver.WithLogger(log))
//	handler := httpserver.OpsHandler(registry, log, map[string]httpserver.Check{
//		"postgres": pg.Healthcheck(pool),
//	})
//	go func() { _ = srv.Run(ctx, handler) }()
//
// Run blocks until its context is canceled and then shuts down within the
// configured timeout. Listen errors wrap ErrStart, a second Run on the same
// server returns ErrAlreadyRunning and shutdown errors wrap ErrShutdown.
package httpserver
