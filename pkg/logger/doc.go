// Package logger builds the service's slog.Logger and provides attribute
// helpers so every package logs the same keys.
//
// New returns a *slog.Logger configured by Option functions. WithEnvironment
// picks the per-environment defaults (text and debug level in development,
// JSON and info level in staging and production) and tags records with the
// service name. WithLevel overrides the level, usually from LOG_LEVEL via
// ParseLevel.
//
// ContextExtractor callbacks registered with WithContextExtractors run on every
// record and add attributes pulled from the logging context. The lifecycle
// engine registers subscription.RunIDExtractor so records logged during a run
// carry its run_id.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "billing"),
//		logger.WithContextExtractors(subscription.RunIDExtractor),
//	)
//
//	log.WarnContext(ctx, "subscription record is invalid, skipping",
//		logger.SubscriptionID(sub.ID),
//		logger.Error(err),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
