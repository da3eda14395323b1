package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/email"
	"github.com/dmitrymomot/billingkit/pkg/httpserver"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/redis"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
	"github.com/dmitrymomot/billingkit/pkg/subscription/pgstore"
	"github.com/dmitrymomot/billingkit/pkg/webhook"
)

// engine is a fully wired driver plus the resources it owns.
type engine struct {
	driver  *subscription.Driver
	checks  map[string]httpserver.Check
	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildEngine connects every adapter selected by cfg. On error, resources
// opened so far are released.
func buildEngine(ctx context.Context, cfg appConfig, reg prometheus.Registerer, log *slog.Logger) (_ *engine, err error) {
	e := &engine{checks: map[string]httpserver.Check{}}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	lifecycle, err := loadLifecycleConfig()
	if err != nil {
		return nil, err
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, pool.Close)
	e.checks["postgres"] = pg.Healthcheck(pool)
	store := pgstore.New(pool, pgstore.WithLogger(log))

	var stripeCfg subscription.StripeConfig
	if err := config.Load(&stripeCfg); err != nil {
		return nil, fmt.Errorf("stripe config: %w", err)
	}
	gateway, err := subscription.NewStripeGateway(stripeCfg)
	if err != nil {
		return nil, err
	}

	catalog, err := newCatalog(cfg, store)
	if err != nil {
		return nil, err
	}

	orchestrator := subscription.NewPaymentOrchestrator(catalog, gateway, store,
		subscription.WithPaymentLogger(log),
		subscription.WithPaymentMethodLookup(gateway),
	)
	machine, err := subscription.NewMachine(lifecycle, orchestrator, subscription.WithMachineLogger(log))
	if err != nil {
		return nil, err
	}

	sink, err := e.newSink(ctx, cfg, gateway, log)
	if err != nil {
		return nil, err
	}

	opts := []subscription.DriverOption{
		subscription.WithEventSink(sink),
		subscription.WithMetrics(subscription.NewMetrics(reg)),
		subscription.WithDriverLogger(log),
	}
	if cfg.RedisLock {
		locker, err := e.newLocker(ctx, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, subscription.WithLocker(locker, cfg.LockKey, cfg.LockTTL))
	}

	e.driver = subscription.NewDriver(store, machine, opts...)
	return e, nil
}

func newCatalog(cfg appConfig, store *pgstore.Store) (subscription.PriceCatalog, error) {
	switch cfg.PriceCatalog {
	case catalogPaddle:
		var paddleCfg subscription.PaddleConfig
		if err := config.Load(&paddleCfg); err != nil {
			return nil, fmt.Errorf("paddle config: %w", err)
		}
		return subscription.NewPaddleCatalog(paddleCfg)
	case catalogPostgres, "":
		return store, nil
	default:
		return nil, fmt.Errorf("unknown price catalog %q", cfg.PriceCatalog)
	}
}

// newSink always logs events and fans out to whichever brokers and
// notification channels are configured.
func (e *engine) newSink(ctx context.Context, cfg appConfig, recipients email.RecipientResolver, log *slog.Logger) (subscription.EventSink, error) {
	sinks := []subscription.EventSink{subscription.NewLogSink(log, slog.LevelInfo)}

	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		e.closers = append(e.closers, func() {
			if err := conn.Drain(); err != nil {
				log.WarnContext(ctx, "failed to drain nats connection", logger.Error(err))
			}
		})
		sinks = append(sinks, subscription.NewNATSSink(conn, cfg.NATSSubjectPrefix))
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := subscription.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() {
			if err := producer.Close(); err != nil {
				log.WarnContext(ctx, "failed to close kafka producer", logger.Error(err))
			}
		})
		sinks = append(sinks, subscription.NewKafkaSink(producer, cfg.KafkaTopic))
	}

	var hookCfg webhook.Config
	if err := config.Load(&hookCfg); err != nil {
		return nil, fmt.Errorf("webhook config: %w", err)
	}
	if hookCfg.Enabled() {
		hook, err := webhook.NewSink(webhook.NewSender(webhook.WithSecret(hookCfg.Secret)), hookCfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, hook)
	}

	if cfg.NotifyCustomers {
		notifications, err := newNotificationSink(cfg, recipients, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notifications)
	}

	return subscription.NewMultiSink(sinks, subscription.WithMultiSinkLogger(log)), nil
}

func newNotificationSink(cfg appConfig, recipients email.RecipientResolver, log *slog.Logger) (*email.NotificationSink, error) {
	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return nil, fmt.Errorf("email config: %w", err)
	}

	var sender email.EmailSender
	if emailCfg.HasPostmark() {
		var err error
		if sender, err = email.NewPostmarkClient(emailCfg); err != nil {
			return nil, err
		}
	} else {
		log.Warn("postmark is not configured, notifications are written to disk",
			slog.String("dir", emailCfg.DevOutputDir))
		sender = email.NewDevSender(emailCfg.DevOutputDir)
	}

	return email.NewNotificationSink(sender, recipients, emailCfg,
		email.WithBillingURL(cfg.BillingURL),
		email.WithNotificationLogger(log),
	), nil
}

func (e *engine) newLocker(ctx context.Context, log *slog.Logger) (*redis.Locker, error) {
	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() {
		if err := client.Close(); err != nil {
			log.WarnContext(ctx, "failed to close redis client", logger.Error(err))
		}
	})
	e.checks["redis"] = redis.Healthcheck(client)
	return redis.NewLocker(client, redis.WithLockerLogger(log)), nil
}
