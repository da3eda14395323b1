package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const (
	catalogPostgres = "postgres"
	catalogPaddle   = "paddle"
)

// appConfig selects and tunes the adapters wired around the lifecycle engine.
type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production dev stage prod"`
	ServiceName string `env:"APP_NAME" envDefault:"billing" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL"`

	PriceCatalog string `env:"BILLING_PRICE_CATALOG" envDefault:"postgres" validate:"oneof=postgres paddle"`

	RedisLock bool          `env:"BILLING_REDIS_LOCK" envDefault:"true"`
	LockKey   string        `env:"BILLING_LOCK_KEY" envDefault:"billing:lifecycle:run"`
	LockTTL   time.Duration `env:"BILLING_LOCK_TTL" envDefault:"15m" validate:"gt=0"`

	NATSURL           string   `env:"NATS_URL"`
	NATSSubjectPrefix string   `env:"NATS_SUBJECT_PREFIX" envDefault:"billing"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic        string   `env:"KAFKA_TOPIC" envDefault:"billing.subscription-events"`

	NotifyCustomers bool   `env:"BILLING_NOTIFY_CUSTOMERS" envDefault:"false"`
	BillingURL      string `env:"BILLING_PORTAL_URL" validate:"omitempty,url"`

	MetricsAddr string `env:"METRICS_ADDR"`
}

// loadEnvFiles applies the --env-file flag before any configuration is read.
func loadEnvFiles(cmd *cobra.Command) error {
	files, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil || len(files) == 0 {
		return err
	}
	return config.LoadEnv(files...)
}

func loadAppConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.LoadValidated(&cfg); err != nil {
		return cfg, fmt.Errorf("app config: %w", err)
	}
	return cfg, nil
}

func loadLifecycleConfig() (subscription.Config, error) {
	var cfg subscription.Config
	if err := config.LoadValidated(&cfg); err != nil {
		return cfg, fmt.Errorf("lifecycle config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger; every record logged with a run context
// carries the run ID.
func newLogger(cfg appConfig) (*slog.Logger, error) {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(subscription.RunIDExtractor),
	}
	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...), nil
}
