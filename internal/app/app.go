// Package app builds the services shared by the api and settlectl binaries
// from a loaded config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"settlement-platform/internal/billing"
	"settlement-platform/internal/config"
	"settlement-platform/internal/notify"
	"settlement-platform/internal/payment"
	"settlement-platform/internal/pricing"
	"settlement-platform/internal/settlement"
	"settlement-platform/internal/store/postgres"
	"settlement-platform/pkg/rabbitmq"
	"settlement-platform/pkg/utils"
)

const notifyTimeout = 5 * time.Second

func BillingOptions(cfg config.Config) billing.Options {
	return billing.Options{
		Location:       cfg.Location(),
		Currency:       cfg.Billing.Currency,
		NetBasis:       settlement.NetBasis(cfg.Billing.NetBasis),
		DueDays:        cfg.Billing.DueDays,
		NumberAttempts: cfg.Billing.NumberAttempts,
		DefaultMethod:  pricing.PaymentMethod(cfg.Billing.DefaultMethod),
	}
}

// Gateway returns nil when no gateway is configured; checkout then answers 503.
func Gateway(cfg config.Config) payment.Gateway {
	if cfg.Payment.GatewayURL == "" {
		return nil
	}
	return payment.HostedGateway{BaseURL: cfg.Payment.GatewayURL, Secret: cfg.Payment.WebhookSecret}
}

// OpenStore connects to Postgres and applies pending migrations.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*sql.DB, *postgres.Store, error) {
	db, err := utils.OpenPostgres(ctx, utils.PgxDriver, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if applied > 0 {
		log.Info("migrations applied", "count", applied)
	}
	return db, postgres.New(db), nil
}

// Publisher dials RabbitMQ. Outside production a failed dial degrades to the
// logging fallback so local runs work without a broker.
func Publisher(cfg config.Config, log *slog.Logger) (rabbitmq.Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RabbitMQ.URL == "" {
		return rabbitmq.Fallback{Log: log}, nil
	}
	p, err := rabbitmq.NewProducer(cfg.RabbitMQ.URL, log)
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		log.Warn("rabbitmq unavailable; notifications will be logged only", "err", err)
		return rabbitmq.Fallback{Log: log}, nil
	}
	return p, nil
}

func Notifier(cfg config.Config, pub rabbitmq.Publisher) *notify.Dispatcher {
	return notify.NewDispatcher(notify.NewAMQPSender(pub, cfg.RabbitMQ.NotificationExchange), notifyTimeout, cfg.App.PublicURL)
}
