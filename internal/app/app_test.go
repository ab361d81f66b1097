package app

import (
	"testing"

	"settlement-platform/internal/config"
	"settlement-platform/internal/payment"
	"settlement-platform/pkg/rabbitmq"
)

func loaded(t *testing.T) config.Config {
	t.Helper()
	c := config.Config{
		App:   config.AppConfig{Env: "local", Port: 8080},
		DB:    config.DBConfig{Host: "localhost", Port: 5432, User: "postgres", Name: "settlement"},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
		Auth:  config.AuthConfig{JWTSecret: "secret"},
	}
	c.Billing.NetBasis = "without_tax"
	c.Billing.Timezone = "UTC"
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return c
}

func TestBillingOptions(t *testing.T) {
	opts := BillingOptions(loaded(t))
	if opts.Currency != "TRY" || opts.DueDays != 30 || opts.NumberAttempts != 5 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if string(opts.NetBasis) != "without_tax" || opts.Location.String() != "UTC" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestGateway(t *testing.T) {
	c := loaded(t)
	if Gateway(c) != nil {
		t.Fatalf("expected no gateway without a url")
	}
	c.Payment.GatewayURL = "https://pay.example.com"
	c.Payment.WebhookSecret = "k"
	if _, ok := Gateway(c).(payment.HostedGateway); !ok {
		t.Fatalf("expected hosted gateway")
	}
}

func TestPublisherFallsBackWithoutURL(t *testing.T) {
	p, err := Publisher(loaded(t), nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if _, ok := p.(rabbitmq.Fallback); !ok {
		t.Fatalf("expected fallback publisher, got %T", p)
	}
}
