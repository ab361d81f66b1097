package cli

import (
	"context"
	"os"

	"settlement-platform/internal/app"
	"settlement-platform/internal/audit"
	"settlement-platform/internal/auth"
	"settlement-platform/internal/billing"
	"settlement-platform/internal/config"
	"settlement-platform/internal/reporting"
	"settlement-platform/pkg/logger"

	"github.com/joho/godotenv"
)

// Backend is what the commands operate on.
type Backend struct {
	Billing *billing.Service
	Reports *reporting.Service
	Tokens  *auth.Manager
	Close   func()
}

// Opener builds a Backend on first use, so --help never touches the database.
type Opener func(ctx context.Context) (*Backend, error)

func openFromEnv(ctx context.Context) (*Backend, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.NewCLI(cfg.App.Env)

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, err
	}
	db, st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	pub, err := app.Publisher(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Backend{
		Billing: billing.NewService(st, app.Notifier(cfg, pub), app.Gateway(cfg), app.BillingOptions(cfg)),
		Reports: reporting.NewService(reporting.NewStoreRepository(st), cfg.Billing.Currency),
		Tokens:  tokens,
		Close: func() {
			pub.Close()
			_ = db.Close()
		},
	}, nil
}

func defaultOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "settlectl"
}

func operatorActor(name string) audit.Actor {
	return audit.Actor{ID: "cli:" + name, Role: "admin"}
}
