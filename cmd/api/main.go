package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-platform/internal/app"
	"settlement-platform/internal/auth"
	"settlement-platform/internal/billing"
	"settlement-platform/internal/config"
	"settlement-platform/internal/reporting"
	"settlement-platform/internal/scheduler"
	"settlement-platform/pkg/logger"
	"settlement-platform/pkg/rabbitmq"
	"settlement-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// .env is optional; real environments inject variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, st, err := app.OpenStore(rootCtx, cfg, log)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	pub, err := app.Publisher(cfg, log)
	if err != nil {
		log.Error("rabbitmq init failed", "err", err)
		os.Exit(1)
	}
	defer pub.Close()

	billingSvc := billing.NewService(st, app.Notifier(cfg, pub), app.Gateway(cfg), app.BillingOptions(cfg))
	reports := reporting.NewService(reporting.NewStoreRepository(st), cfg.Billing.Currency)

	// Fulfillment events arrive on the broker as well as the admin route.
	if cfg.RabbitMQ.URL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQ.URL, log)
		if err != nil {
			log.Error("rabbitmq consumer init failed", "err", err)
			os.Exit(1)
		}
		defer consumer.Close()
		err = consumer.ConsumeWithBindings(rootCtx, cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.EventsQueue, map[string]rabbitmq.Handler{
			billing.RoutingKeyFulfillmentStatus: billingSvc.EventHandler(),
		})
		if err != nil {
			log.Error("rabbitmq consume failed", "err", err)
			os.Exit(1)
		}
	}

	schedCfg := scheduler.Config{
		SweepSchedule:   cfg.Sweep.Schedule,
		OverdueSchedule: cfg.Sweep.OverdueSchedule,
		CloseSchedule:   cfg.Sweep.CloseSchedule,
		LockTTL:         cfg.Sweep.LockTTL,
		JobTimeout:      cfg.Sweep.JobTimeout,
	}
	jobs := scheduler.NewJobs(billingSvc, utils.NewRedisLocker(rdb), schedCfg, log)
	sched := scheduler.New(jobs, schedCfg, log)
	if err := sched.Start(rootCtx); err != nil {
		log.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:          authManager,
		billing:       billingSvc,
		reports:       reports,
		webhookSecret: cfg.Payment.WebhookSecret,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Wait for a running sweep to finish before the store closes.
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not stop in time")
	}
}
