// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dynamic-qr-platform/internal/config"
	"dynamic-qr-platform/internal/domain/ports/adapter"
	payAdapters "dynamic-qr-platform/internal/infra/adapters/payment"
	"dynamic-qr-platform/internal/infra/api"
	pg "dynamic-qr-platform/internal/infra/db/postgres"
	"dynamic-qr-platform/internal/infra/logging"
	"dynamic-qr-platform/internal/infra/metrics"
	red "dynamic-qr-platform/internal/infra/redis"
	"dynamic-qr-platform/internal/infra/sched"
	"dynamic-qr-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, fake payment gateway)")
	flag.Parse()

	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	sessionRepo := pg.NewPaymentSessionRepo(pool)
	linkRepo := pg.NewLinkRepoCacheDecorator(pg.NewLinkRepo(pool), redisClient, cfg.Redis.CacheTTL)

	// ---- Payment gateway ----
	var gateway adapter.CheckoutGateway
	if cfg.Runtime.Dev && cfg.Payment.APIKey == "" {
		gateway = payAdapters.NewNoopGateway()
		logger.Warn().Msg("payment gateway: noop (dev)")
	} else {
		gateway, err = payAdapters.NewStripeGateway(&cfg.Payment)
		if err != nil {
			logger.Fatal().Err(err).Msg("payment gateway init failed")
		}
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, cfg.UsageLimits(), cfg.Subscription.GracePastDue, logger)
	userUC := usecase.NewUserUseCase(userRepo, subUC, tm, logger)
	linkUC := usecase.NewLinkUseCase(linkRepo, subUC, tm, logger)
	checkoutUC := usecase.NewCheckoutUseCase(sessionRepo, userRepo, subUC, gateway, tm, logger)

	// ---- Session reaper ----
	reaper := sched.NewSessionReaper(cfg.Reaper.Cron, cfg.Reaper.SessionTTL, checkoutUC, logger)
	if err := reaper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("session reaper start failed")
	}
	defer reaper.Stop()

	// ---- Stats gauges ----
	stats := sched.NewStatsCollector(time.Minute, userRepo, subRepo, logger)
	go func() { _ = stats.Run(ctx) }()

	// ---- HTTP server ----
	srv := api.NewServer(cfg, userUC, subUC, linkUC, checkoutUC, rateLimiter, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
