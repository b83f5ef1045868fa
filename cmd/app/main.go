// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mymedaga-payments/internal/config"
	"mymedaga-payments/internal/domain/ports/adapter"
	natsAdapter "mymedaga-payments/internal/infra/adapters/nats"
	"mymedaga-payments/internal/infra/adapters/provider"
	tele "mymedaga-payments/internal/infra/adapters/telegram"
	"mymedaga-payments/internal/infra/api"
	"mymedaga-payments/internal/infra/api/apiv1"
	pg "mymedaga-payments/internal/infra/db/postgres"
	"mymedaga-payments/internal/infra/i18n"
	"mymedaga-payments/internal/infra/logging"
	"mymedaga-payments/internal/infra/metrics"
	red "mymedaga-payments/internal/infra/redis"
	"mymedaga-payments/internal/infra/sched"
	"mymedaga-payments/internal/infra/scheduler"
	"mymedaga-payments/internal/infra/security"
	"mymedaga-payments/internal/infra/worker"
	"mymedaga-payments/internal/usecase"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "console logs and relaxed local defaults")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("payments service stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Runtime.Environment)
	logger.Info().Str("version", version).Str("environment", cfg.Runtime.Environment).Msg("starting payments service")

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Encryption of payer contact details ----
	var sealer pg.FieldSealer
	if cfg.Security.EncryptionKey != "" {
		enc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
		sealer = enc
	} else {
		logger.Warn().Msg("security.encryption_key not set; payer details stored in clear (sandbox only)")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	payRepo := pg.NewPaymentRepo(pool, sealer)
	targetRepo := pg.NewStoreCacheDecorator(pg.NewTargetRepo(pool), redisClient, cfg.Redis.StoreCacheTTL, logger)
	notifRepo := pg.NewNotificationRepo(pool)
	codeRepo := pg.NewVerificationCodeRepo(pool)
	usageRepo := pg.NewCodeUsageRepo(pool)

	// ---- Providers ----
	registry := provider.NewRegistry(cfg.Providers, provider.Options{
		Environment: cfg.Runtime.Environment,
		Timeout:     cfg.Providers.Timeout,
		Logger:      logger,
	})

	tr, err := i18n.Default(cfg.Notification.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	alerter, err := tele.NewAlerter(cfg.Telegram, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	var publisher adapter.NotificationPublisher
	if cfg.NATS.URL != "" {
		np, err := natsAdapter.Connect(ctx, cfg.NATS, logger)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer np.Close()
		publisher = np
	} else {
		logger.Warn().Msg("nats.url not set; notifications are logged only")
		publisher = natsAdapter.NewLogPublisher(logger)
	}

	// ---- Use cases ----
	settler := usecase.NewSettler(tm, payRepo, targetRepo, notifRepo, tr, alerter, logger)
	reconcileUC := usecase.NewReconcileUseCase(usecase.ReconcileConfig{
		Production:          cfg.Runtime.IsProduction(),
		WebhookSecrets:      provider.WebhookSecrets(cfg.Providers),
		StripeWebhookSecret: cfg.Providers.Stripe.WebhookSecret,
		SMSSecret:           cfg.Providers.SMS.WebhookSecret,
		VerifyLockTTL:       cfg.Providers.Timeout * 2,
	}, payRepo, registry, settler, locker, alerter, logger)

	verifyPool := worker.NewPool("verify", cfg.Verify.Workers, logger)
	verifyPool.Start(ctx)
	defer verifyPool.Stop()
	verifier := sched.NewDelayedVerifier(verifyPool, reconcileUC, cfg.Verify.Delay, logger)

	paymentUC := usecase.NewPaymentUseCase(payRepo, targetRepo, tm, registry, settler, verifier, logger)
	codeUC := usecase.NewCodeUseCase(codeRepo, usageRepo, targetRepo, notifRepo, tm, limiter,
		usecase.CodeLimits{RateLimit: cfg.Codes.RateLimit, RateWindow: cfg.Codes.RateWindow}, tr, logger)
	notifUC := usecase.NewNotificationUseCase(notifRepo, publisher, tm, cfg.Notification.MaxAttempts, logger)

	// ---- Background workers ----
	var wg sync.WaitGroup
	runWorker := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("worker", name).Msg("worker stopped")
			}
		}()
	}
	reconciler := sched.NewPaymentReconciler(reconcileUC, payRepo, verifyPool,
		cfg.Verify.Interval, cfg.Verify.StaleAfter, cfg.Verify.BatchSize, logger)
	runWorker("payment_reconciler", reconciler.Run)
	runWorker("notification_relay", sched.NewNotificationRelay(cfg.Notification.RelayInterval, cfg.Notification.BatchSize, notifUC, logger).Run)
	runWorker("code_expiry", sched.NewCodeExpiryWorker(cfg.Codes.CleanupInterval, codeUC, logger).Run)

	statsJob := scheduler.NewScheduler("code_stats", cfg.Codes.StatsInterval, func(ctx context.Context) error {
		_, err := codeUC.Stats(ctx)
		return err
	}, logger)
	statsJob.Start(ctx)
	defer statsJob.Stop()

	poolJob := scheduler.NewScheduler("db_pool_stats", 15*time.Second, func(context.Context) error {
		metrics.ObservePool(pool.Stat())
		return nil
	}, logger)
	poolJob.Start(ctx)
	defer poolJob.Stop()

	// ---- HTTP ----
	v1 := apiv1.NewServer(paymentUC, reconcileUC, codeUC, apiv1.NewAuthenticator(cfg.Auth.JWTSecret), logger)
	srv := api.NewServer(cfg.Server, v1, pool, logger)
	err = srv.Run(ctx)

	stop()
	wg.Wait()
	logger.Info().Msg("shutdown complete")
	return err
}
