package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/internal/bids"
	"github.com/hoangtran/auctionhub-backend/internal/cron"
	"github.com/hoangtran/auctionhub-backend/internal/history"
	"github.com/hoangtran/auctionhub-backend/internal/notifications"
	"github.com/hoangtran/auctionhub-backend/internal/payments"
	"github.com/hoangtran/auctionhub-backend/internal/settlement"
	"github.com/hoangtran/auctionhub-backend/pkg/config"
	"github.com/hoangtran/auctionhub-backend/pkg/db"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/metrics"
	"github.com/hoangtran/auctionhub-backend/pkg/migrate"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/redis"
)

const lockKeyFormat = "ah:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	auctionRepo := auctions.NewRepository(gormDB)
	bidRepo := bids.NewRepository(gormDB)
	paymentRepo := payments.NewRepository(gormDB)

	auctionService, err := auctions.NewService(auctions.ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Repo:    auctionRepo,
		History: history.NewRecorder(gormDB),
		Outbox:  outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     paymentRepo,
		Outbox:   outboxService,
		Auctions: auctionService,
		Artifacts: payments.ArtifactConfig{
			BankName:       cfg.Payment.BankName,
			BankAccount:    cfg.Payment.BankAccount,
			BankHolder:     cfg.Payment.BankHolder,
			GatewayBaseURL: cfg.Payment.GatewayBaseURL,
			QRBaseURL:      cfg.Payment.QRBaseURL,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Logger:          logg,
		DB:              dbClient,
		Auctions:        auctionRepo,
		Transitioner:    auctionService,
		Bids:            bidRepo,
		Payments:        paymentService,
		Outbox:          outboxService,
		PaymentDeadline: cfg.Auction.PaymentDeadline,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	startJob, err := cron.NewAuctionStartJob(cron.AuctionStartJobParams{
		Logger:       logg,
		DueReader:    auctionRepo,
		Transitioner: auctionService,
		BatchSize:    cfg.Auction.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction start job", err)
		os.Exit(1)
	}
	endJob, err := cron.NewAuctionEndJob(cron.AuctionEndJobParams{
		Logger:    logg,
		DueReader: auctionRepo,
		Settler:   settlementService,
		BatchSize: cfg.Auction.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction end job", err)
		os.Exit(1)
	}
	settleJob, err := cron.NewAuctionSettleJob(cron.AuctionSettleJobParams{
		Logger:          logg,
		UnsettledReader: auctionRepo,
		Settler:         settlementService,
		BatchSize:       cfg.Auction.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction settle job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:       logg,
		OrderReader:  paymentRepo,
		OrderExpirer: paymentService,
		BatchSize:    cfg.Auction.SweepBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment expiry job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(gormDB),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(gormDB),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	collector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	// Each group ticks at its own cadence and holds its own lock, so a slow
	// maintenance sweep never delays auction activation.
	groups := []struct {
		name     string
		interval time.Duration
		jobs     []cron.Job
	}{
		{name: "lifecycle", interval: cfg.Auction.StartSweepInterval, jobs: []cron.Job{startJob, endJob, settleJob}},
		{name: "payments", interval: cfg.Auction.PaymentSweepInterval, jobs: []cron.Job{expiryJob}},
		{name: "maintenance", jobs: []cron.Job{retentionJob, cleanupJob}},
	}

	services := make([]*cron.Service, 0, len(groups))
	for _, group := range groups {
		lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env, group.name), cron.LockTTLForInterval(group.interval))
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		service, err := cron.NewService(cron.ServiceParams{
			Logger:   logg,
			Registry: cron.NewRegistry(group.jobs...),
			Lock:     lock,
			Metrics:  collector,
			Interval: group.interval,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create cron service", err)
			os.Exit(1)
		}
		services = append(services, service)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	var wg sync.WaitGroup
	errCh := make(chan error, len(services))
	for _, service := range services {
		wg.Add(1)
		go func(svc *cron.Service) {
			defer wg.Done()
			if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
				stop()
			}
		}(service)
	}
	wg.Wait()
	close(errCh)

	if err, ok := <-errCh; ok {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env, group string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, group)
}
