package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hoangtran/auctionhub-backend/api/routes"
	"github.com/hoangtran/auctionhub-backend/internal/admin"
	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/internal/bids"
	"github.com/hoangtran/auctionhub-backend/internal/history"
	"github.com/hoangtran/auctionhub-backend/internal/notifications"
	"github.com/hoangtran/auctionhub-backend/internal/payments"
	"github.com/hoangtran/auctionhub-backend/pkg/config"
	"github.com/hoangtran/auctionhub-backend/pkg/db"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/metrics"
	"github.com/hoangtran/auctionhub-backend/pkg/migrate"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	historyRecorder := history.NewRecorder(gormDB)

	auctionRepo := auctions.NewRepository(gormDB)
	auctionService, err := auctions.NewService(auctions.ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Repo:    auctionRepo,
		History: historyRecorder,
		Outbox:  outboxService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auction service", err)
		os.Exit(1)
	}

	bidService, err := bids.NewService(bids.ServiceParams{
		Logger:           logg,
		DB:               dbClient,
		Repo:             bids.NewRepository(gormDB),
		Auctions:         auctionRepo,
		Outbox:           outboxService,
		Broadcaster:      redisClient,
		Metrics:          metrics.NewBidMetrics(prometheus.DefaultRegisterer),
		BroadcastChannel: cfg.Auction.BroadcastChannel,
		AllowAdminBids:   cfg.Auction.AllowAdminBids,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bid service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Repo:     payments.NewRepository(gormDB),
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

	adminService, err := admin.NewService(gormDB)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, auctionService, adminService, bidService, paymentService, notificationService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
