package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoangtran/auctionhub-backend/api/controllers"
	"github.com/hoangtran/auctionhub-backend/api/middleware"
	adminsvc "github.com/hoangtran/auctionhub-backend/internal/admin"
	auctionsvc "github.com/hoangtran/auctionhub-backend/internal/auctions"
	bidsvc "github.com/hoangtran/auctionhub-backend/internal/bids"
	notificationsvc "github.com/hoangtran/auctionhub-backend/internal/notifications"
	paymentsvc "github.com/hoangtran/auctionhub-backend/internal/payments"
	"github.com/hoangtran/auctionhub-backend/pkg/config"
	"github.com/hoangtran/auctionhub-backend/pkg/db"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	database db.Pinger,
	cache *redis.Client,
	auctionService auctionsvc.Service,
	adminService adminsvc.Service,
	bidService bidsvc.Service,
	paymentService paymentsvc.Service,
	notificationService notificationsvc.Service,
) http.Handler {
	var cachePinger redis.Pinger
	bidThrottle := func(next http.Handler) http.Handler { return next }
	if cache != nil {
		cachePinger = cache
		bidPolicy := middleware.NewBidRateLimitPolicy(cfg.Auction.BidRateWindow, cfg.Auction.BidRateLimit)
		bidThrottle = middleware.BidRateLimit(bidPolicy, cache, logg)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, database, cachePinger))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Gateway confirmations authenticate with their own shared-secret
		// headers at the edge, not with user tokens.
		r.Post("/payments/{orderCode}/callback", controllers.PaymentCallback(paymentService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/auctions", func(r chi.Router) {
				r.Post("/", controllers.CreateAuction(auctionService, logg))
				r.Get("/", controllers.ListAuctions(auctionService, logg))
				r.Route("/{auctionId}", func(r chi.Router) {
					r.Get("/", controllers.GetAuction(auctionService, logg))
					r.Patch("/", controllers.UpdateAuction(auctionService, logg))
					r.Delete("/", controllers.DeleteAuction(auctionService, logg))
					r.Post("/status", controllers.TransitionAuction(auctionService, logg))
					r.Get("/history", controllers.AuctionHistory(auctionService, logg))

					r.With(bidThrottle).Post("/bids", controllers.PlaceBid(bidService, logg))
					r.Get("/bids", controllers.ListAuctionBids(bidService, logg))
					r.Get("/bids/winning", controllers.WinningBid(bidService, logg))
				})
			})

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/bids", controllers.MyBids(bidService, logg))
				r.Get("/payments", controllers.MyPayments(paymentService, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/{orderCode}", controllers.GetPayment(paymentService, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationService, logg))
				r.Get("/unread-count", controllers.UnreadNotificationCount(notificationService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationService, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.UserRoleAdmin.String(), logg))
				r.Post("/admin/auctions/{auctionId}/status", controllers.TransitionAuction(auctionService, logg))
				r.Delete("/admin/auctions/{auctionId}", controllers.HardDeleteAuction(auctionService, logg))
				r.Get("/admin/stats", controllers.AdminStats(adminService, logg))
			})
		})
	})

	return r
}
