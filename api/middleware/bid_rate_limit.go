package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hoangtran/auctionhub-backend/api/responses"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

type bidRateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// BidRateLimitPolicy defines the fixed-window throttle for bid placement.
type BidRateLimitPolicy struct {
	window time.Duration
	limit  int
}

// NewBidRateLimitPolicy builds a policy with the supplied window and per-caller limit.
func NewBidRateLimitPolicy(window time.Duration, limit int) BidRateLimitPolicy {
	return BidRateLimitPolicy{window: window, limit: limit}
}

func (p BidRateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

// BidRateLimit throttles bid placement per bidder. The counter is keyed on
// the authenticated user, falling back to the client IP when the identity is
// missing from the context.
func BidRateLimit(policy BidRateLimitPolicy, store bidRateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scope := "bids:user:" + UserIDFromContext(ctx)
			if UserIDFromContext(ctx) == "" {
				scope = "bids:ip:" + clientIP(r)
			}

			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.limit), policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"scope":          scope,
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "bid rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
