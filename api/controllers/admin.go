package controllers

import (
	"net/http"

	"github.com/hoangtran/auctionhub-backend/api/responses"
	adminsvc "github.com/hoangtran/auctionhub-backend/internal/admin"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

// AdminStats returns marketplace counters for the back office dashboard.
func AdminStats(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
