package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hoangtran/auctionhub-backend/api/responses"
	"github.com/hoangtran/auctionhub-backend/api/validators"
	paymentsvc "github.com/hoangtran/auctionhub-backend/internal/payments"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

// GetPayment returns a payment order by its public code. When a payment
// method is requested the response carries the matching payment artifact
// (bank transfer details, QR code link or gateway checkout URL).
func GetPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "orderCode"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order code required"))
			return
		}

		order, err := svc.GetByCode(r.Context(), code, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := paymentResponse{Order: order}
		if raw := strings.TrimSpace(r.URL.Query().Get("method")); raw != "" {
			method, err := enums.ParsePaymentMethod(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
				return
			}
			artifact, err := svc.ArtifactFor(order, method)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.Artifact = artifact
		}
		responses.WriteSuccess(w, resp)
	}
}

// PaymentCallback ingests a gateway status confirmation for an order.
func PaymentCallback(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "orderCode"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order code required"))
			return
		}

		var payload paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePaymentStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		var method *enums.PaymentMethod
		if payload.Method != nil {
			parsed, err := enums.ParsePaymentMethod(strings.TrimSpace(*payload.Method))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid method"))
				return
			}
			method = &parsed
		}

		order, err := svc.HandleStatusUpdate(r.Context(), code, status, method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// MyPayments returns the authenticated buyer's payment orders.
func MyPayments(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListByBuyer(r.Context(), actor.ID, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type paymentResponse struct {
	Order    *models.PaymentOrder `json:"order"`
	Artifact *paymentsvc.Artifact `json:"artifact,omitempty"`
}

type paymentCallbackRequest struct {
	Status string  `json:"status" validate:"required"`
	Method *string `json:"method,omitempty"`
}
