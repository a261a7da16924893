package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hoangtran/auctionhub-backend/api/responses"
	"github.com/hoangtran/auctionhub-backend/api/validators"
	auctionsvc "github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

// CreateAuction opens a draft listing for the authenticated seller.
func CreateAuction(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createAuctionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toCreateParams(actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auction, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, auction)
	}
}

// GetAuction returns a single auction and counts the view.
func GetAuction(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auction, err := svc.Get(r.Context(), auctionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auction)
	}
}

// ListAuctions searches the catalog with optional status, seller, category,
// price and keyword filters.
func ListAuctions(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		params := auctionsvc.ListParams{
			Query:  strings.TrimSpace(r.URL.Query().Get("q")),
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseAuctionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("sellerId")); raw != "" {
			sellerID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller id"))
				return
			}
			params.SellerID = &sellerID
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
			params.Category = &raw
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("minPrice")); raw != "" {
			min, err := decimal.NewFromString(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid minPrice"))
				return
			}
			params.MinPrice = &min
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("maxPrice")); raw != "" {
			max, err := decimal.NewFromString(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid maxPrice"))
				return
			}
			params.MaxPrice = &max
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UpdateAuction edits draft fields on behalf of the seller or an admin.
func UpdateAuction(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateAuctionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := payload.toUpdateParams(auctionID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auction, err := svc.Update(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auction)
	}
}

// DeleteAuction withdraws a listing. Listings are never hard-deleted; the
// auction moves to cancelled and stays in the audit trail.
func DeleteAuction(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auction, err := svc.Cancel(r.Context(), auctionID, actor, "listing withdrawn")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auction)
	}
}

// HardDeleteAuction permanently removes a listing and its cascaded bids and
// images. Routed admin-only; sellers use DeleteAuction to withdraw.
func HardDeleteAuction(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.HardDelete(r.Context(), auctionID, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

// TransitionAuction moves an auction through its lifecycle. Sellers may
// submit, cancel and (via admins) have listings suspended or resumed; any
// other target status requires the admin role.
func TransitionAuction(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		actor, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionAuctionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseAuctionStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		var auction any
		switch target {
		case enums.AuctionStatusPending:
			auction, err = svc.Submit(r.Context(), auctionID, actor)
		case enums.AuctionStatusCancelled:
			auction, err = svc.Cancel(r.Context(), auctionID, actor, payload.Reason)
		case enums.AuctionStatusSuspended:
			auction, err = svc.Suspend(r.Context(), auctionID, actor, payload.Reason)
		case enums.AuctionStatusActive:
			auction, err = svc.Resume(r.Context(), auctionID, actor)
		default:
			if actor.Role != enums.UserRoleAdmin {
				err = pkgerrors.New(pkgerrors.CodeForbidden, "only admins can force this transition")
				break
			}
			auction, err = svc.Transition(r.Context(), auctionID, target, &actor, payload.Reason)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, auction)
	}
}

// AuctionHistory returns the status audit trail for an auction.
func AuctionHistory(svc auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auction service unavailable"))
			return
		}

		auctionID, err := auctionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), auctionID, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type createAuctionRequest struct {
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Condition     string   `json:"condition" validate:"required"`
	StartingPrice string   `json:"starting_price" validate:"required"`
	MinIncrement  string   `json:"min_increment" validate:"required"`
	StartTime     string   `json:"start_time" validate:"required"`
	EndTime       string   `json:"end_time" validate:"required"`
	ImageURLs     []string `json:"image_urls,omitempty" validate:"omitempty,dive,url"`
}

func (req createAuctionRequest) toCreateParams(sellerID uuid.UUID) (auctionsvc.CreateParams, error) {
	condition, err := enums.ParseItemCondition(strings.TrimSpace(req.Condition))
	if err != nil {
		return auctionsvc.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition")
	}
	startingPrice, err := decimal.NewFromString(req.StartingPrice)
	if err != nil {
		return auctionsvc.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid starting_price")
	}
	minIncrement, err := decimal.NewFromString(req.MinIncrement)
	if err != nil {
		return auctionsvc.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min_increment")
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return auctionsvc.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid start_time")
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return auctionsvc.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid end_time")
	}

	return auctionsvc.CreateParams{
		SellerID:      sellerID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Condition:     condition,
		StartingPrice: startingPrice,
		MinIncrement:  minIncrement,
		StartTime:     startTime,
		EndTime:       endTime,
		ImageURLs:     req.ImageURLs,
	}, nil
}

type updateAuctionRequest struct {
	Title         *string `json:"title,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	Condition     *string `json:"condition,omitempty"`
	StartingPrice *string `json:"starting_price,omitempty"`
	MinIncrement  *string `json:"min_increment,omitempty"`
	StartTime     *string `json:"start_time,omitempty"`
	EndTime       *string `json:"end_time,omitempty"`
}

func (req updateAuctionRequest) toUpdateParams(auctionID uuid.UUID, actor auctionsvc.Actor) (auctionsvc.UpdateParams, error) {
	params := auctionsvc.UpdateParams{
		AuctionID:   auctionID,
		Actor:       actor,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Condition != nil {
		condition, err := enums.ParseItemCondition(strings.TrimSpace(*req.Condition))
		if err != nil {
			return auctionsvc.UpdateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition")
		}
		params.Condition = &condition
	}
	if req.StartingPrice != nil {
		price, err := decimal.NewFromString(*req.StartingPrice)
		if err != nil {
			return auctionsvc.UpdateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid starting_price")
		}
		params.StartingPrice = &price
	}
	if req.MinIncrement != nil {
		increment, err := decimal.NewFromString(*req.MinIncrement)
		if err != nil {
			return auctionsvc.UpdateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min_increment")
		}
		params.MinIncrement = &increment
	}
	if req.StartTime != nil {
		startTime, err := time.Parse(time.RFC3339, *req.StartTime)
		if err != nil {
			return auctionsvc.UpdateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid start_time")
		}
		params.StartTime = &startTime
	}
	if req.EndTime != nil {
		endTime, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			return auctionsvc.UpdateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid end_time")
		}
		params.EndTime = &endTime
	}
	return params, nil
}

type transitionAuctionRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty"`
}

func auctionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "auctionId"))
	auctionID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid auction id")
	}
	return auctionID, nil
}
