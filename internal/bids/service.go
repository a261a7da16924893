package bids

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/metrics"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/payloads"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

// Service accepts bids and exposes bid history reads.
type Service interface {
	PlaceBid(ctx context.Context, params PlaceBidParams) (*PlaceBidResult, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor string) (*ListResult, error)
	ListByBidder(ctx context.Context, bidderID uuid.UUID, limit int, cursor string) (*ListResult, error)
	Winning(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auctionReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type broadcaster interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// ServiceParams wires the bid service dependencies.
type ServiceParams struct {
	Logger           *logger.Logger
	DB               txRunner
	Repo             Repository
	Auctions         auctionReader
	Outbox           outboxEmitter
	Broadcaster      broadcaster
	Metrics          *metrics.BidMetrics
	BroadcastChannel string
	AllowAdminBids   bool
}

type service struct {
	logg           *logger.Logger
	db             txRunner
	repo           Repository
	auctions       auctionReader
	outbox         outboxEmitter
	broadcaster    broadcaster
	metrics        *metrics.BidMetrics
	channel        string
	allowAdminBids bool
	now            func() time.Time
}

// NewService wires bid dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bids repository required")
	}
	if params.Auctions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auction reader required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{
		logg:           params.Logger,
		db:             params.DB,
		repo:           params.Repo,
		auctions:       params.Auctions,
		outbox:         params.Outbox,
		broadcaster:    params.Broadcaster,
		metrics:        params.Metrics,
		channel:        params.BroadcastChannel,
		allowAdminBids: params.AllowAdminBids,
		now:            time.Now,
	}, nil
}

// PlaceBidParams identifies the bidder and the offer.
type PlaceBidParams struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Role      enums.UserRole
	Amount    decimal.Decimal
}

// PlaceBidResult reports the accepted bid and the resulting auction price.
type PlaceBidResult struct {
	Bid          *models.Bid     `json:"bid"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	BidCount     int             `json:"bid_count"`

	outbidBidder *uuid.UUID
}

// ListResult wraps a page of bids and the cursor for the next page.
type ListResult struct {
	Items  []models.Bid `json:"items"`
	Cursor string       `json:"cursor"`
}

type bidBroadcast struct {
	Type         string          `json:"type"`
	AuctionID    uuid.UUID       `json:"auction_id"`
	BidID        uuid.UUID       `json:"bid_id"`
	BidderID     uuid.UUID       `json:"bidder_id"`
	Amount       decimal.Decimal `json:"amount"`
	BidCount     int             `json:"bid_count"`
	PlacedAt     time.Time       `json:"placed_at"`
	OutbidUserID *uuid.UUID      `json:"outbid_user_id,omitempty"`
}

// PlaceBid admits a bid with a compare-and-set price advance. A lost race is
// retried once against fresh state before surfacing a conflict.
func (s *service) PlaceBid(ctx context.Context, params PlaceBidParams) (*PlaceBidResult, error) {
	if params.AuctionID == uuid.Nil || params.BidderID == uuid.Nil {
		s.metrics.IncRejected("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id and bidder id required")
	}
	if !params.Amount.IsPositive() {
		s.metrics.IncRejected("validation")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}

	result, err := s.tryPlace(ctx, params)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			s.metrics.IncConflict()
			result, err = s.tryPlace(ctx, params)
		}
	}
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncRejected(string(typed.Code()))
		}
		return nil, err
	}

	s.metrics.IncAccepted()
	s.broadcast(ctx, result)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"auction_id": params.AuctionID.String(),
		"bid_id":     result.Bid.ID.String(),
		"amount":     params.Amount.String(),
	})
	s.logg.Info(logCtx, "bid accepted")
	return result, nil
}

func (s *service) tryPlace(ctx context.Context, params PlaceBidParams) (*PlaceBidResult, error) {
	auction, err := s.auctions.FindByID(ctx, params.AuctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find auction")
	}
	if auction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
	}
	if err := s.admit(auction, params); err != nil {
		return nil, err
	}

	var (
		outbid *models.Bid
		bid    *models.Bid
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		moved, err := txRepo.AdvanceAuctionPrice(ctx, auction.ID, auction.CurrentPrice, params.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance auction price")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "auction price moved").
				WithDetails(map[string]any{"expected": auction.CurrentPrice.String()})
		}

		outbid, err = txRepo.FindWinning(ctx, auction.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find winning bid")
		}
		if outbid != nil {
			if err := txRepo.ClearWinning(ctx, auction.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear winning flag")
			}
		}

		bid = &models.Bid{
			AuctionID: auction.ID,
			BidderID:  params.BidderID,
			Amount:    params.Amount,
			IsWinning: true,
		}
		if err := txRepo.Insert(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bid")
		}

		actor := &outbox.ActorRef{UserID: params.BidderID, Role: params.Role.String()}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidPlaced,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Actor:         actor,
			Version:       1,
			Data: payloads.BidPlacedEvent{
				BidID:         bid.ID,
				AuctionID:     auction.ID,
				BidderID:      params.BidderID,
				SellerID:      auction.SellerID,
				Amount:        params.Amount,
				PreviousPrice: auction.CurrentPrice,
				BidCount:      auction.BidCount + 1,
			},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidAccepted,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Actor:         actor,
			Version:       1,
			Data: payloads.BidPlacedEvent{
				BidID:         bid.ID,
				AuctionID:     auction.ID,
				BidderID:      params.BidderID,
				SellerID:      auction.SellerID,
				Amount:        params.Amount,
				PreviousPrice: auction.CurrentPrice,
				BidCount:      auction.BidCount + 1,
			},
		}); err != nil {
			return err
		}

		if outbid != nil && outbid.BidderID != params.BidderID {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBidOutbid,
				AggregateType: enums.AggregateBid,
				AggregateID:   outbid.ID,
				Actor:         actor,
				Version:       1,
				Data: payloads.BidOutbidEvent{
					AuctionID:       auction.ID,
					OutbidBidderID:  outbid.BidderID,
					NewLeaderID:     params.BidderID,
					NewLeaderAmount: params.Amount,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &PlaceBidResult{
		Bid:          bid,
		CurrentPrice: params.Amount,
		BidCount:     auction.BidCount + 1,
	}
	if outbid != nil && outbid.BidderID != params.BidderID {
		result.outbidBidder = &outbid.BidderID
	}
	return result, nil
}

// admit runs the ordered admission checks against a snapshot of the auction.
func (s *service) admit(auction *models.Auction, params PlaceBidParams) error {
	now := s.now().UTC()

	if auction.Status != enums.AuctionStatusActive || auction.StartTime.After(now) || !auction.EndTime.After(now) {
		return pkgerrors.New(pkgerrors.CodeAuctionNotActive, "auction is not accepting bids").
			WithDetails(map[string]any{"status": auction.Status})
	}
	if auction.SellerID == params.BidderID {
		return pkgerrors.New(pkgerrors.CodeSelfBidForbidden, "sellers cannot bid on their own auctions")
	}
	if params.Role == enums.UserRoleAdmin && !s.allowAdminBids {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin accounts may not place bids")
	}
	if !params.Amount.GreaterThan(auction.CurrentPrice) {
		return pkgerrors.New(pkgerrors.CodeBidTooLow, "bid must exceed the current price").
			WithDetails(map[string]any{"current_price": auction.CurrentPrice.String()})
	}
	if minimum := auction.CurrentPrice.Add(auction.MinIncrement); params.Amount.LessThan(minimum) {
		return pkgerrors.New(pkgerrors.CodeBidBelowIncrement, "bid is below the minimum increment").
			WithDetails(map[string]any{"minimum": minimum.String()})
	}
	return nil
}

func (s *service) broadcast(ctx context.Context, result *PlaceBidResult) {
	if s.broadcaster == nil || s.channel == "" {
		return
	}

	payload, err := json.Marshal(bidBroadcast{
		Type:         "bid_placed",
		AuctionID:    result.Bid.AuctionID,
		BidID:        result.Bid.ID,
		BidderID:     result.Bid.BidderID,
		Amount:       result.Bid.Amount,
		BidCount:     result.BidCount,
		PlacedAt:     result.Bid.CreatedAt,
		OutbidUserID: result.outbidBidder,
	})
	if err != nil {
		return
	}
	// Global feed for list pages, per-auction channel for detail pages.
	channels := []string{s.channel, fmt.Sprintf("%s:%s", s.channel, result.Bid.AuctionID)}
	for _, channel := range channels {
		if err := s.broadcaster.Publish(ctx, channel, payload); err != nil {
			s.logg.Warn(s.logg.WithAuctionID(ctx, result.Bid.AuctionID.String()), "bid broadcast failed")
		}
	}
}

func (s *service) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor string) (*ListResult, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	return s.page(ctx, limit, cursor, func(c *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error) {
		return s.repo.ListByAuction(ctx, auctionID, limit, c)
	})
}

func (s *service) ListByBidder(ctx context.Context, bidderID uuid.UUID, limit int, cursor string) (*ListResult, error) {
	if bidderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bidder id required")
	}
	return s.page(ctx, limit, cursor, func(c *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error) {
		return s.repo.ListByBidder(ctx, bidderID, limit, c)
	})
}

func (s *service) Winning(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	bid, err := s.repo.FindWinning(ctx, auctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find winning bid")
	}
	return bid, nil
}

func (s *service) page(ctx context.Context, limit int, cursor string, fetch func(*pagination.Cursor) ([]models.Bid, *pagination.Cursor, error)) (*ListResult, error) {
	var parsed *pagination.Cursor
	if cursor != "" {
		c, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		parsed = c
	}
	rows, next, err := fetch(parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	encoded := ""
	if next != nil {
		encoded = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: encoded}, nil
}
