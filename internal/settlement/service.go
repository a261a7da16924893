package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/internal/payments"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/payloads"
)

// Service resolves ended auctions into winners and payment obligations.
type Service interface {
	Settle(ctx context.Context, auctionID uuid.UUID) (*Result, error)
}

// Result reports what settlement decided for one auction.
type Result struct {
	AuctionID    uuid.UUID            `json:"auction_id"`
	WinnerID     *uuid.UUID           `json:"winner_id,omitempty"`
	WinningBidID *uuid.UUID           `json:"winning_bid_id,omitempty"`
	PaymentOrder *models.PaymentOrder `json:"payment_order,omitempty"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auctionStore interface {
	WithTx(tx *gorm.DB) auctions.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
}

type auctionTransitioner interface {
	Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *auctions.Actor, reason string) (*models.Auction, error)
}

type winningBidFinder interface {
	FindWinning(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
}

type paymentOpener interface {
	CreateForAuction(ctx context.Context, tx *gorm.DB, params payments.CreateParams) (*models.PaymentOrder, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the settlement dependencies.
type ServiceParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Auctions        auctionStore
	Transitioner    auctionTransitioner
	Bids            winningBidFinder
	Payments        paymentOpener
	Outbox          outboxEmitter
	PaymentDeadline time.Duration
}

type service struct {
	logg         *logger.Logger
	db           txRunner
	auctions     auctionStore
	transitioner auctionTransitioner
	bids         winningBidFinder
	payments     paymentOpener
	outbox       outboxEmitter
	deadline     time.Duration
	now          func() time.Time
}

// NewService wires settlement dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Auctions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auctions repository required")
	}
	if params.Transitioner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auction service required")
	}
	if params.Bids == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bids repository required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.PaymentDeadline <= 0 {
		params.PaymentDeadline = 24 * time.Hour
	}
	return &service{
		logg:         params.Logger,
		db:           params.DB,
		auctions:     params.Auctions,
		transitioner: params.Transitioner,
		bids:         params.Bids,
		payments:     params.Payments,
		outbox:       params.Outbox,
		deadline:     params.PaymentDeadline,
		now:          time.Now,
	}, nil
}

// Settle resolves the winner for an ended auction. No bids completes the
// auction outright; otherwise the winner is recorded and a payment order
// opened. Transient dependency failures are retried with backoff, and the
// whole operation is safe to repeat.
func (s *service) Settle(ctx context.Context, auctionID uuid.UUID) (*Result, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}

	var result *Result
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		result, err = s.settleOnce(ctx, auctionID)
		if err != nil && pkgerrors.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) settleOnce(ctx context.Context, auctionID uuid.UUID) (*Result, error) {
	auction, err := s.auctions.FindByID(ctx, auctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find auction")
	}
	if auction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
	}

	switch auction.Status {
	case enums.AuctionStatusActive:
		if auction.EndTime.After(s.now().UTC()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction has not ended yet")
		}
		if _, err := s.transitioner.Transition(ctx, auctionID, enums.AuctionStatusEnded, nil, "end time reached"); err != nil {
			return nil, err
		}
	case enums.AuctionStatusEnded:
		// Ready to settle.
	case enums.AuctionStatusCompleted:
		return s.alreadySettled(ctx, auction)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction is not settleable").
			WithDetails(map[string]any{"status": auction.Status})
	}

	winning, err := s.bids.FindWinning(ctx, auctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find winning bid")
	}

	if winning == nil {
		// Nothing to collect; close the auction out.
		if _, err := s.transitioner.Transition(ctx, auctionID, enums.AuctionStatusCompleted, nil, "ended with no bids"); err != nil {
			return nil, err
		}
		s.logg.Info(s.logg.WithAuctionID(ctx, auctionID.String()), "auction settled without bids")
		return &Result{AuctionID: auctionID}, nil
	}

	var order *models.PaymentOrder
	endedAt := auction.EndTime
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.auctions.WithTx(tx).SetWinner(ctx, auctionID, winning.BidderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set auction winner")
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionWon,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auctionID,
			Version:       1,
			Data: payloads.AuctionWonEvent{
				AuctionID:    auctionID,
				SellerID:     auction.SellerID,
				WinnerID:     winning.BidderID,
				FinalPrice:   winning.Amount,
				EndedAt:      endedAt,
				WinningBidID: winning.ID,
			},
		}); err != nil {
			return err
		}

		order, err = s.payments.CreateForAuction(ctx, tx, payments.CreateParams{
			AuctionID: auctionID,
			BuyerID:   winning.BidderID,
			SellerID:  auction.SellerID,
			Amount:    winning.Amount,
			ExpiresAt: s.now().UTC().Add(s.deadline),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"auction_id": auctionID.String(),
		"winner_id":  winning.BidderID.String(),
		"order_code": order.OrderCode,
	})
	s.logg.Info(logCtx, "auction settled")

	winnerID := winning.BidderID
	bidID := winning.ID
	return &Result{
		AuctionID:    auctionID,
		WinnerID:     &winnerID,
		WinningBidID: &bidID,
		PaymentOrder: order,
	}, nil
}

func (s *service) alreadySettled(ctx context.Context, auction *models.Auction) (*Result, error) {
	result := &Result{AuctionID: auction.ID, WinnerID: auction.WinnerID}
	if auction.WinnerID == nil {
		return result, nil
	}
	winning, err := s.bids.FindWinning(ctx, auction.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find winning bid")
	}
	if winning != nil {
		bidID := winning.ID
		result.WinningBidID = &bidID
	}
	return result, nil
}
