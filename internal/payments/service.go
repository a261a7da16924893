package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/payloads"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

const orderCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Service manages payment orders from creation through settlement.
type Service interface {
	CreateForAuction(ctx context.Context, tx *gorm.DB, params CreateParams) (*models.PaymentOrder, error)
	Get(ctx context.Context, orderID uuid.UUID, actor auctions.Actor) (*models.PaymentOrder, error)
	GetByCode(ctx context.Context, code string, actor auctions.Actor) (*models.PaymentOrder, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor string) (*ListResult, error)
	Complete(ctx context.Context, orderID uuid.UUID, actor auctions.Actor, method enums.PaymentMethod) (*models.PaymentOrder, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor auctions.Actor) (*models.PaymentOrder, error)
	Expire(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error)
	HandleStatusUpdate(ctx context.Context, orderCode string, status enums.PaymentStatus, method *enums.PaymentMethod) (*models.PaymentOrder, error)
	ArtifactFor(order *models.PaymentOrder, method enums.PaymentMethod) (*Artifact, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auctionTransitioner interface {
	Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *auctions.Actor, reason string) (*models.Auction, error)
}

// ServiceParams wires the payment service dependencies.
type ServiceParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Repo      Repository
	Outbox    outboxEmitter
	Auctions  auctionTransitioner
	Artifacts ArtifactConfig
}

type service struct {
	logg      *logger.Logger
	db        txRunner
	repo      Repository
	outbox    outboxEmitter
	auctions  auctionTransitioner
	artifacts ArtifactConfig
	now       func() time.Time
}

// NewService wires payment dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	if params.Auctions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auction service required")
	}
	return &service{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repo,
		outbox:    params.Outbox,
		auctions:  params.Auctions,
		artifacts: params.Artifacts,
		now:       time.Now,
	}, nil
}

// CreateParams describes the settlement obligation for a won auction.
type CreateParams struct {
	AuctionID uuid.UUID
	BuyerID   uuid.UUID
	SellerID  uuid.UUID
	Amount    decimal.Decimal
	ExpiresAt time.Time
}

// ListResult wraps a page of payment orders and the cursor for the next page.
type ListResult struct {
	Items  []models.PaymentOrder `json:"items"`
	Cursor string                `json:"cursor"`
}

// CreateForAuction opens the pending payment order inside the caller's
// transaction. A second call for the same auction returns the existing order.
func (s *service) CreateForAuction(ctx context.Context, tx *gorm.DB, params CreateParams) (*models.PaymentOrder, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if params.AuctionID == uuid.Nil || params.BuyerID == uuid.Nil || params.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction, buyer and seller ids required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	txRepo := s.repo.WithTx(tx)
	existing, err := txRepo.FindByAuction(ctx, params.AuctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment order")
	}
	if existing != nil {
		return existing, nil
	}

	code, err := newOrderCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order code")
	}

	order := &models.PaymentOrder{
		OrderCode: code,
		AuctionID: params.AuctionID,
		BuyerID:   params.BuyerID,
		SellerID:  params.SellerID,
		Amount:    params.Amount,
		Status:    enums.PaymentStatusPending,
		ExpiresAt: params.ExpiresAt.UTC(),
	}
	if err := txRepo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment order")
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCreated,
		AggregateType: enums.AggregatePaymentOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.PaymentCreatedEvent{
			PaymentOrderID: order.ID,
			OrderCode:      order.OrderCode,
			AuctionID:      order.AuctionID,
			BuyerID:        order.BuyerID,
			SellerID:       order.SellerID,
			Amount:         order.Amount,
			ExpiresAt:      order.ExpiresAt,
		},
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor auctions.Actor) (*models.PaymentOrder, error) {
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireParty(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) GetByCode(ctx context.Context, code string, actor auctions.Actor) (*models.PaymentOrder, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code required")
	}
	order, err := s.repo.FindByOrderCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
	}
	if err := requireParty(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor string) (*ListResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	var parsed *pagination.Cursor
	if cursor != "" {
		c, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		parsed = c
	}
	rows, next, err := s.repo.ListByBuyer(ctx, buyerID, limit, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment orders")
	}
	encoded := ""
	if next != nil {
		encoded = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: encoded}, nil
}

// Complete marks the order paid and completes the auction. Repeating the call
// on an already completed order is a no-op.
func (s *service) Complete(ctx context.Context, orderID uuid.UUID, actor auctions.Actor, method enums.PaymentMethod) (*models.PaymentOrder, error) {
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}

	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.ID && actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can complete this payment")
	}
	if order.Status == enums.PaymentStatusCompleted {
		return order, nil
	}
	if order.Status != enums.PaymentStatusPending {
		return nil, terminalStatusErr(order.Status)
	}
	if order.ExpiresAt.Before(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment deadline has passed").
			WithDetails(map[string]any{"expires_at": order.ExpiresAt})
	}

	paidAt := s.now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusGuarded(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusCompleted, map[string]any{
			"method":  method,
			"paid_at": paidAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment order status changed concurrently")
		}
		return s.emitStatus(ctx, tx, order, enums.PaymentStatusCompleted, enums.EventPaymentCompleted, &method, &paidAt)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.auctions.Transition(ctx, order.AuctionID, enums.AuctionStatusCompleted, &actor, "payment received"); err != nil {
		// The payment is final; the sweep reconciles the auction status.
		s.logg.Warn(s.logg.WithAuctionID(ctx, order.AuctionID.String()), "auction completion after payment failed")
	}

	order.Status = enums.PaymentStatusCompleted
	order.Method = &method
	order.PaidAt = &paidAt
	s.logg.Info(s.logg.WithField(ctx, "order_code", order.OrderCode), "payment completed")
	return order, nil
}

// Cancel voids a pending order at the buyer's or an admin's request.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor auctions.Actor) (*models.PaymentOrder, error) {
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.ID && actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can cancel this payment")
	}
	if order.Status == enums.PaymentStatusCancelled {
		return order, nil
	}
	if order.Status != enums.PaymentStatusPending {
		return nil, terminalStatusErr(order.Status)
	}

	cancelledAt := s.now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusGuarded(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusCancelled, map[string]any{
			"cancelled_at": cancelledAt,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment order status changed concurrently")
		}
		return s.emitStatus(ctx, tx, order, enums.PaymentStatusCancelled, enums.EventPaymentCancelled, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.PaymentStatusCancelled
	order.CancelledAt = &cancelledAt
	return order, nil
}

// Expire moves an overdue pending order to expired. Used by the deadline sweep.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error) {
	order, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.PaymentStatusExpired {
		return order, nil
	}
	if order.Status != enums.PaymentStatusPending {
		return nil, terminalStatusErr(order.Status)
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusGuarded(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusExpired, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire payment order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment order status changed concurrently")
		}
		return s.emitStatus(ctx, tx, order, enums.PaymentStatusExpired, enums.EventPaymentExpired, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.PaymentStatusExpired
	return order, nil
}

// HandleStatusUpdate applies a gateway callback by order code. The gateway
// acts on the buyer's behalf; a callback repeating the order's current
// status is a no-op, any other status on a settled order is a conflict.
func (s *service) HandleStatusUpdate(ctx context.Context, orderCode string, status enums.PaymentStatus, method *enums.PaymentMethod) (*models.PaymentOrder, error) {
	if orderCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code required")
	}
	order, err := s.repo.FindByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
	}
	if order.Status == status {
		return order, nil
	}

	buyer := auctions.Actor{ID: order.BuyerID}
	switch status {
	case enums.PaymentStatusCompleted:
		confirmed := enums.PaymentMethodGateway
		if method != nil {
			confirmed = *method
		}
		return s.Complete(ctx, order.ID, buyer, confirmed)
	case enums.PaymentStatusCancelled:
		return s.Cancel(ctx, order.ID, buyer)
	case enums.PaymentStatusExpired:
		return s.Expire(ctx, order.ID)
	case enums.PaymentStatusFailed:
		return s.fail(ctx, order)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported callback status %q", status))
	}
}

// ArtifactFor derives the payment instructions for an order.
func (s *service) ArtifactFor(order *models.PaymentOrder, method enums.PaymentMethod) (*Artifact, error) {
	return CreateArtifact(s.artifacts, order, method)
}

func (s *service) fail(ctx context.Context, order *models.PaymentOrder) (*models.PaymentOrder, error) {
	if order.Status != enums.PaymentStatusPending {
		return nil, terminalStatusErr(order.Status)
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusGuarded(ctx, order.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment order status changed concurrently")
		}
		return s.emitStatus(ctx, tx, order, enums.PaymentStatusFailed, enums.EventPaymentFailed, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	order.Status = enums.PaymentStatusFailed
	return order, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, order *models.PaymentOrder, status enums.PaymentStatus, eventType enums.OutboxEventType, method *enums.PaymentMethod, paidAt *time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePaymentOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.PaymentStatusEvent{
			PaymentOrderID: order.ID,
			OrderCode:      order.OrderCode,
			AuctionID:      order.AuctionID,
			BuyerID:        order.BuyerID,
			SellerID:       order.SellerID,
			Status:         status,
			Method:         method,
			PaidAt:         paidAt,
		},
	})
}

func (s *service) fetch(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find payment order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
	}
	return order, nil
}

func requireParty(order *models.PaymentOrder, actor auctions.Actor) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if order.BuyerID != actor.ID && order.SellerID != actor.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "payment order is not visible to this user")
	}
	return nil
}

func terminalStatusErr(status enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "payment order is already settled").
		WithDetails(map[string]any{"status": status})
}

func newOrderCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = orderCodeAlphabet[int(b)%len(orderCodeAlphabet)]
	}
	return "PAY-" + string(buf), nil
}
