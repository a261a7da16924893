package auctions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/internal/history"
	dbpkg "github.com/hoangtran/auctionhub-backend/pkg/db"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox/payloads"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

// Service defines auction lifecycle and catalog operations.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Auction, error)
	Update(ctx context.Context, params UpdateParams) (*models.Auction, error)
	Submit(ctx context.Context, auctionID uuid.UUID, actor Actor) (*models.Auction, error)
	Get(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Cancel(ctx context.Context, auctionID uuid.UUID, actor Actor, reason string) (*models.Auction, error)
	Suspend(ctx context.Context, auctionID uuid.UUID, actor Actor, reason string) (*models.Auction, error)
	Resume(ctx context.Context, auctionID uuid.UUID, actor Actor) (*models.Auction, error)
	HardDelete(ctx context.Context, auctionID uuid.UUID, actor Actor) error
	Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *Actor, reason string) (*models.Auction, error)
	History(ctx context.Context, auctionID uuid.UUID, limit int, cursor string) (*HistoryResult, error)
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wire the auction service dependencies.
type ServiceParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Repo    Repository
	History history.Recorder
	Outbox  outboxEmitter
}

type service struct {
	logg    *logger.Logger
	db      txRunner
	repo    Repository
	history history.Recorder
	outbox  outboxEmitter
	now     func() time.Time
}

// NewService wires auction dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auctions repository required")
	}
	if params.History == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history recorder required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{
		logg:    params.Logger,
		db:      params.DB,
		repo:    params.Repo,
		history: params.History,
		outbox:  params.Outbox,
		now:     time.Now,
	}, nil
}

// CreateParams carries the fields needed to open a draft listing.
type CreateParams struct {
	SellerID      uuid.UUID
	Title         string
	Description   string
	Category      string
	Condition     enums.ItemCondition
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
	ImageURLs     []string
}

// UpdateParams carries updatable draft fields; nil pointers are left unchanged.
type UpdateParams struct {
	AuctionID     uuid.UUID
	Actor         Actor
	Title         *string
	Description   *string
	Category      *string
	Condition     *enums.ItemCondition
	StartingPrice *decimal.Decimal
	MinIncrement  *decimal.Decimal
	StartTime     *time.Time
	EndTime       *time.Time
}

// ListParams configures catalog listing and search.
type ListParams struct {
	Status   *enums.AuctionStatus
	SellerID *uuid.UUID
	Category *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Query    string
	Limit    int
	Cursor   string
}

// ListResult wraps returned auctions and the cursor for the next page.
type ListResult struct {
	Items  []models.Auction `json:"items"`
	Cursor string           `json:"cursor"`
}

// HistoryResult wraps the status audit trail page.
type HistoryResult struct {
	Items  []models.AuctionStatusHistory `json:"items"`
	Cursor string                        `json:"cursor"`
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Auction, error) {
	if params.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !params.Condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid condition %q", params.Condition))
	}
	if !params.StartingPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "starting price must be positive")
	}
	if params.MinIncrement.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum increment must not be negative")
	}
	if !params.EndTime.After(params.StartTime) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
	}
	if params.EndTime.Before(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be in the future")
	}

	auction := &models.Auction{
		SellerID:      params.SellerID,
		Title:         strings.TrimSpace(params.Title),
		Condition:     params.Condition,
		Status:        enums.AuctionStatusDraft,
		StartingPrice: params.StartingPrice,
		CurrentPrice:  params.StartingPrice,
		MinIncrement:  params.MinIncrement,
		StartTime:     params.StartTime.UTC(),
		EndTime:       params.EndTime.UTC(),
	}
	if desc := strings.TrimSpace(params.Description); desc != "" {
		auction.Description = &desc
	}
	if cat := strings.TrimSpace(params.Category); cat != "" {
		auction.Category = &cat
	}
	for i, url := range params.ImageURLs {
		auction.Images = append(auction.Images, models.AuctionImage{
			URL:       url,
			Position:  i,
			IsPrimary: i == 0,
		})
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, auction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction")
		}
		return s.history.Record(ctx, tx, history.Entry{
			AuctionID: auction.ID,
			ToStatus:  enums.AuctionStatusDraft,
			ActorID:   &params.SellerID,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithAuctionID(ctx, auction.ID.String())
	s.logg.Info(logCtx, "auction draft created")
	return auction, nil
}

func (s *service) Update(ctx context.Context, params UpdateParams) (*models.Auction, error) {
	auction, err := s.fetch(ctx, params.AuctionID)
	if err != nil {
		return nil, err
	}
	if err := requireSellerOrAdmin(auction, params.Actor); err != nil {
		return nil, err
	}
	if auction.Status != enums.AuctionStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "only draft auctions can be edited").
			WithDetails(map[string]any{"status": auction.Status})
	}

	updates := map[string]any{}
	if params.Title != nil {
		if strings.TrimSpace(*params.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
		}
		updates["title"] = strings.TrimSpace(*params.Title)
	}
	if params.Description != nil {
		updates["description"] = strings.TrimSpace(*params.Description)
	}
	if params.Category != nil {
		updates["category"] = strings.TrimSpace(*params.Category)
	}
	if params.Condition != nil {
		if !params.Condition.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid condition %q", *params.Condition))
		}
		updates["condition"] = *params.Condition
	}
	if params.StartingPrice != nil {
		if !params.StartingPrice.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "starting price must be positive")
		}
		updates["starting_price"] = *params.StartingPrice
		updates["current_price"] = *params.StartingPrice
	}
	if params.MinIncrement != nil {
		if params.MinIncrement.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum increment must not be negative")
		}
		updates["min_increment"] = *params.MinIncrement
	}
	startTime := auction.StartTime
	endTime := auction.EndTime
	if params.StartTime != nil {
		startTime = params.StartTime.UTC()
		updates["start_time"] = startTime
	}
	if params.EndTime != nil {
		endTime = params.EndTime.UTC()
		updates["end_time"] = endTime
	}
	if !endTime.After(startTime) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
	}
	if len(updates) == 0 {
		return auction, nil
	}

	if err := s.repo.Update(ctx, auction.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auction")
	}
	return s.fetch(ctx, params.AuctionID)
}

func (s *service) Submit(ctx context.Context, auctionID uuid.UUID, actor Actor) (*models.Auction, error) {
	auction, err := s.fetch(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := requireSellerOrAdmin(auction, actor); err != nil {
		return nil, err
	}
	if auction.EndTime.Before(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be in the future")
	}
	return s.Transition(ctx, auctionID, enums.AuctionStatusPending, &actor, "submitted for listing")
}

// Get returns the auction, applying overdue lifecycle transitions first so
// readers never observe a pending auction past its start or an active auction
// past its end.
func (s *service) Get(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	auction, err := s.fetch(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	auction, err = s.applyOverdueTransitions(ctx, auction)
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementViewCount(ctx, auction.ID); err != nil {
		s.logg.Warn(s.logg.WithAuctionID(ctx, auction.ID.String()), "view count increment failed")
	} else {
		auction.ViewCount++
	}
	return auction, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *params.Status))
	}

	if params.MinPrice != nil && params.MaxPrice != nil && params.MaxPrice.LessThan(*params.MinPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max price must not be below min price")
	}

	query := ListAuctionsParams{
		Status:   params.Status,
		SellerID: params.SellerID,
		Category: params.Category,
		MinPrice: params.MinPrice,
		MaxPrice: params.MaxPrice,
		Query:    strings.TrimSpace(params.Query),
		Limit:    params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list auctions")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Cancel(ctx context.Context, auctionID uuid.UUID, actor Actor, reason string) (*models.Auction, error) {
	auction, err := s.fetch(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := requireSellerOrAdmin(auction, actor); err != nil {
		return nil, err
	}
	return s.Transition(ctx, auctionID, enums.AuctionStatusCancelled, &actor, reason)
}

func (s *service) Suspend(ctx context.Context, auctionID uuid.UUID, actor Actor, reason string) (*models.Auction, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can suspend auctions")
	}
	return s.Transition(ctx, auctionID, enums.AuctionStatusSuspended, &actor, reason)
}

// Resume lifts a suspension. The auction returns to the state it would be
// in had it never been suspended: pending before its start time, active after.
func (s *service) Resume(ctx context.Context, auctionID uuid.UUID, actor Actor) (*models.Auction, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can resume auctions")
	}
	auction, err := s.fetch(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	target := enums.AuctionStatusActive
	if auction.StartTime.After(s.now().UTC()) {
		target = enums.AuctionStatusPending
	}
	return s.Transition(ctx, auctionID, target, &actor, "suspension lifted")
}

// HardDelete permanently removes a listing along with its bids, images and
// history. Sellers withdraw listings through Cancel instead; this is the
// admin cleanup path for listings that must not remain on record.
func (s *service) HardDelete(ctx context.Context, auctionID uuid.UUID, actor Actor) error {
	if actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can delete auctions")
	}
	if _, err := s.fetch(ctx, auctionID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, auctionID); err != nil {
		if dbpkg.IsForeignKeyViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "auction has payment records and cannot be deleted")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete auction")
	}
	s.logg.Info(s.logg.WithAuctionID(ctx, auctionID.String()), "auction deleted")
	return nil
}

// Transition moves the auction to the target status with a guarded update,
// records the audit trail entry and queues the status-changed event, all in
// one transaction.
func (s *service) Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *Actor, reason string) (*models.Auction, error) {
	auction, err := s.fetch(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	from := auction.Status
	if from == to {
		return auction, nil
	}
	if err := ValidateTransition(from, to); err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		moved, err := txRepo.UpdateStatusGuarded(ctx, auctionID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition auction")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "auction status changed concurrently").
				WithDetails(map[string]any{"expected": from, "target": to})
		}

		var actorID *uuid.UUID
		var actorRef *outbox.ActorRef
		if actor != nil {
			id := actor.ID
			actorID = &id
			actorRef = &outbox.ActorRef{UserID: actor.ID, Role: actor.Role.String()}
		}

		fromCopy := from
		if err := s.history.Record(ctx, tx, history.Entry{
			AuctionID:  auctionID,
			FromStatus: &fromCopy,
			ToStatus:   to,
			ActorID:    actorID,
			Reason:     reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record status history")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionStatusChanged,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auctionID,
			Actor:         actorRef,
			Version:       1,
			Data: payloads.AuctionStatusChangedEvent{
				AuctionID:  auctionID,
				SellerID:   auction.SellerID,
				FromStatus: &fromCopy,
				ToStatus:   to,
				Reason:     reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	auction.Status = to
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"auction_id": auctionID.String(),
		"from":       from.String(),
		"to":         to.String(),
	})
	s.logg.Info(logCtx, "auction status changed")
	return auction, nil
}

func (s *service) History(ctx context.Context, auctionID uuid.UUID, limit int, cursor string) (*HistoryResult, error) {
	if _, err := s.fetch(ctx, auctionID); err != nil {
		return nil, err
	}
	var parsed *pagination.Cursor
	if cursor != "" {
		c, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		parsed = c
	}
	rows, next, err := s.history.ListByAuction(ctx, auctionID, limit, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status history")
	}
	encoded := ""
	if next != nil {
		encoded = pagination.EncodeCursor(*next)
	}
	return &HistoryResult{Items: rows, Cursor: encoded}, nil
}

// applyOverdueTransitions moves pending auctions past their start time to
// active and active auctions past their end time to ended. The sweeps do the
// same on a cadence; this covers reads between cycles.
func (s *service) applyOverdueTransitions(ctx context.Context, auction *models.Auction) (*models.Auction, error) {
	now := s.now().UTC()

	if auction.Status == enums.AuctionStatusPending && !auction.StartTime.After(now) {
		updated, err := s.Transition(ctx, auction.ID, enums.AuctionStatusActive, nil, "start time reached")
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				return s.fetch(ctx, auction.ID)
			}
			return nil, err
		}
		auction = updated
	}

	if auction.Status == enums.AuctionStatusActive && !auction.EndTime.After(now) {
		updated, err := s.Transition(ctx, auction.ID, enums.AuctionStatusEnded, nil, "end time reached")
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				return s.fetch(ctx, auction.ID)
			}
			return nil, err
		}
		auction = updated
	}

	return auction, nil
}

func (s *service) fetch(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	auction, err := s.repo.FindByID(ctx, auctionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find auction")
	}
	if auction == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
	}
	return auction, nil
}

func requireSellerOrAdmin(auction *models.Auction, actor Actor) error {
	if actor.Role == enums.UserRoleAdmin {
		return nil
	}
	if auction.SellerID != actor.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can manage this auction")
	}
	return nil
}
