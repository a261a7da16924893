package auctions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

// Repository exposes persistence helpers for auctions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, auction *models.Auction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, params ListAuctionsParams) ([]models.Auction, *pagination.Cursor, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.AuctionStatus) (bool, error)
	FindDueToStart(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
	FindDueToEnd(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
	FindEndedUnsettled(ctx context.Context, limit int) ([]models.Auction, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
	SetWinner(ctx context.Context, id uuid.UUID, winnerID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an auctions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ListAuctionsParams struct {
	Status   *enums.AuctionStatus
	SellerID *uuid.UUID
	Category *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Query    string
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, auction *models.Auction) error {
	return r.db.WithContext(ctx).Create(auction).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&auction, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auction, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) List(ctx context.Context, params ListAuctionsParams) ([]models.Auction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Auction{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.MinPrice != nil {
		query = query.Where("current_price >= ?", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		query = query.Where("current_price <= ?", *params.MaxPrice)
	}
	if params.Query != "" {
		pattern := "%" + strings.ToLower(params.Query) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var auctions []models.Auction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&auctions).Error; err != nil {
		return nil, nil, err
	}

	if len(auctions) > normalized {
		next := auctions[normalized]
		auctions = auctions[:normalized]
		return auctions, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return auctions, nil, nil
}

// UpdateStatusGuarded flips the status only when the row still holds the
// expected current status. Returns false when another writer got there first.
func (r *repositoryImpl) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.AuctionStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time <= ?", enums.AuctionStatusPending, now).
		Order("start_time ASC").
		Limit(limit).
		Find(&auctions).Error
	return auctions, err
}

func (r *repositoryImpl) FindDueToEnd(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", enums.AuctionStatusActive, now).
		Order("end_time ASC").
		Limit(limit).
		Find(&auctions).Error
	return auctions, err
}

// FindEndedUnsettled returns ended auctions that never got a payment order.
// Settlement normally runs as part of the end sweep; this catches auctions
// where it failed partway and the auction was left ended without an order.
func (r *repositoryImpl) FindEndedUnsettled(ctx context.Context, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.AuctionStatusEnded).
		Where("NOT EXISTS (SELECT 1 FROM payment_orders WHERE payment_orders.auction_id = auctions.id)").
		Order("end_time ASC").
		Limit(limit).
		Find(&auctions).Error
	return auctions, err
}

func (r *repositoryImpl) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

func (r *repositoryImpl) SetWinner(ctx context.Context, id uuid.UUID, winnerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ?", id).
		UpdateColumn("winner_id", winnerID).Error
}

// Delete removes the row. Bids, images and history rows referencing the
// auction go with it through the foreign keys' ON DELETE CASCADE.
func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Auction{}).Error
}
