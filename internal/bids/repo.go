package bids

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

// Repository persists bids and advances the auction price under contention.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, bid *models.Bid) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	FindWinning(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	FindTopByAmount(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	ClearWinning(ctx context.Context, auctionID uuid.UUID) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error)
	ListByBidder(ctx context.Context, bidderID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error)
	AdvanceAuctionPrice(ctx context.Context, auctionID uuid.UUID, expected, next decimal.Decimal) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns the gorm-backed bid repository.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Insert(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repositoryImpl) FindWinning(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND is_winning = ?", auctionID, true).
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// FindTopByAmount is a consistency check against the winning flag: the
// highest bid (earliest on ties) should always be the winning one.
func (r *repositoryImpl) FindTopByAmount(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC, created_at ASC").
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repositoryImpl) ClearWinning(ctx context.Context, auctionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("auction_id = ? AND is_winning = ?", auctionID, true).
		Update("is_winning", false).Error
}

func (r *repositoryImpl) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error) {
	return r.list(ctx, "auction_id = ?", auctionID, limit, cursor)
}

func (r *repositoryImpl) ListByBidder(ctx context.Context, bidderID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error) {
	return r.list(ctx, "bidder_id = ?", bidderID, limit, cursor)
}

func (r *repositoryImpl) list(ctx context.Context, cond string, id uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Bid, *pagination.Cursor, error) {
	limit = pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Where(cond, id).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Bid
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

// AdvanceAuctionPrice bumps the auction price and bid count only when the
// auction is still active and nobody moved the price since it was read.
func (r *repositoryImpl) AdvanceAuctionPrice(ctx context.Context, auctionID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ? AND current_price = ?", auctionID, enums.AuctionStatusActive, expected).
		Updates(map[string]any{
			"current_price": next,
			"bid_count":     gorm.Expr("bid_count + 1"),
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
