package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

// Repository persists payment orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)
	FindByOrderCode(ctx context.Context, code string) (*models.PaymentOrder, error)
	FindByAuction(ctx context.Context, auctionID uuid.UUID) (*models.PaymentOrder, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentOrder, *pagination.Cursor, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.PaymentOrder, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns the gorm-backed payment order repository.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, order *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repositoryImpl) FindByOrderCode(ctx context.Context, code string) (*models.PaymentOrder, error) {
	return r.findOne(ctx, "order_code = ?", code)
}

func (r *repositoryImpl) FindByAuction(ctx context.Context, auctionID uuid.UUID) (*models.PaymentOrder, error) {
	return r.findOne(ctx, "auction_id = ?", auctionID)
}

func (r *repositoryImpl) findOne(ctx context.Context, cond string, value any) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.WithContext(ctx).Where(cond, value).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repositoryImpl) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentOrder, *pagination.Cursor, error) {
	limit = pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PaymentOrder
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

// UpdateStatusGuarded applies the status change plus extra column updates only
// when the order is still in the expected status.
func (r *repositoryImpl) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, updates map[string]any) (bool, error) {
	merged := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range updates {
		merged[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(merged)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.PaymentOrder, error) {
	var rows []models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.PaymentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
