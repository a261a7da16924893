package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

// Entry describes a single lifecycle transition to record.
type Entry struct {
	AuctionID  uuid.UUID
	FromStatus *enums.AuctionStatus
	ToStatus   enums.AuctionStatus
	ActorID    *uuid.UUID
	Reason     string
}

// Recorder appends auction status transitions to the audit trail.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuctionStatusHistory, *pagination.Cursor, error)
}

type recorderImpl struct {
	db *gorm.DB
}

// NewRecorder returns a Recorder bound to the provided database.
func NewRecorder(db *gorm.DB) Recorder {
	return &recorderImpl{db: db}
}

func (r *recorderImpl) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	row := models.AuctionStatusHistory{
		AuctionID:  entry.AuctionID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		ActorID:    entry.ActorID,
	}
	if entry.Reason != "" {
		reason := entry.Reason
		row.Reason = &reason
	}
	return tx.WithContext(ctx).Create(&row).Error
}

func (r *recorderImpl) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuctionStatusHistory, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)
	query := r.db.WithContext(ctx).
		Model(&models.AuctionStatusHistory{}).
		Where("auction_id = ?", auctionID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.AuctionStatusHistory
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}
