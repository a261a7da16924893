package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
)

// PaymentOrder tracks the settlement obligation created when an auction is won.
type PaymentOrder struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderCode   string               `gorm:"column:order_code;type:text;not null;uniqueIndex"`
	AuctionID   uuid.UUID            `gorm:"column:auction_id;type:uuid;not null;uniqueIndex"`
	BuyerID     uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID    uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	Amount      decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.PaymentStatus  `gorm:"column:status;type:payment_status;not null;default:'pending';index"`
	Method      *enums.PaymentMethod `gorm:"column:method;type:payment_method"`
	ExpiresAt   time.Time            `gorm:"column:expires_at;type:timestamptz;not null;index"`
	PaidAt      *time.Time           `gorm:"column:paid_at;type:timestamptz"`
	CancelledAt *time.Time           `gorm:"column:cancelled_at;type:timestamptz"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
