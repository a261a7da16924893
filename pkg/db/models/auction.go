package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
)

// Auction represents a timed listing moving through the auction lifecycle.
type Auction struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title         string              `gorm:"column:title;not null"`
	Description   *string             `gorm:"column:description"`
	Category      *string             `gorm:"column:category;index"`
	Condition     enums.ItemCondition `gorm:"column:condition;type:item_condition;not null"`
	Status        enums.AuctionStatus `gorm:"column:status;type:auction_status;not null;default:'draft';index"`
	StartingPrice decimal.Decimal     `gorm:"column:starting_price;type:numeric(12,2);not null"`
	CurrentPrice  decimal.Decimal     `gorm:"column:current_price;type:numeric(12,2);not null"`
	MinIncrement  decimal.Decimal     `gorm:"column:min_increment;type:numeric(12,2);not null"`
	StartTime     time.Time           `gorm:"column:start_time;type:timestamptz;not null;index"`
	EndTime       time.Time           `gorm:"column:end_time;type:timestamptz;not null;index"`
	WinnerID      *uuid.UUID          `gorm:"column:winner_id;type:uuid"`
	BidCount      int                 `gorm:"column:bid_count;not null;default:0"`
	ViewCount     int64               `gorm:"column:view_count;not null;default:0"`
	Images        []AuctionImage     `gorm:"foreignKey:AuctionID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// AuctionImage stores an ordered gallery entry attached to an auction.
type AuctionImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID uuid.UUID `gorm:"column:auction_id;type:uuid;not null;index"`
	URL       string    `gorm:"column:url;type:text;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
