package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an immutable ledger entry recording an accepted offer on an auction.
type Bid struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID uuid.UUID       `gorm:"column:auction_id;type:uuid;not null;index:idx_bids_auction_created"`
	BidderID  uuid.UUID       `gorm:"column:bidder_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	IsWinning bool            `gorm:"column:is_winning;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_bids_auction_created"`
}
