package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
)

// AuctionStatusHistory is an append-only audit trail of lifecycle transitions.
type AuctionStatusHistory struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID  uuid.UUID            `gorm:"column:auction_id;type:uuid;not null;index"`
	FromStatus *enums.AuctionStatus `gorm:"column:from_status;type:auction_status"`
	ToStatus   enums.AuctionStatus  `gorm:"column:to_status;type:auction_status;not null"`
	ActorID    *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	Reason     *string              `gorm:"column:reason;type:text"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}
