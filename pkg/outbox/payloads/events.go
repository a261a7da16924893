package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
)

// BidPlacedEvent is emitted when a bid is admitted to the ledger.
type BidPlacedEvent struct {
	BidID         uuid.UUID       `json:"bid_id"`
	AuctionID     uuid.UUID       `json:"auction_id"`
	BidderID      uuid.UUID       `json:"bidder_id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	Amount        decimal.Decimal `json:"amount"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	BidCount      int             `json:"bid_count"`
}

// BidOutbidEvent tells the previously winning bidder they lost the lead.
type BidOutbidEvent struct {
	AuctionID       uuid.UUID       `json:"auction_id"`
	OutbidBidderID  uuid.UUID       `json:"outbid_bidder_id"`
	NewLeaderID     uuid.UUID       `json:"new_leader_id"`
	NewLeaderAmount decimal.Decimal `json:"new_leader_amount"`
}

// AuctionStatusChangedEvent mirrors every lifecycle transition.
type AuctionStatusChangedEvent struct {
	AuctionID  uuid.UUID            `json:"auction_id"`
	SellerID   uuid.UUID            `json:"seller_id"`
	FromStatus *enums.AuctionStatus `json:"from_status,omitempty"`
	ToStatus   enums.AuctionStatus  `json:"to_status"`
	Reason     string               `json:"reason,omitempty"`
}

// AuctionWonEvent is emitted once when an ended auction resolves a winner.
type AuctionWonEvent struct {
	AuctionID    uuid.UUID       `json:"auction_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	WinnerID     uuid.UUID       `json:"winner_id"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	EndedAt      time.Time       `json:"ended_at"`
	WinningBidID uuid.UUID       `json:"winning_bid_id"`
}

// PaymentCreatedEvent signals a new settlement obligation for the winner.
type PaymentCreatedEvent struct {
	PaymentOrderID uuid.UUID       `json:"payment_order_id"`
	OrderCode      string          `json:"order_code"`
	AuctionID      uuid.UUID       `json:"auction_id"`
	BuyerID        uuid.UUID       `json:"buyer_id"`
	SellerID       uuid.UUID       `json:"seller_id"`
	Amount         decimal.Decimal `json:"amount"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// PaymentStatusEvent carries terminal payment transitions (completed, expired, cancelled).
type PaymentStatusEvent struct {
	PaymentOrderID uuid.UUID            `json:"payment_order_id"`
	OrderCode      string               `json:"order_code"`
	AuctionID      uuid.UUID            `json:"auction_id"`
	BuyerID        uuid.UUID            `json:"buyer_id"`
	SellerID       uuid.UUID            `json:"seller_id"`
	Status         enums.PaymentStatus  `json:"status"`
	Method         *enums.PaymentMethod `json:"method,omitempty"`
	PaidAt         *time.Time           `json:"paid_at,omitempty"`
}
