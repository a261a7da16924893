package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAuction      OutboxAggregateType = "auction"
	AggregateBid          OutboxAggregateType = "bid"
	AggregatePaymentOrder OutboxAggregateType = "payment_order"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAuction,
	AggregateBid,
	AggregatePaymentOrder,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBidPlaced            OutboxEventType = "bid_placed"
	EventBidAccepted          OutboxEventType = "bid_accepted"
	EventBidOutbid            OutboxEventType = "bid_outbid"
	EventAuctionStatusChanged OutboxEventType = "auction_status_changed"
	EventAuctionWon           OutboxEventType = "auction_won"
	EventPaymentCreated       OutboxEventType = "payment_created"
	EventPaymentCompleted     OutboxEventType = "payment_completed"
	EventPaymentExpired       OutboxEventType = "payment_expired"
	EventPaymentCancelled     OutboxEventType = "payment_cancelled"
	EventPaymentFailed        OutboxEventType = "payment_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBidPlaced,
	EventBidAccepted,
	EventBidOutbid,
	EventAuctionStatusChanged,
	EventAuctionWon,
	EventPaymentCreated,
	EventPaymentCompleted,
	EventPaymentExpired,
	EventPaymentCancelled,
	EventPaymentFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
