package enums

import "fmt"

// AuctionStatus tracks the lifecycle of an auction listing.
type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "draft"
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
	AuctionStatusCompleted AuctionStatus = "completed"
	AuctionStatusSuspended AuctionStatus = "suspended"
)

var validAuctionStatuses = []AuctionStatus{
	AuctionStatusDraft,
	AuctionStatusPending,
	AuctionStatusActive,
	AuctionStatusEnded,
	AuctionStatusCancelled,
	AuctionStatusCompleted,
	AuctionStatusSuspended,
}

// String implements fmt.Stringer.
func (a AuctionStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuctionStatus.
func (a AuctionStatus) IsValid() bool {
	for _, candidate := range validAuctionStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed out of the status.
func (a AuctionStatus) IsTerminal() bool {
	return a == AuctionStatusCancelled || a == AuctionStatusCompleted
}

// ParseAuctionStatus converts raw input into an AuctionStatus.
func ParseAuctionStatus(value string) (AuctionStatus, error) {
	for _, candidate := range validAuctionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auction status %q", value)
}
