package auctions

import (
	"fmt"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
)

// allowedTransitions encodes the auction lifecycle. Terminal statuses
// (cancelled, completed) have no outgoing edges.
var allowedTransitions = map[enums.AuctionStatus][]enums.AuctionStatus{
	enums.AuctionStatusDraft:     {enums.AuctionStatusPending, enums.AuctionStatusCancelled},
	enums.AuctionStatusPending:   {enums.AuctionStatusActive, enums.AuctionStatusCancelled, enums.AuctionStatusSuspended},
	enums.AuctionStatusActive:    {enums.AuctionStatusEnded, enums.AuctionStatusCancelled, enums.AuctionStatusSuspended},
	enums.AuctionStatusSuspended: {enums.AuctionStatusActive, enums.AuctionStatusPending, enums.AuctionStatusCancelled},
	enums.AuctionStatusEnded:     {enums.AuctionStatusCompleted},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to enums.AuctionStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error when the requested transition is
// not part of the lifecycle.
func ValidateTransition(from, to enums.AuctionStatus) error {
	if !from.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", from))
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", to))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move auction from %s to %s", from, to)).
			WithDetails(map[string]any{"from": from, "to": to})
	}
	return nil
}
