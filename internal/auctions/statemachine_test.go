package auctions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    enums.AuctionStatus
		to      enums.AuctionStatus
		allowed bool
	}{
		{"draft to pending", enums.AuctionStatusDraft, enums.AuctionStatusPending, true},
		{"draft to cancelled", enums.AuctionStatusDraft, enums.AuctionStatusCancelled, true},
		{"draft to active skips pending", enums.AuctionStatusDraft, enums.AuctionStatusActive, false},
		{"pending to active", enums.AuctionStatusPending, enums.AuctionStatusActive, true},
		{"pending to suspended", enums.AuctionStatusPending, enums.AuctionStatusSuspended, true},
		{"suspended back to pending", enums.AuctionStatusSuspended, enums.AuctionStatusPending, true},
		{"active to ended", enums.AuctionStatusActive, enums.AuctionStatusEnded, true},
		{"active to suspended", enums.AuctionStatusActive, enums.AuctionStatusSuspended, true},
		{"suspended to active", enums.AuctionStatusSuspended, enums.AuctionStatusActive, true},
		{"suspended to ended", enums.AuctionStatusSuspended, enums.AuctionStatusEnded, false},
		{"ended to completed", enums.AuctionStatusEnded, enums.AuctionStatusCompleted, true},
		{"ended back to active", enums.AuctionStatusEnded, enums.AuctionStatusActive, false},
		{"completed is terminal", enums.AuctionStatusCompleted, enums.AuctionStatusEnded, false},
		{"cancelled is terminal", enums.AuctionStatusCancelled, enums.AuctionStatusPending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestValidateTransition(t *testing.T) {
	t.Run("allowed transition returns nil", func(t *testing.T) {
		require.NoError(t, ValidateTransition(enums.AuctionStatusPending, enums.AuctionStatusActive))
	})

	t.Run("blocked transition carries both statuses", func(t *testing.T) {
		err := ValidateTransition(enums.AuctionStatusActive, enums.AuctionStatusCompleted)
		require.Error(t, err)

		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeInvalidTransition, typed.Code())

		details, ok := typed.Details().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, enums.AuctionStatusActive, details["from"])
		assert.Equal(t, enums.AuctionStatusCompleted, details["to"])
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		err := ValidateTransition(enums.AuctionStatus("archived"), enums.AuctionStatusActive)
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}
