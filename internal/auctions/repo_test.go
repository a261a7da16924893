package auctions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
)

const auctionsTableDDL = `
CREATE TABLE auctions (
	id TEXT PRIMARY KEY,
	seller_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	category TEXT,
	condition TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	starting_price NUMERIC NOT NULL,
	current_price NUMERIC NOT NULL,
	min_increment NUMERIC NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	winner_id TEXT,
	bid_count INTEGER NOT NULL DEFAULT 0,
	view_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
)`

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(auctionsTableDDL).Error)
	return NewRepository(conn)
}

func seedAuction(t *testing.T, repo Repository, title, description string, createdAt time.Time) models.Auction {
	t.Helper()
	auction := models.Auction{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Title:         title,
		Description:   &description,
		Condition:     enums.ItemConditionGood,
		Status:        enums.AuctionStatusActive,
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		MinIncrement:  decimal.NewFromInt(5),
		StartTime:     createdAt,
		EndTime:       createdAt.Add(24 * time.Hour),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), &auction))
	return auction
}

func TestRepositoryListKeywordIsCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	radio := seedAuction(t, repo, "Vintage MARCONI Radio", "tube receiver from 1948", base)
	seedAuction(t, repo, "Walnut desk", "mid-century writing desk", base.Add(time.Minute))

	t.Run("lowercase query matches uppercase title", func(t *testing.T) {
		rows, _, err := repo.List(context.Background(), ListAuctionsParams{Query: "marconi", Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, radio.ID, rows[0].ID)
	})

	t.Run("mixed-case query matches description", func(t *testing.T) {
		rows, _, err := repo.List(context.Background(), ListAuctionsParams{Query: "TuBe ReCeIvEr", Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, radio.ID, rows[0].ID)
	})

	t.Run("no match returns empty page", func(t *testing.T) {
		rows, next, err := repo.List(context.Background(), ListAuctionsParams{Query: "gramophone", Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Nil(t, next)
	})
}
