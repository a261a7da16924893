package auctions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/internal/history"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
	"github.com/hoangtran/auctionhub-backend/pkg/outbox"
	"github.com/hoangtran/auctionhub-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeAuctionRepo struct {
	auctions map[uuid.UUID]*models.Auction

	createErr         error
	deleteErr         error
	guardedResults    []bool
	guardedCalls      [][2]enums.AuctionStatus
	onGuardedConflict func()
	updates           map[string]any
	viewIncrements    int
}

func newFakeAuctionRepo(auctions ...*models.Auction) *fakeAuctionRepo {
	repo := &fakeAuctionRepo{auctions: map[uuid.UUID]*models.Auction{}}
	for _, a := range auctions {
		repo.auctions[a.ID] = a
	}
	return repo
}

func (f *fakeAuctionRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeAuctionRepo) Create(ctx context.Context, auction *models.Auction) error {
	if f.createErr != nil {
		return f.createErr
	}
	if auction.ID == uuid.Nil {
		auction.ID = uuid.New()
	}
	f.auctions[auction.ID] = auction
	return nil
}

func (f *fakeAuctionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, ok := f.auctions[id]
	if !ok {
		return nil, nil
	}
	copied := *auction
	return &copied, nil
}

func (f *fakeAuctionRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	f.updates = updates
	if title, ok := updates["title"].(string); ok {
		f.auctions[id].Title = title
	}
	return nil
}

func (f *fakeAuctionRepo) List(ctx context.Context, params ListAuctionsParams) ([]models.Auction, *pagination.Cursor, error) {
	var out []models.Auction
	for _, a := range f.auctions {
		if params.Status != nil && a.Status != *params.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil, nil
}

func (f *fakeAuctionRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.AuctionStatus) (bool, error) {
	f.guardedCalls = append(f.guardedCalls, [2]enums.AuctionStatus{from, to})
	result := true
	if len(f.guardedResults) > 0 {
		result = f.guardedResults[0]
		f.guardedResults = f.guardedResults[1:]
	}
	if result {
		f.auctions[id].Status = to
	} else if f.onGuardedConflict != nil {
		f.onGuardedConflict()
	}
	return result, nil
}

func (f *fakeAuctionRepo) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) FindDueToEnd(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) FindEndedUnsettled(ctx context.Context, limit int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	f.viewIncrements++
	return nil
}

func (f *fakeAuctionRepo) SetWinner(ctx context.Context, id uuid.UUID, winnerID uuid.UUID) error {
	f.auctions[id].WinnerID = &winnerID
	return nil
}

func (f *fakeAuctionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.auctions, id)
	return nil
}

type fakeRecorder struct {
	entries []history.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, tx *gorm.DB, entry history.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRecorder) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.AuctionStatusHistory, *pagination.Cursor, error) {
	return nil, nil, nil
}

type fakeEmitter struct {
	emitted []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.emitted = append(f.emitted, event)
	return nil
}

func newTestService(t *testing.T, repo *fakeAuctionRepo, now time.Time) (*service, *fakeRecorder, *fakeEmitter) {
	t.Helper()
	recorder := &fakeRecorder{}
	emitter := &fakeEmitter{}
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "auctions-test", Level: zerolog.ErrorLevel, Output: io.Discard}),
		DB:      fakeTxRunner{},
		Repo:    repo,
		History: recorder,
		Outbox:  emitter,
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	return impl, recorder, emitter
}

func baseAuction(status enums.AuctionStatus, start, end time.Time) *models.Auction {
	return &models.Auction{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Title:         "Vintage camera",
		Condition:     enums.ItemConditionGood,
		Status:        status,
		StartingPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(100),
		MinIncrement:  decimal.NewFromInt(5),
		StartTime:     start,
		EndTime:       end,
	}
}

func TestServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sellerID := uuid.New()

	valid := CreateParams{
		SellerID:      sellerID,
		Title:         "Vintage camera",
		Description:   "Working Leica M3",
		Condition:     enums.ItemConditionGood,
		StartingPrice: decimal.NewFromInt(100),
		MinIncrement:  decimal.NewFromInt(5),
		StartTime:     now.Add(time.Hour),
		EndTime:       now.Add(48 * time.Hour),
		ImageURLs:     []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
	}

	t.Run("creates draft with history entry", func(t *testing.T) {
		repo := newFakeAuctionRepo()
		svc, recorder, _ := newTestService(t, repo, now)

		auction, err := svc.Create(context.Background(), valid)
		require.NoError(t, err)

		assert.Equal(t, enums.AuctionStatusDraft, auction.Status)
		assert.True(t, auction.CurrentPrice.Equal(valid.StartingPrice))
		require.Len(t, auction.Images, 2)
		assert.True(t, auction.Images[0].IsPrimary)
		assert.False(t, auction.Images[1].IsPrimary)

		require.Len(t, recorder.entries, 1)
		assert.Nil(t, recorder.entries[0].FromStatus)
		assert.Equal(t, enums.AuctionStatusDraft, recorder.entries[0].ToStatus)
	})

	t.Run("accepts a zero increment", func(t *testing.T) {
		repo := newFakeAuctionRepo()
		svc, _, _ := newTestService(t, repo, now)

		params := valid
		params.MinIncrement = decimal.Zero

		auction, err := svc.Create(context.Background(), params)
		require.NoError(t, err)
		assert.True(t, auction.MinIncrement.IsZero())
	})

	t.Run("rejects invalid params", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(p *CreateParams)
		}{
			{"missing seller", func(p *CreateParams) { p.SellerID = uuid.Nil }},
			{"blank title", func(p *CreateParams) { p.Title = "   " }},
			{"bad condition", func(p *CreateParams) { p.Condition = "mint-ish" }},
			{"zero starting price", func(p *CreateParams) { p.StartingPrice = decimal.Zero }},
			{"negative increment", func(p *CreateParams) { p.MinIncrement = decimal.NewFromInt(-1) }},
			{"end before start", func(p *CreateParams) { p.EndTime = p.StartTime.Add(-time.Minute) }},
			{"window in the past", func(p *CreateParams) {
				p.StartTime = now.Add(-48 * time.Hour)
				p.EndTime = now.Add(-24 * time.Hour)
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				repo := newFakeAuctionRepo()
				svc, _, _ := newTestService(t, repo, now)

				params := valid
				tc.mutate(&params)

				_, err := svc.Create(context.Background(), params)
				require.Error(t, err)
				typed := pkgerrors.As(err)
				require.NotNil(t, typed)
				assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			})
		}
	})
}

func TestServiceSubmit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("moves draft to pending and emits status change", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusDraft, now.Add(time.Hour), now.Add(48*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, recorder, emitter := newTestService(t, repo, now)

		updated, err := svc.Submit(context.Background(), auction.ID, Actor{ID: auction.SellerID, Role: enums.UserRoleUser})
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusPending, updated.Status)

		require.Len(t, recorder.entries, 1)
		require.NotNil(t, recorder.entries[0].FromStatus)
		assert.Equal(t, enums.AuctionStatusDraft, *recorder.entries[0].FromStatus)

		require.Len(t, emitter.emitted, 1)
		assert.Equal(t, enums.EventAuctionStatusChanged, emitter.emitted[0].EventType)
		assert.Equal(t, auction.ID, emitter.emitted[0].AggregateID)
	})

	t.Run("rejects non-seller", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusDraft, now.Add(time.Hour), now.Add(48*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		_, err := svc.Submit(context.Background(), auction.ID, Actor{ID: uuid.New(), Role: enums.UserRoleUser})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	})

	t.Run("rejects expired window", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusDraft, now.Add(-48*time.Hour), now.Add(-time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		_, err := svc.Submit(context.Background(), auction.ID, Actor{ID: auction.SellerID, Role: enums.UserRoleUser})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})
}

func TestServiceGet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("activates pending auction past start time", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusPending, now.Add(-time.Minute), now.Add(24*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, emitter := newTestService(t, repo, now)

		got, err := svc.Get(context.Background(), auction.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusActive, got.Status)
		require.Len(t, emitter.emitted, 1)
		assert.Equal(t, 1, repo.viewIncrements)
	})

	t.Run("ends active auction past end time", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusActive, now.Add(-48*time.Hour), now.Add(-time.Minute))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		got, err := svc.Get(context.Background(), auction.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusEnded, got.Status)
	})

	t.Run("pending past both boundaries passes through active to ended", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusPending, now.Add(-48*time.Hour), now.Add(-time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, recorder, _ := newTestService(t, repo, now)

		got, err := svc.Get(context.Background(), auction.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusEnded, got.Status)
		require.Len(t, recorder.entries, 2)
	})

	t.Run("guarded update losing the race rereads instead of failing", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusPending, now.Add(-time.Minute), now.Add(24*time.Hour))
		repo := newFakeAuctionRepo(auction)
		repo.guardedResults = []bool{false}
		// Simulate the sweep winning the transition between read and update.
		repo.onGuardedConflict = func() {
			repo.auctions[auction.ID].Status = enums.AuctionStatusActive
		}
		svc, _, _ := newTestService(t, repo, now)

		got, err := svc.Get(context.Background(), auction.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusActive, got.Status)
	})

	t.Run("unknown auction", func(t *testing.T) {
		repo := newFakeAuctionRepo()
		svc, _, _ := newTestService(t, repo, now)

		_, err := svc.Get(context.Background(), uuid.New())
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	})
}

func TestServiceUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("edits draft fields", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusDraft, now.Add(time.Hour), now.Add(48*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		title := "Vintage camera, serviced"
		updated, err := svc.Update(context.Background(), UpdateParams{
			AuctionID: auction.ID,
			Actor:     Actor{ID: auction.SellerID, Role: enums.UserRoleUser},
			Title:     &title,
		})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
	})

	t.Run("rejects edits after submission", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusPending, now.Add(time.Hour), now.Add(48*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		title := "too late"
		_, err := svc.Update(context.Background(), UpdateParams{
			AuctionID: auction.ID,
			Actor:     Actor{ID: auction.SellerID, Role: enums.UserRoleUser},
			Title:     &title,
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeInvalidTransition, pkgerrors.As(err).Code())
	})

	t.Run("price edit resets current price", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusDraft, now.Add(time.Hour), now.Add(48*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		price := decimal.NewFromInt(250)
		_, err := svc.Update(context.Background(), UpdateParams{
			AuctionID:     auction.ID,
			Actor:         Actor{ID: auction.SellerID, Role: enums.UserRoleUser},
			StartingPrice: &price,
		})
		require.NoError(t, err)
		assert.Contains(t, repo.updates, "current_price")
	})
}

func TestServiceAdminOps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("suspend requires admin", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusActive, now.Add(-time.Hour), now.Add(24*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		_, err := svc.Suspend(context.Background(), auction.ID, Actor{ID: auction.SellerID, Role: enums.UserRoleUser}, "fraud report")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	})

	t.Run("suspend and resume round trip", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusActive, now.Add(-time.Hour), now.Add(24*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, recorder, _ := newTestService(t, repo, now)
		admin := Actor{ID: uuid.New(), Role: enums.UserRoleAdmin}

		suspended, err := svc.Suspend(context.Background(), auction.ID, admin, "fraud report")
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusSuspended, suspended.Status)

		resumed, err := svc.Resume(context.Background(), auction.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusActive, resumed.Status)

		require.Len(t, recorder.entries, 2)
		assert.Equal(t, "fraud report", recorder.entries[0].Reason)
	})

	t.Run("hard delete requires admin", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusCancelled, now.Add(-48*time.Hour), now.Add(-time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		err := svc.HardDelete(context.Background(), auction.ID, Actor{ID: auction.SellerID, Role: enums.UserRoleUser})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
		assert.Contains(t, repo.auctions, auction.ID)
	})

	t.Run("hard delete removes the listing", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusCancelled, now.Add(-48*time.Hour), now.Add(-time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		err := svc.HardDelete(context.Background(), auction.ID, Actor{ID: uuid.New(), Role: enums.UserRoleAdmin})
		require.NoError(t, err)
		assert.NotContains(t, repo.auctions, auction.ID)
	})

	t.Run("hard delete surfaces payment references as conflict", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusCompleted, now.Add(-48*time.Hour), now.Add(-time.Hour))
		repo := newFakeAuctionRepo(auction)
		repo.deleteErr = errors.New(`update or delete on table "auctions" violates foreign key constraint "payment_orders_auction_id_fkey"`)
		svc, _, _ := newTestService(t, repo, now)

		err := svc.HardDelete(context.Background(), auction.ID, Actor{ID: uuid.New(), Role: enums.UserRoleAdmin})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	})

	t.Run("resume before start time returns auction to pending", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusPending, now.Add(time.Hour), now.Add(24*time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)
		admin := Actor{ID: uuid.New(), Role: enums.UserRoleAdmin}

		suspended, err := svc.Suspend(context.Background(), auction.ID, admin, "seller under review")
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusSuspended, suspended.Status)

		resumed, err := svc.Resume(context.Background(), auction.ID, admin)
		require.NoError(t, err)
		assert.Equal(t, enums.AuctionStatusPending, resumed.Status)
	})

	t.Run("cancel blocked on ended auction", func(t *testing.T) {
		auction := baseAuction(enums.AuctionStatusEnded, now.Add(-48*time.Hour), now.Add(-time.Hour))
		repo := newFakeAuctionRepo(auction)
		svc, _, _ := newTestService(t, repo, now)

		_, err := svc.Cancel(context.Background(), auction.ID, Actor{ID: auction.SellerID, Role: enums.UserRoleUser}, "changed my mind")
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeInvalidTransition, pkgerrors.As(err).Code())
	})
}
