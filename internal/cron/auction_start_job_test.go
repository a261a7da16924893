package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

type fakeDueToStartReader struct {
	due     []models.Auction
	err     error
	lastNow time.Time
}

func (f *fakeDueToStartReader) FindDueToStart(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	f.lastNow = now
	return f.due, f.err
}

type fakeTransitioner struct {
	calls []uuid.UUID
	errs  map[uuid.UUID]error
}

func (f *fakeTransitioner) Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *auctions.Actor, reason string) (*models.Auction, error) {
	f.calls = append(f.calls, auctionID)
	if err, ok := f.errs[auctionID]; ok {
		return nil, err
	}
	return &models.Auction{ID: auctionID, Status: to}, nil
}

func newStartJob(t *testing.T, reader *fakeDueToStartReader, transitioner *fakeTransitioner) *auctionStartJob {
	t.Helper()
	jobIface, err := NewAuctionStartJob(AuctionStartJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "test"}),
		DueReader:    reader,
		Transitioner: transitioner,
	})
	if err != nil {
		t.Fatalf("NewAuctionStartJob: %v", err)
	}
	job, ok := jobIface.(*auctionStartJob)
	if !ok {
		t.Fatalf("expected auctionStartJob, got %T", jobIface)
	}
	return job
}

func TestAuctionStartJobActivatesDueAuctions(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	reader := &fakeDueToStartReader{due: []models.Auction{{ID: first}, {ID: second}}}
	transitioner := &fakeTransitioner{}
	job := newStartJob(t, reader, transitioner)
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reader.lastNow.Equal(now) {
		t.Fatalf("expected reader queried at %s, got %s", now, reader.lastNow)
	}
	if len(transitioner.calls) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(transitioner.calls))
	}
}

func TestAuctionStartJobSkipsLostRaces(t *testing.T) {
	raced := uuid.New()
	clean := uuid.New()
	reader := &fakeDueToStartReader{due: []models.Auction{{ID: raced}, {ID: clean}}}
	transitioner := &fakeTransitioner{errs: map[uuid.UUID]error{
		raced: pkgerrors.New(pkgerrors.CodeConflict, "auction status changed concurrently"),
	}}
	job := newStartJob(t, reader, transitioner)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("expected lost race tolerated, got %v", err)
	}
	if len(transitioner.calls) != 2 {
		t.Fatalf("expected both auctions attempted, got %d", len(transitioner.calls))
	}
}

func TestAuctionStartJobReportsFailuresAfterFullSweep(t *testing.T) {
	broken := uuid.New()
	clean := uuid.New()
	reader := &fakeDueToStartReader{due: []models.Auction{{ID: broken}, {ID: clean}}}
	transitioner := &fakeTransitioner{errs: map[uuid.UUID]error{
		broken: errors.New("connection reset"),
	}}
	job := newStartJob(t, reader, transitioner)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error")
	}
	if len(transitioner.calls) != 2 {
		t.Fatalf("expected sweep to continue past failure, got %d calls", len(transitioner.calls))
	}
}

func TestAuctionStartJobNoDueAuctions(t *testing.T) {
	reader := &fakeDueToStartReader{}
	transitioner := &fakeTransitioner{}
	job := newStartJob(t, reader, transitioner)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(transitioner.calls) != 0 {
		t.Fatalf("expected no transitions, got %d", len(transitioner.calls))
	}
}
