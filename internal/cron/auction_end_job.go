package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hoangtran/auctionhub-backend/internal/settlement"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

// AuctionEndJobParams configure the ended auction settlement sweep.
type AuctionEndJobParams struct {
	Logger    *logger.Logger
	DueReader dueToEndReader
	Settler   auctionSettler
	BatchSize int
}

type dueToEndReader interface {
	FindDueToEnd(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
}

type auctionSettler interface {
	Settle(ctx context.Context, auctionID uuid.UUID) (*settlement.Result, error)
}

// NewAuctionEndJob builds the cron job that closes active auctions past
// their end time and settles them. Settlement handles the ended
// transition itself, so the sweep only has to feed it due auctions.
func NewAuctionEndJob(params AuctionEndJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DueReader == nil {
		return nil, fmt.Errorf("due auctions reader required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &auctionEndJob{
		logg:      params.Logger,
		dueReader: params.DueReader,
		settler:   params.Settler,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type auctionEndJob struct {
	logg      *logger.Logger
	dueReader dueToEndReader
	settler   auctionSettler
	batchSize int
	now       func() time.Time
}

func (j *auctionEndJob) Name() string { return "auction-end" }

func (j *auctionEndJob) Run(ctx context.Context) error {
	due, err := j.dueReader.FindDueToEnd(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("query auctions due to end: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	settled := 0
	winners := 0
	var errs []error
	for _, auction := range due {
		result, err := j.settler.Settle(ctx, auction.ID)
		if err != nil {
			// A concurrent settle or lazy read got there first.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			errs = append(errs, fmt.Errorf("settle auction %s: %w", auction.ID, err))
			continue
		}
		settled++
		if result.WinnerID != nil {
			winners++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":     len(due),
		"settled": settled,
		"winners": winners,
		"failed":  len(errs),
	})
	j.logg.Info(logCtx, "auction end sweep complete")
	return multierr.Combine(errs...)
}
