package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

// AuctionSettleJobParams configure the settlement retry sweep.
type AuctionSettleJobParams struct {
	Logger          *logger.Logger
	UnsettledReader unsettledReader
	Settler         auctionSettler
	BatchSize       int
}

type unsettledReader interface {
	FindEndedUnsettled(ctx context.Context, limit int) ([]models.Auction, error)
}

// NewAuctionSettleJob builds the sweep that re-settles ended auctions left
// without a payment order. The end sweep settles auctions as it closes
// them, so this job only sees the ones where that failed partway.
func NewAuctionSettleJob(params AuctionSettleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.UnsettledReader == nil {
		return nil, fmt.Errorf("unsettled auctions reader required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &auctionSettleJob{
		logg:      params.Logger,
		unsettled: params.UnsettledReader,
		settler:   params.Settler,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type auctionSettleJob struct {
	logg      *logger.Logger
	unsettled unsettledReader
	settler   auctionSettler
	batchSize int
	now       func() time.Time
}

func (j *auctionSettleJob) Name() string { return "auction-settle" }

func (j *auctionSettleJob) Run(ctx context.Context) error {
	stranded, err := j.unsettled.FindEndedUnsettled(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("query unsettled auctions: %w", err)
	}
	if len(stranded) == 0 {
		return nil
	}
	settled := 0
	var errs []error
	for _, auction := range stranded {
		if _, err := j.settler.Settle(ctx, auction.ID); err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			errs = append(errs, fmt.Errorf("re-settle auction %s: %w", auction.ID, err))
			continue
		}
		settled++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stranded": len(stranded),
		"settled":  settled,
		"failed":   len(errs),
	})
	j.logg.Info(logCtx, "settlement retry sweep complete")
	return multierr.Combine(errs...)
}
