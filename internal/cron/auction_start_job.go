package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

const defaultSweepBatchSize = 100

// AuctionStartJobParams configure the pending auction activation sweep.
type AuctionStartJobParams struct {
	Logger       *logger.Logger
	DueReader    dueToStartReader
	Transitioner auctionTransitioner
	BatchSize    int
}

type dueToStartReader interface {
	FindDueToStart(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
}

type auctionTransitioner interface {
	Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *auctions.Actor, reason string) (*models.Auction, error)
}

// NewAuctionStartJob builds the cron job that activates pending auctions
// whose start time has passed.
func NewAuctionStartJob(params AuctionStartJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DueReader == nil {
		return nil, fmt.Errorf("due auctions reader required")
	}
	if params.Transitioner == nil {
		return nil, fmt.Errorf("auction transitioner required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &auctionStartJob{
		logg:         params.Logger,
		dueReader:    params.DueReader,
		transitioner: params.Transitioner,
		batchSize:    batchSize,
		now:          time.Now,
	}, nil
}

type auctionStartJob struct {
	logg         *logger.Logger
	dueReader    dueToStartReader
	transitioner auctionTransitioner
	batchSize    int
	now          func() time.Time
}

func (j *auctionStartJob) Name() string { return "auction-start" }

func (j *auctionStartJob) Run(ctx context.Context) error {
	due, err := j.dueReader.FindDueToStart(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("query auctions due to start: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	activated := 0
	var errs []error
	for _, auction := range due {
		_, err := j.transitioner.Transition(ctx, auction.ID, enums.AuctionStatusActive, nil, "start time reached")
		if err != nil {
			// A concurrent reader already activated it.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			errs = append(errs, fmt.Errorf("activate auction %s: %w", auction.ID, err))
			continue
		}
		activated++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":       len(due),
		"activated": activated,
		"failed":    len(errs),
	})
	j.logg.Info(logCtx, "auction start sweep complete")
	return multierr.Combine(errs...)
}
