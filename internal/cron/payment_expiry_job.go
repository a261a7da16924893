package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

// PaymentExpiryJobParams configure the overdue payment order sweep.
type PaymentExpiryJobParams struct {
	Logger       *logger.Logger
	OrderReader  expiredOrderReader
	OrderExpirer paymentExpirer
	BatchSize    int
}

type expiredOrderReader interface {
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.PaymentOrder, error)
}

type paymentExpirer interface {
	Expire(ctx context.Context, orderID uuid.UUID) (*models.PaymentOrder, error)
}

// NewPaymentExpiryJob builds the cron job that expires pending payment
// orders whose deadline has passed.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.OrderReader == nil {
		return nil, fmt.Errorf("expired orders reader required")
	}
	if params.OrderExpirer == nil {
		return nil, fmt.Errorf("payment expirer required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &paymentExpiryJob{
		logg:      params.Logger,
		reader:    params.OrderReader,
		expirer:   params.OrderExpirer,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg      *logger.Logger
	reader    expiredOrderReader
	expirer   paymentExpirer
	batchSize int
	now       func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	overdue, err := j.reader.FindExpired(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("query overdue payment orders: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}
	expired := 0
	var errs []error
	for _, order := range overdue {
		if _, err := j.expirer.Expire(ctx, order.ID); err != nil {
			// A buyer completing at the deadline wins the race.
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				continue
			}
			errs = append(errs, fmt.Errorf("expire payment order %s: %w", order.ID, err))
			continue
		}
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue": len(overdue),
		"expired": expired,
		"failed":  len(errs),
	})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return multierr.Combine(errs...)
}
