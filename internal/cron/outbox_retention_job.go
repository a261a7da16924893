package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultOutboxMinAttempts   = 5
)

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// OutboxRetentionJobParams configure the prune job. Retention is in days;
// MinAttempts keeps rows that are still being retried out of the delete.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   int
	MinAttempts int
}

// outboxRetentionJob deletes published outbox rows once they age out. Rows
// are only audit residue after publish, so losing them is safe.
type outboxRetentionJob struct {
	logg          *logger.Logger
	db            txRunner
	repo          outboxRetentionRepo
	retentionDays int
	minAttempts   int
	now           func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		retentionDays: params.Retention,
		minAttempts:   params.MinAttempts,
		now:           time.Now,
	}
	if job.retentionDays <= 0 {
		job.retentionDays = defaultOutboxRetentionDays
	}
	if job.minAttempts <= 0 {
		job.minAttempts = defaultOutboxMinAttempts
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)
	var pruned int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		if err != nil {
			return err
		}
		pruned = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retentionDays,
		"min_attempts":   j.minAttempts,
		"rows_pruned":    pruned,
	}), "outbox retention prune complete")
	return nil
}
