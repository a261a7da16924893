package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

const defaultNotificationRetentionDays = 30

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NotificationCleanupJobParams configure the cleanup job. Retention is in
// days.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  int
}

// notificationCleanupJob prunes read notifications past the retention
// window. Unread notifications are kept regardless of age; the repository
// enforces that predicate.
type notificationCleanupJob struct {
	logg          *logger.Logger
	db            txRunner
	repo          notificationsCleanupRepo
	retentionDays int
	now           func() time.Time
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	job := &notificationCleanupJob{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		retentionDays: params.Retention,
		now:           time.Now,
	}
	if job.retentionDays <= 0 {
		job.retentionDays = defaultNotificationRetentionDays
	}
	return job, nil
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)
	var pruned int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteOlderThan(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		pruned = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retentionDays,
		"rows_pruned":    pruned,
	}), "notification cleanup complete")
	return nil
}
