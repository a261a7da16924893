// Package admin aggregates marketplace-wide figures for the back office.
package admin

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
)

// Service exposes read-only operational counters.
type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the snapshot returned to the admin dashboard.
type Stats struct {
	Auctions         int64            `json:"auctions"`
	AuctionsByStatus map[string]int64 `json:"auctions_by_status"`
	Bids             int64            `json:"bids"`
	Payments         int64            `json:"payments"`
	PaymentsByStatus map[string]int64 `json:"payments_by_status"`
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, errors.New("admin service requires a database handle")
	}
	return &service{db: db}, nil
}

type statusCount struct {
	Status string
	Count  int64
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		AuctionsByStatus: map[string]int64{},
		PaymentsByStatus: map[string]int64{},
	}

	if err := s.db.WithContext(ctx).Model(&models.Auction{}).Count(&stats.Auctions).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count auctions")
	}
	if err := s.db.WithContext(ctx).Model(&models.Bid{}).Count(&stats.Bids).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bids")
	}
	if err := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).Count(&stats.Payments).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payments")
	}

	var auctionRows []statusCount
	if err := s.db.WithContext(ctx).Model(&models.Auction{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&auctionRows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count auctions by status")
	}
	for _, row := range auctionRows {
		stats.AuctionsByStatus[row.Status] = row.Count
	}

	var paymentRows []statusCount
	if err := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&paymentRows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count payments by status")
	}
	for _, row := range paymentRows {
		stats.PaymentsByStatus[row.Status] = row.Count
	}

	return stats, nil
}
