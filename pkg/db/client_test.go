package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hoangtran/auctionhub-backend/pkg/config"
)

type lotRow struct {
	ID    int
	Title string
}

func newTestClient(t *testing.T) (*Client, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&lotRow{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return &Client{conn: conn}, conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&lotRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestWithTxCommits(t *testing.T) {
	client, conn := newTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&lotRow{Title: "vintage radio"}).Error
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if got := countRows(t, conn); got != 1 {
		t.Fatalf("expected 1 row after commit, got %d", got)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	client, conn := newTestClient(t)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&lotRow{Title: "discarded"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to surface the error")
	}
	if got := countRows(t, conn); got != 0 {
		t.Fatalf("expected rollback to leave 0 rows, got %d", got)
	}
}

func TestPing(t *testing.T) {
	client, _ := newTestClient(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := openDialector(config.DBConfig{DSN: "x", Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
