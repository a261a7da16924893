package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_outbox_events_event_aggregate"}

	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected pgx unique violation to match without constraint scope")
	}
	if !IsUniqueViolation(pgErr, "ux_outbox_events_event_aggregate") {
		t.Fatal("expected pgx unique violation to match its constraint")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatal("expected mismatching constraint to be rejected")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error is not a violation")
	}

	pqErr := &pq.Error{Code: "23505", Constraint: "ux_bids_auction_bidder"}
	if !IsUniqueViolation(fmt.Errorf("create bid: %w", pqErr), "ux_bids_auction_bidder") {
		t.Fatal("expected wrapped pq unique violation to match")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("expected pgx foreign key violation to match")
	}
	if !IsForeignKeyViolation(&pq.Error{Code: "23503"}) {
		t.Fatal("expected pq foreign key violation to match")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not a foreign key violation")
	}

	flattened := errors.New(`update or delete on table "auctions" violates foreign key constraint "payment_orders_auction_id_fkey"`)
	if !IsForeignKeyViolation(flattened) {
		t.Fatal("expected flattened driver text to match")
	}
	if IsForeignKeyViolation(nil) {
		t.Fatal("nil error is not a violation")
	}
}
