package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/hoangtran/auctionhub-backend/api/middleware"
	"github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
)

// actorFromContext builds the acting identity from the values the auth
// middleware stored on the request context.
func actorFromContext(ctx context.Context) (auctions.Actor, error) {
	raw := middleware.UserIDFromContext(ctx)
	if raw == "" {
		return auctions.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return auctions.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return auctions.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return auctions.Actor{ID: userID, Role: role}, nil
}
