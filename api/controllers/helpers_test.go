package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoangtran/auctionhub-backend/api/middleware"
	"github.com/hoangtran/auctionhub-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx, ok := req.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return req
}

func authedRequest(req *http.Request, userID, role string) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID)
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}
