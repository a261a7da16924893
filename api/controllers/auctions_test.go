package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	auctionsvc "github.com/hoangtran/auctionhub-backend/internal/auctions"
	"github.com/hoangtran/auctionhub-backend/pkg/db/models"
	"github.com/hoangtran/auctionhub-backend/pkg/enums"
	pkgerrors "github.com/hoangtran/auctionhub-backend/pkg/errors"
)

type testAuctionService struct {
	createFn     func(ctx context.Context, params auctionsvc.CreateParams) (*models.Auction, error)
	updateFn     func(ctx context.Context, params auctionsvc.UpdateParams) (*models.Auction, error)
	submitFn     func(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor) (*models.Auction, error)
	getFn        func(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	listFn       func(ctx context.Context, params auctionsvc.ListParams) (*auctionsvc.ListResult, error)
	cancelFn     func(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor, reason string) (*models.Auction, error)
	suspendFn    func(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor, reason string) (*models.Auction, error)
	resumeFn     func(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor) (*models.Auction, error)
	deleteFn     func(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor) error
	transitionFn func(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *auctionsvc.Actor, reason string) (*models.Auction, error)
	historyFn    func(ctx context.Context, auctionID uuid.UUID, limit int, cursor string) (*auctionsvc.HistoryResult, error)
}

func (s *testAuctionService) Create(ctx context.Context, params auctionsvc.CreateParams) (*models.Auction, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) Update(ctx context.Context, params auctionsvc.UpdateParams) (*models.Auction, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, params)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) Submit(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor) (*models.Auction, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, auctionID, actor)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) Get(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	if s.getFn != nil {
		return s.getFn(ctx, auctionID)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) List(ctx context.Context, params auctionsvc.ListParams) (*auctionsvc.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &auctionsvc.ListResult{}, nil
}

func (s *testAuctionService) Cancel(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor, reason string) (*models.Auction, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, auctionID, actor, reason)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) Suspend(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor, reason string) (*models.Auction, error) {
	if s.suspendFn != nil {
		return s.suspendFn(ctx, auctionID, actor, reason)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) Resume(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor) (*models.Auction, error) {
	if s.resumeFn != nil {
		return s.resumeFn(ctx, auctionID, actor)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) HardDelete(ctx context.Context, auctionID uuid.UUID, actor auctionsvc.Actor) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, auctionID, actor)
	}
	return nil
}

func (s *testAuctionService) Transition(ctx context.Context, auctionID uuid.UUID, to enums.AuctionStatus, actor *auctionsvc.Actor, reason string) (*models.Auction, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, auctionID, to, actor, reason)
	}
	return &models.Auction{}, nil
}

func (s *testAuctionService) History(ctx context.Context, auctionID uuid.UUID, limit int, cursor string) (*auctionsvc.HistoryResult, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, auctionID, limit, cursor)
	}
	return &auctionsvc.HistoryResult{}, nil
}

func TestCreateAuctionSuccess(t *testing.T) {
	sellerID := uuid.New()
	var captured auctionsvc.CreateParams
	svc := &testAuctionService{
		createFn: func(ctx context.Context, params auctionsvc.CreateParams) (*models.Auction, error) {
			captured = params
			return &models.Auction{ID: uuid.New(), SellerID: params.SellerID, Title: params.Title}, nil
		},
	}

	body := `{
		"title": "Vintage camera",
		"category": "electronics",
		"condition": "good",
		"starting_price": "100.00",
		"min_increment": "5.00",
		"start_time": "2026-10-01T10:00:00Z",
		"end_time": "2026-10-02T10:00:00Z"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, sellerID.String(), "seller")

	resp := httptest.NewRecorder()
	CreateAuction(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.SellerID != sellerID {
		t.Fatalf("unexpected seller %s", captured.SellerID)
	}
	if captured.Category != "electronics" {
		t.Fatalf("unexpected category %q", captured.Category)
	}
	if !captured.StartingPrice.Equal(decimal.NewFromInt(100)) || !captured.MinIncrement.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("price fields not parsed: %s / %s", captured.StartingPrice, captured.MinIncrement)
	}
}

func TestCreateAuctionRejectsBadPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", strings.NewReader(`{"title":""}`))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.NewString(), "seller")

	resp := httptest.NewRecorder()
	CreateAuction(&testAuctionService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateAuctionRequiresUserContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CreateAuction(&testAuctionService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListAuctionsParsesFilters(t *testing.T) {
	var captured auctionsvc.ListParams
	svc := &testAuctionService{
		listFn: func(ctx context.Context, params auctionsvc.ListParams) (*auctionsvc.ListResult, error) {
			captured = params
			return &auctionsvc.ListResult{}, nil
		},
	}

	target := "/api/v1/auctions?status=active&category=books&minPrice=10&maxPrice=50&q=atlas&limit=20"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	ListAuctions(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Status == nil || *captured.Status != enums.AuctionStatusActive {
		t.Fatal("status filter not parsed")
	}
	if captured.Category == nil || *captured.Category != "books" {
		t.Fatal("category filter not parsed")
	}
	if captured.MinPrice == nil || captured.MinPrice.String() != "10" {
		t.Fatal("minPrice filter not parsed")
	}
	if captured.MaxPrice == nil || captured.MaxPrice.String() != "50" {
		t.Fatal("maxPrice filter not parsed")
	}
	if captured.Query != "atlas" || captured.Limit != 20 {
		t.Fatalf("unexpected query %q limit %d", captured.Query, captured.Limit)
	}
}

func TestListAuctionsRejectsBadStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auctions?status=bogus", nil)
	resp := httptest.NewRecorder()
	ListAuctions(&testAuctionService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTransitionAuctionRoutesByTarget(t *testing.T) {
	auctionID := uuid.New()
	actorID := uuid.New()

	tests := []struct {
		name    string
		status  string
		prepare func(svc *testAuctionService, called *string)
	}{
		{
			name:   "pending goes through submit",
			status: "pending",
			prepare: func(svc *testAuctionService, called *string) {
				svc.submitFn = func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor) (*models.Auction, error) {
					*called = "submit"
					return &models.Auction{}, nil
				}
			},
		},
		{
			name:   "cancelled goes through cancel",
			status: "cancelled",
			prepare: func(svc *testAuctionService, called *string) {
				svc.cancelFn = func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor, reason string) (*models.Auction, error) {
					*called = "cancel"
					return &models.Auction{}, nil
				}
			},
		},
		{
			name:   "suspended goes through suspend",
			status: "suspended",
			prepare: func(svc *testAuctionService, called *string) {
				svc.suspendFn = func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor, reason string) (*models.Auction, error) {
					*called = "suspend"
					return &models.Auction{}, nil
				}
			},
		},
		{
			name:   "active goes through resume",
			status: "active",
			prepare: func(svc *testAuctionService, called *string) {
				svc.resumeFn = func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor) (*models.Auction, error) {
					*called = "resume"
					return &models.Auction{}, nil
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &testAuctionService{}
			called := ""
			tc.prepare(svc, &called)

			body := `{"status": "` + tc.status + `", "reason": "test"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions/"+auctionID.String()+"/status", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req = authedRequest(req, actorID.String(), "seller")
			req = addRouteParam(req, "auctionId", auctionID.String())

			resp := httptest.NewRecorder()
			TransitionAuction(svc, testLogger())(resp, req)

			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
			}
			if called == "" {
				t.Fatal("expected service method called")
			}
		})
	}
}

func TestTransitionAuctionForcedTargetNeedsAdmin(t *testing.T) {
	auctionID := uuid.New()
	body := `{"status": "ended"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions/"+auctionID.String()+"/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.NewString(), "seller")
	req = addRouteParam(req, "auctionId", auctionID.String())

	resp := httptest.NewRecorder()
	TransitionAuction(&testAuctionService{}, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestTransitionAuctionForcedTargetAsAdmin(t *testing.T) {
	auctionID := uuid.New()
	forced := false
	svc := &testAuctionService{
		transitionFn: func(ctx context.Context, id uuid.UUID, to enums.AuctionStatus, actor *auctionsvc.Actor, reason string) (*models.Auction, error) {
			forced = true
			if to != enums.AuctionStatusEnded {
				t.Fatalf("unexpected target %s", to)
			}
			if actor == nil || actor.Role != enums.UserRoleAdmin {
				t.Fatal("expected admin actor")
			}
			return &models.Auction{}, nil
		},
	}

	body := `{"status": "ended", "reason": "moderation"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions/"+auctionID.String()+"/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, uuid.NewString(), "admin")
	req = addRouteParam(req, "auctionId", auctionID.String())

	resp := httptest.NewRecorder()
	TransitionAuction(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !forced {
		t.Fatal("expected forced transition")
	}
}

func TestDeleteAuctionCancelsListing(t *testing.T) {
	auctionID := uuid.New()
	var reason string
	svc := &testAuctionService{
		cancelFn: func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor, r string) (*models.Auction, error) {
			reason = r
			return &models.Auction{ID: id, Status: enums.AuctionStatusCancelled}, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/auctions/"+auctionID.String(), nil)
	req = authedRequest(req, uuid.NewString(), "seller")
	req = addRouteParam(req, "auctionId", auctionID.String())

	resp := httptest.NewRecorder()
	DeleteAuction(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if reason == "" {
		t.Fatal("expected withdrawal reason recorded")
	}

	var envelope struct {
		Data models.Auction `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != enums.AuctionStatusCancelled {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestHardDeleteAuctionRemovesListing(t *testing.T) {
	auctionID := uuid.New()
	var capturedActor auctionsvc.Actor
	svc := &testAuctionService{
		deleteFn: func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor) error {
			if id != auctionID {
				t.Fatalf("unexpected auction id %s", id)
			}
			capturedActor = actor
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/auctions/"+auctionID.String(), nil)
	req = authedRequest(req, uuid.NewString(), "admin")
	req = addRouteParam(req, "auctionId", auctionID.String())

	resp := httptest.NewRecorder()
	HardDeleteAuction(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if capturedActor.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin actor, got %s", capturedActor.Role)
	}
}

func TestHardDeleteAuctionSurfacesConflict(t *testing.T) {
	auctionID := uuid.New()
	svc := &testAuctionService{
		deleteFn: func(ctx context.Context, id uuid.UUID, actor auctionsvc.Actor) error {
			return pkgerrors.New(pkgerrors.CodeConflict, "auction has payment records and cannot be deleted")
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/auctions/"+auctionID.String(), nil)
	req = authedRequest(req, uuid.NewString(), "admin")
	req = addRouteParam(req, "auctionId", auctionID.String())

	resp := httptest.NewRecorder()
	HardDeleteAuction(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
