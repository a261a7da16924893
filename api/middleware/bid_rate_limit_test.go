package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeBidLimiter struct {
	counts map[string]int64
	err    error
}

func newFakeBidLimiter() *fakeBidLimiter {
	return &fakeBidLimiter{counts: map[string]int64{}}
}

func (f *fakeBidLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func bidRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions/a1/bids", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	return req
}

func TestBidRateLimitAllowsUnderLimit(t *testing.T) {
	store := newFakeBidLimiter()
	handler := BidRateLimit(NewBidRateLimitPolicy(time.Minute, 3), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, bidRequest("bidder-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestBidRateLimitBlocksOverLimit(t *testing.T) {
	store := newFakeBidLimiter()
	handler := BidRateLimit(NewBidRateLimitPolicy(time.Minute, 2), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, bidRequest("bidder-1"))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", last.Code)
	}

	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(last.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected error code %s", payload.Error.Code)
	}
}

func TestBidRateLimitCountsPerUser(t *testing.T) {
	store := newFakeBidLimiter()
	handler := BidRateLimit(NewBidRateLimitPolicy(time.Minute, 1), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, bidRequest("bidder-1"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, bidRequest("bidder-2"))

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected separate windows per bidder, got %d and %d", first.Code, second.Code)
	}
}

func TestBidRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeBidLimiter()
	handler := BidRateLimit(NewBidRateLimitPolicy(time.Minute, 1), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bidRequest(""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := store.counts["bids:ip:1.2.3.4"]; !ok {
		t.Fatalf("expected an ip-scoped counter, got %v", store.counts)
	}
}

func TestBidRateLimitStoreFailure(t *testing.T) {
	store := newFakeBidLimiter()
	store.err = errors.New("redis down")
	handler := BidRateLimit(NewBidRateLimitPolicy(time.Minute, 1), store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, bidRequest("bidder-1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store fails, got %d", rec.Code)
	}
}

func TestBidRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := BidRateLimit(NewBidRateLimitPolicy(0, 0), nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, bidRequest("bidder-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
	}
}
