package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

type stubPredictionService struct {
	prediction domain.Prediction
	bet        domain.Bet
	err        error
	lockCalls  int
}

func (s *stubPredictionService) CreatePrediction(ctx context.Context, creatorID, question, category string, labels []string, bettingEndsAt time.Time) (domain.Prediction, error) {
	return s.prediction, s.err
}

func (s *stubPredictionService) GetPrediction(ctx context.Context, predictionID string) (domain.Prediction, error) {
	return s.prediction, s.err
}

func (s *stubPredictionService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Prediction{s.prediction}, nil
}

func (s *stubPredictionService) ListResolved(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	return nil, s.err
}

func (s *stubPredictionService) Lock(ctx context.Context, predictionID string) error {
	s.lockCalls++
	return s.err
}

func (s *stubPredictionService) Resolve(ctx context.Context, predictionID, callerID, winningOptionID string) (domain.Prediction, error) {
	return s.prediction, s.err
}

func (s *stubPredictionService) Refund(ctx context.Context, predictionID, callerID string) (domain.Prediction, error) {
	return s.prediction, s.err
}

func (s *stubPredictionService) PlaceBet(ctx context.Context, predictionID, userID, optionID, economyID string, amount int64) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubPredictionService) ListPredictionBets(ctx context.Context, predictionID string) ([]domain.Bet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Bet{s.bet}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newPredictionMux(svc PredictionService) *http.ServeMux {
	h := NewPredictionHandler(svc, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/predictions", h.CreatePrediction)
	mux.HandleFunc("GET /api/predictions", h.ListPredictions)
	mux.HandleFunc("GET /api/predictions/{id}", h.GetPrediction)
	mux.HandleFunc("POST /api/predictions/{id}/lock", h.Lock)
	mux.HandleFunc("POST /api/predictions/{id}/resolve", h.Resolve)
	mux.HandleFunc("POST /api/predictions/{id}/refund", h.Refund)
	mux.HandleFunc("POST /api/predictions/{id}/bets", h.PlaceBet)
	mux.HandleFunc("GET /api/predictions/{id}/bets", h.ListPredictionBets)
	return mux
}

func TestCreatePredictionRequiresFields(t *testing.T) {
	mux := newPredictionMux(&stubPredictionService{})

	body := `{"question":"who wins?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreatePredictionReturnsCreated(t *testing.T) {
	svc := &stubPredictionService{prediction: domain.Prediction{ID: "p1", Question: "who wins?"}}
	mux := newPredictionMux(svc)

	body := `{"creator_id":"u1","question":"who wins?","options":["a","b"],"betting_ends_at":"2027-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	var got domain.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "p1" {
		t.Fatalf("id = %q", got.ID)
	}
}

func TestGetPredictionNotFound(t *testing.T) {
	mux := newPredictionMux(&stubPredictionService{err: domain.ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/missing", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListPredictionsRejectsBadStatus(t *testing.T) {
	mux := newPredictionMux(&stubPredictionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/predictions?status=bogus", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestResolveMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotCreator, http.StatusForbidden},
		{domain.ErrUnknownOption, http.StatusBadRequest},
		{domain.ErrMarketNotLocked, http.StatusConflict},
		{domain.ErrNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		mux := newPredictionMux(&stubPredictionService{err: tc.err})
		body := `{"caller_id":"u1","winning_option_id":"o1"}`
		req := httptest.NewRequest(http.MethodPost, "/api/predictions/p1/resolve", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestResolvePartialSettlementStillReturnsMarket(t *testing.T) {
	svc := &stubPredictionService{
		prediction: domain.Prediction{ID: "p1", Status: domain.PredictionStatusResolved, PartialSettlement: true},
		err:        domain.ErrPartialSettlement,
	}
	mux := newPredictionMux(svc)

	body := `{"caller_id":"u1","winning_option_id":"o1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions/p1/resolve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var got domain.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.PartialSettlement {
		t.Fatal("partial settlement flag missing from response")
	}
}

func TestPlaceBetMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrMarketNotOpen, http.StatusConflict},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrLocalEconomyNotWagerable, http.StatusBadRequest},
		{domain.ErrEconomyUnavailable, http.StatusBadGateway},
	}

	for _, tc := range cases {
		mux := newPredictionMux(&stubPredictionService{err: tc.err})
		body := `{"user_id":"u1","option_id":"o1","economy_id":"x","amount":50}`
		req := httptest.NewRequest(http.MethodPost, "/api/predictions/p1/bets", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestPlaceBetReturnsBet(t *testing.T) {
	svc := &stubPredictionService{bet: domain.Bet{ID: "b1", Amount: 50}}
	mux := newPredictionMux(svc)

	body := `{"user_id":"u1","option_id":"o1","economy_id":"x","amount":50}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions/p1/bets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestLockIsIdempotentOverHTTP(t *testing.T) {
	svc := &stubPredictionService{}
	mux := newPredictionMux(svc)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/predictions/p1/lock", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	if svc.lockCalls != 2 {
		t.Fatalf("lock calls = %d", svc.lockCalls)
	}
}
