package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avelinor/wagerbot/internal/domain"
)

type stubLedger struct {
	balance int64
	err     error
}

func (l *stubLedger) Balance(ctx context.Context, userID string) (int64, error) {
	return l.balance, l.err
}

func (l *stubLedger) Debit(ctx context.Context, userID string, amount int64) error  { return l.err }
func (l *stubLedger) Credit(ctx context.Context, userID string, amount int64) error { return l.err }

type stubRegistry struct {
	economies []domain.Economy
	ledger    domain.Ledger
}

func (r *stubRegistry) List() []domain.Economy { return r.economies }

func (r *stubRegistry) Get(id string) (domain.Economy, error) {
	for _, e := range r.economies {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.Economy{}, domain.ErrUnknownEconomy
}

func (r *stubRegistry) Ledger(id string) (domain.Ledger, error) {
	if _, err := r.Get(id); err != nil {
		return nil, err
	}
	return r.ledger, nil
}

func newEconomyMux(reg EconomyRegistry) *http.ServeMux {
	h := NewEconomyHandler(reg, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/economies", h.ListEconomies)
	mux.HandleFunc("GET /api/economies/{id}/balances/{user_id}", h.GetBalance)
	return mux
}

func TestListEconomies(t *testing.T) {
	reg := &stubRegistry{economies: []domain.Economy{
		{ID: "house", DisplayName: "House Points", Local: true},
		{ID: "arcade", DisplayName: "Arcade Tokens", Debitable: true, Creditable: true},
	}}
	mux := newEconomyMux(reg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/economies", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp listEconomiesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Economies) != 2 {
		t.Fatalf("economies = %d, want 2", len(resp.Economies))
	}
}

func TestGetBalanceUnknownEconomy(t *testing.T) {
	mux := newEconomyMux(&stubRegistry{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/economies/nope/balances/u1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetBalanceUnavailableEconomy(t *testing.T) {
	reg := &stubRegistry{
		economies: []domain.Economy{{ID: "arcade", Debitable: true}},
		ledger:    &stubLedger{err: domain.ErrEconomyUnavailable},
	}
	mux := newEconomyMux(reg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/economies/arcade/balances/u1", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetBalanceReturnsAmount(t *testing.T) {
	reg := &stubRegistry{
		economies: []domain.Economy{{ID: "arcade", Debitable: true}},
		ledger:    &stubLedger{balance: 420},
	}
	mux := newEconomyMux(reg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/economies/arcade/balances/u1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Balance != 420 || resp.EconomyID != "arcade" || resp.UserID != "u1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
