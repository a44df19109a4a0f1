package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avelinor/wagerbot/internal/domain"
)

type stubTransferService struct {
	result domain.TransferResult
	record domain.TransferRecord
	err    error
}

func (s *stubTransferService) Transfer(ctx context.Context, fromEconomy, toEconomy, userID string, amount int64, reason string) (domain.TransferResult, error) {
	return s.result, s.err
}

func (s *stubTransferService) Retry(ctx context.Context, recordID string) (domain.TransferResult, error) {
	return s.result, s.err
}

func (s *stubTransferService) Reconcile(ctx context.Context, recordID string) (domain.TransferResult, error) {
	return s.result, s.err
}

func (s *stubTransferService) Get(ctx context.Context, recordID string) (domain.TransferRecord, error) {
	return s.record, s.err
}

func (s *stubTransferService) ListUnreconciled(ctx context.Context, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []domain.TransferRecord{s.record}, nil
}

type stubTransferQuery struct {
	records []domain.TransferRecord
	err     error
}

func (s *stubTransferQuery) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	return s.records, s.err
}

func newTransferMux(svc TransferService, q TransferQuery) *http.ServeMux {
	h := NewTransferHandler(svc, q, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/transfers", h.CreateTransfer)
	mux.HandleFunc("GET /api/transfers", h.ListTransfers)
	mux.HandleFunc("GET /api/transfers/unreconciled", h.ListUnreconciled)
	mux.HandleFunc("GET /api/transfers/{id}", h.GetTransfer)
	mux.HandleFunc("POST /api/transfers/{id}/retry", h.RetryTransfer)
	mux.HandleFunc("POST /api/transfers/{id}/reconcile", h.ReconcileTransfer)
	return mux
}

func TestCreateTransferSuccess(t *testing.T) {
	svc := &stubTransferService{result: domain.TransferResult{RecordID: "t1", Status: domain.TransferStatusCommitted}}
	mux := newTransferMux(svc, &stubTransferQuery{})

	body := `{"from_economy":"x","to_economy":"y","user_id":"u1","amount":25}`
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateTransferMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrUnknownEconomy, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrUnreconciledTransfer, http.StatusConflict},
		{domain.ErrEconomyUnavailable, http.StatusBadGateway},
	}

	for _, tc := range cases {
		mux := newTransferMux(&stubTransferService{err: tc.err}, &stubTransferQuery{})
		body := `{"from_economy":"x","to_economy":"y","user_id":"u1","amount":25}`
		req := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestUnreconciledErrorIncludesRecordID(t *testing.T) {
	svc := &stubTransferService{
		result: domain.TransferResult{RecordID: "t9", Status: domain.TransferStatusCompensationPending},
		err:    domain.ErrUnreconciledTransfer,
	}
	mux := newTransferMux(svc, &stubTransferQuery{})

	body := `{"from_economy":"x","to_economy":"y","user_id":"u1","amount":25}`
	req := httptest.NewRequest(http.MethodPost, "/api/transfers", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["record_id"] != "t9" {
		t.Fatalf("record_id = %v", resp["record_id"])
	}
}

func TestRetryCommittedTransferConflicts(t *testing.T) {
	mux := newTransferMux(&stubTransferService{err: domain.ErrTransferCommitted}, &stubTransferQuery{})

	req := httptest.NewRequest(http.MethodPost, "/api/transfers/t1/retry", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestListTransfersRequiresUser(t *testing.T) {
	mux := newTransferMux(&stubTransferService{}, &stubTransferQuery{})

	req := httptest.NewRequest(http.MethodGet, "/api/transfers", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListUnreconciledReturnsRecords(t *testing.T) {
	svc := &stubTransferService{record: domain.TransferRecord{ID: "t1", Status: domain.TransferStatusCompensationPending}}
	mux := newTransferMux(svc, &stubTransferQuery{})

	req := httptest.NewRequest(http.MethodGet, "/api/transfers/unreconciled", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp listTransfersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Transfers) != 1 || resp.Transfers[0].ID != "t1" {
		t.Fatalf("transfers = %+v", resp.Transfers)
	}
}
