package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/avelinor/wagerbot/internal/domain"
)

// TransferService defines the methods the transfer handler requires from the
// coordinator.
type TransferService interface {
	Transfer(ctx context.Context, fromEconomy, toEconomy, userID string, amount int64, reason string) (domain.TransferResult, error)
	Retry(ctx context.Context, recordID string) (domain.TransferResult, error)
	Reconcile(ctx context.Context, recordID string) (domain.TransferResult, error)
	Get(ctx context.Context, recordID string) (domain.TransferRecord, error)
	ListUnreconciled(ctx context.Context, opts domain.ListOpts) ([]domain.TransferRecord, error)
}

// TransferQuery is the read side used for per-user history listings.
type TransferQuery interface {
	ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TransferRecord, error)
}

// TransferHandler serves transfer-related HTTP endpoints.
type TransferHandler struct {
	transfers TransferService
	records   TransferQuery
	logger    *slog.Logger
}

// NewTransferHandler creates a TransferHandler with the given service, record
// query, and logger.
func NewTransferHandler(transfers TransferService, records TransferQuery, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		records:   records,
		logger:    logHandler(logger, "transfer"),
	}
}

type createTransferRequest struct {
	FromEconomy string `json:"from_economy"`
	ToEconomy   string `json:"to_economy"`
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
}

type listTransfersResponse struct {
	Transfers []domain.TransferRecord `json:"transfers"`
}

// CreateTransfer moves points between two economies for a user.
// POST /api/transfers
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.FromEconomy == "" || req.ToEconomy == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "from_economy, to_economy and user_id are required")
		return
	}

	result, err := h.transfers.Transfer(r.Context(), req.FromEconomy, req.ToEconomy, req.UserID, req.Amount, req.Reason)
	if err != nil {
		h.writeTransferError(w, r, "create transfer", err, result)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetTransfer returns a single transfer record.
// GET /api/transfers/{id}
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer id")
		return
	}

	rec, err := h.transfers.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transfer not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get transfer failed",
			slog.String("transfer_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get transfer")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListTransfers returns transfer history for a user, newest first.
// GET /api/transfers?user_id=...&limit=50&offset=0
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	recs, err := h.records.ListByUser(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transfers failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}

	if recs == nil {
		recs = []domain.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, listTransfersResponse{Transfers: recs})
}

// ListUnreconciled returns transfers stuck in compensation_pending.
// GET /api/transfers/unreconciled
func (h *TransferHandler) ListUnreconciled(w http.ResponseWriter, r *http.Request) {
	recs, err := h.transfers.ListUnreconciled(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list unreconciled failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list unreconciled transfers")
		return
	}

	if recs == nil {
		recs = []domain.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, listTransfersResponse{Transfers: recs})
}

// RetryTransfer re-drives a failed or rolled-back transfer as a fresh record.
// POST /api/transfers/{id}/retry
func (h *TransferHandler) RetryTransfer(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer id")
		return
	}

	result, err := h.transfers.Retry(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransferCommitted) {
			writeError(w, http.StatusConflict, "transfer already committed")
			return
		}
		h.writeTransferError(w, r, "retry transfer", err, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ReconcileTransfer makes one more compensation attempt for an unreconciled
// transfer.
// POST /api/transfers/{id}/reconcile
func (h *TransferHandler) ReconcileTransfer(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer id")
		return
	}

	result, err := h.transfers.Reconcile(r.Context(), id)
	if err != nil {
		h.writeTransferError(w, r, "reconcile transfer", err, result)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeTransferError maps coordinator failures onto HTTP statuses. The
// result, when carrying a record ID, is included so callers can track
// partially progressed transfers.
func (h *TransferHandler) writeTransferError(w http.ResponseWriter, r *http.Request, op string, err error, result domain.TransferResult) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "transfer not found")
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, domain.ErrUnknownEconomy):
		writeError(w, http.StatusBadRequest, "unknown economy")
	case errors.Is(err, domain.ErrEconomyNotDebitable), errors.Is(err, domain.ErrEconomyNotCreditable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, domain.ErrUnreconciledTransfer):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "transfer is unreconciled and needs manual attention",
			"record_id": result.RecordID,
		})
	case errors.Is(err, domain.ErrEconomyUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":     "economy unavailable",
			"record_id": result.RecordID,
		})
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
