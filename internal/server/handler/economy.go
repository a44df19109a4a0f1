package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/avelinor/wagerbot/internal/domain"
)

// EconomyRegistry defines the registry methods the economy handler requires.
type EconomyRegistry interface {
	List() []domain.Economy
	Get(id string) (domain.Economy, error)
	Ledger(id string) (domain.Ledger, error)
}

// EconomyHandler serves economy and balance endpoints.
type EconomyHandler struct {
	registry EconomyRegistry
	logger   *slog.Logger
}

// NewEconomyHandler creates an EconomyHandler with the given registry and
// logger.
func NewEconomyHandler(registry EconomyRegistry, logger *slog.Logger) *EconomyHandler {
	return &EconomyHandler{
		registry: registry,
		logger:   logHandler(logger, "economy"),
	}
}

type listEconomiesResponse struct {
	Economies []domain.Economy `json:"economies"`
}

// ListEconomies returns every registered economy.
// GET /api/economies
func (h *EconomyHandler) ListEconomies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listEconomiesResponse{Economies: h.registry.List()})
}

type balanceResponse struct {
	EconomyID string `json:"economy_id"`
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
}

// GetBalance returns a user's balance in one economy, reaching through to the
// remote API for external economies.
// GET /api/economies/{id}/balances/{user_id}
func (h *EconomyHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	economyID := pathParam(r, "id")
	userID := pathParam(r, "user_id")
	if economyID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing economy id or user id")
		return
	}

	ledger, err := h.registry.Ledger(economyID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownEconomy) {
			writeError(w, http.StatusNotFound, "unknown economy")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: resolve ledger failed",
			slog.String("economy", economyID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to resolve economy")
		return
	}

	balance, err := ledger.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrEconomyUnavailable) {
			writeError(w, http.StatusBadGateway, "economy unavailable")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get balance failed",
			slog.String("economy", economyID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		EconomyID: economyID,
		UserID:    userID,
		Balance:   balance,
	})
}
