package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/avelinor/wagerbot/internal/domain"
)

// BetService defines the methods the bet handler requires from the market
// engine.
type BetService interface {
	ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves cross-market bet queries.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logHandler(logger, "bet"),
	}
}

// ListBets returns a user's bets across all markets, newest first.
// GET /api/bets?user_id=...&limit=50&offset=0
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required")
		return
	}

	bets, err := h.bets.ListUserBets(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list user bets failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}
