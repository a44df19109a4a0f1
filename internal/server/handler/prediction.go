package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// PredictionService defines the methods the prediction handler requires from
// the market engine. It is declared locally so the handler package does not
// depend on the concrete engine.
type PredictionService interface {
	CreatePrediction(ctx context.Context, creatorID, question, category string, labels []string, bettingEndsAt time.Time) (domain.Prediction, error)
	GetPrediction(ctx context.Context, predictionID string) (domain.Prediction, error)
	ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error)
	ListResolved(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error)
	Lock(ctx context.Context, predictionID string) error
	Resolve(ctx context.Context, predictionID, callerID, winningOptionID string) (domain.Prediction, error)
	Refund(ctx context.Context, predictionID, callerID string) (domain.Prediction, error)
	PlaceBet(ctx context.Context, predictionID, userID, optionID, economyID string, amount int64) (domain.Bet, error)
	ListPredictionBets(ctx context.Context, predictionID string) ([]domain.Bet, error)
}

// PredictionHandler serves the market lifecycle HTTP endpoints.
type PredictionHandler struct {
	markets PredictionService
	logger  *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler with the given service and
// logger.
func NewPredictionHandler(markets PredictionService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		markets: markets,
		logger:  logHandler(logger, "prediction"),
	}
}

type createPredictionRequest struct {
	CreatorID     string    `json:"creator_id"`
	Question      string    `json:"question"`
	Category      string    `json:"category"`
	Options       []string  `json:"options"`
	BettingEndsAt time.Time `json:"betting_ends_at"`
}

type listPredictionsResponse struct {
	Predictions []domain.Prediction `json:"predictions"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// CreatePrediction creates a new market from a JSON body.
// POST /api/predictions
func (h *PredictionHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req createPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.CreatorID == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, "creator_id and question are required")
		return
	}

	p, err := h.markets.CreatePrediction(r.Context(), req.CreatorID, req.Question, req.Category, req.Options, req.BettingEndsAt)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		// Validation failures come back as plain errors from the engine.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// ListPredictions returns predictions filtered by status.
// GET /api/predictions?status=open|resolved&limit=50&offset=0
func (h *PredictionHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		ps  []domain.Prediction
		err error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "", "open":
		ps, err = h.markets.ListOpen(r.Context(), opts)
	case "resolved":
		ps, err = h.markets.ListResolved(r.Context(), opts)
	default:
		writeError(w, http.StatusBadRequest, "status must be open or resolved")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list predictions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	if ps == nil {
		ps = []domain.Prediction{}
	}
	writeJSON(w, http.StatusOK, listPredictionsResponse{
		Predictions: ps,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

// GetPrediction returns a single market by its ID.
// GET /api/predictions/{id}
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	p, err := h.markets.GetPrediction(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get prediction failed",
			slog.String("prediction_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get prediction")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Lock closes betting on a market ahead of its deadline. Idempotent.
// POST /api/predictions/{id}/lock
func (h *PredictionHandler) Lock(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	if err := h.markets.Lock(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "prediction is busy, try again")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: lock prediction failed",
			slog.String("prediction_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to lock prediction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "locked",
		"prediction_id": id,
	})
}

type resolveRequest struct {
	CallerID        string `json:"caller_id"`
	WinningOptionID string `json:"winning_option_id"`
}

// Resolve settles a locked market on the winning option.
// POST /api/predictions/{id}/resolve
func (h *PredictionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.CallerID == "" || req.WinningOptionID == "" {
		writeError(w, http.StatusBadRequest, "caller_id and winning_option_id are required")
		return
	}

	p, err := h.markets.Resolve(r.Context(), id, req.CallerID, req.WinningOptionID)
	if err != nil && !errors.Is(err, domain.ErrPartialSettlement) {
		h.writeSettlementError(w, r, "resolve", id, err)
		return
	}

	// A partial settlement still closed the market; report the final state
	// with the flag set rather than an error status.
	writeJSON(w, http.StatusOK, p)
}

type refundRequest struct {
	CallerID string `json:"caller_id"`
}

// Refund cancels a market and returns every stake.
// POST /api/predictions/{id}/refund
func (h *PredictionHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.CallerID == "" {
		writeError(w, http.StatusBadRequest, "caller_id is required")
		return
	}

	p, err := h.markets.Refund(r.Context(), id, req.CallerID)
	if err != nil && !errors.Is(err, domain.ErrPartialSettlement) {
		h.writeSettlementError(w, r, "refund", id, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// writeSettlementError maps resolve/refund failures onto HTTP statuses.
func (h *PredictionHandler) writeSettlementError(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "prediction not found")
	case errors.Is(err, domain.ErrNotCreator):
		writeError(w, http.StatusForbidden, "only the creator may do this")
	case errors.Is(err, domain.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, "unknown option")
	case errors.Is(err, domain.ErrMarketNotLocked):
		writeError(w, http.StatusConflict, "market is not in a settleable state")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "prediction is busy, try again")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("prediction_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

type placeBetRequest struct {
	UserID    string `json:"user_id"`
	OptionID  string `json:"option_id"`
	EconomyID string `json:"economy_id"`
	Amount    int64  `json:"amount"`
}

// PlaceBet escrows a stake on an option.
// POST /api/predictions/{id}/bets
func (h *PredictionHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" || req.OptionID == "" || req.EconomyID == "" {
		writeError(w, http.StatusBadRequest, "user_id, option_id and economy_id are required")
		return
	}

	b, err := h.markets.PlaceBet(r.Context(), id, req.UserID, req.OptionID, req.EconomyID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "prediction not found")
		case errors.Is(err, domain.ErrMarketNotOpen):
			writeError(w, http.StatusConflict, "betting is closed")
		case errors.Is(err, domain.ErrUnknownOption):
			writeError(w, http.StatusBadRequest, "unknown option")
		case errors.Is(err, domain.ErrUnknownEconomy):
			writeError(w, http.StatusBadRequest, "unknown economy")
		case errors.Is(err, domain.ErrLocalEconomyNotWagerable):
			writeError(w, http.StatusBadRequest, "local economy cannot be wagered")
		case errors.Is(err, domain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, domain.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limited")
		case errors.Is(err, domain.ErrEconomyUnavailable):
			writeError(w, http.StatusBadGateway, "economy unavailable")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place bet failed",
				slog.String("prediction_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place bet")
		}
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

type listBetsResponse struct {
	Bets []domain.Bet `json:"bets"`
}

// ListPredictionBets returns every bet on a market.
// GET /api/predictions/{id}/bets
func (h *PredictionHandler) ListPredictionBets(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	bets, err := h.markets.ListPredictionBets(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bets failed",
			slog.String("prediction_id", id),
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
