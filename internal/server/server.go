// Package server is the headless HTTP + WebSocket API for the wager bot.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/server/handler"
	"github.com/avelinor/wagerbot/internal/server/middleware"
	"github.com/avelinor/wagerbot/internal/server/ws"
)

// apiRateLimit caps requests per client IP when a rate limiter is wired in.
const (
	apiRateLimit  = 120
	apiRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Predictions *handler.PredictionHandler
	Bets        *handler.BetHandler
	Transfers   *handler.TransferHandler
	Economies   *handler.EconomyHandler
	Audit       *handler.AuditHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil, in which case per-IP rate limiting
// is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Prediction market lifecycle.
	mux.HandleFunc("GET /api/predictions", handlers.Predictions.ListPredictions)
	mux.HandleFunc("POST /api/predictions", handlers.Predictions.CreatePrediction)
	mux.HandleFunc("GET /api/predictions/{id}", handlers.Predictions.GetPrediction)
	mux.HandleFunc("POST /api/predictions/{id}/lock", handlers.Predictions.Lock)
	mux.HandleFunc("POST /api/predictions/{id}/resolve", handlers.Predictions.Resolve)
	mux.HandleFunc("POST /api/predictions/{id}/refund", handlers.Predictions.Refund)
	mux.HandleFunc("GET /api/predictions/{id}/bets", handlers.Predictions.ListPredictionBets)
	mux.HandleFunc("POST /api/predictions/{id}/bets", handlers.Predictions.PlaceBet)

	// Cross-market bet history.
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)

	// Transfers.
	mux.HandleFunc("GET /api/transfers", handlers.Transfers.ListTransfers)
	mux.HandleFunc("POST /api/transfers", handlers.Transfers.CreateTransfer)
	mux.HandleFunc("GET /api/transfers/unreconciled", handlers.Transfers.ListUnreconciled)
	mux.HandleFunc("GET /api/transfers/{id}", handlers.Transfers.GetTransfer)
	mux.HandleFunc("POST /api/transfers/{id}/retry", handlers.Transfers.RetryTransfer)
	mux.HandleFunc("POST /api/transfers/{id}/reconcile", handlers.Transfers.ReconcileTransfer)

	// Economies and balances.
	mux.HandleFunc("GET /api/economies", handlers.Economies.ListEconomies)
	mux.HandleFunc("GET /api/economies/{id}/balances/{user_id}", handlers.Economies.GetBalance)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, apiRateLimit, apiRateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
