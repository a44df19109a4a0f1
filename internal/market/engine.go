// Package market implements the prediction market engine: market lifecycle
// (create, bet, lock, resolve, refund), escrow of stakes through the transfer
// coordinator, and proportional per-economy settlement.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelinor/wagerbot/internal/domain"
)

// EventsChannel is the signal bus channel market lifecycle events are
// published on.
const EventsChannel = "market.events"

// EventsStream is the durable stream the same events are appended to.
const EventsStream = "market.events"

const (
	defaultGraceWindow   = 48 * time.Hour
	defaultLockTTL       = 10 * time.Second
	defaultMaxOptions    = 10
	defaultBetRateLimit  = 10
	defaultBetRateWindow = time.Minute
)

// Event is the payload published on the signal bus for every lifecycle
// transition and bet.
type Event struct {
	Type         string    `json:"type"`
	PredictionID string    `json:"prediction_id"`
	OptionID     string    `json:"option_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	At           time.Time `json:"at"`
}

// TransferService is the slice of the transfer coordinator the engine uses.
type TransferService interface {
	Transfer(ctx context.Context, fromEconomy, toEconomy, userID string, amount int64, reason string) (domain.TransferResult, error)
	NoOp(ctx context.Context, fromEconomy, toEconomy, userID, reason string) (domain.TransferResult, error)
}

// Registry resolves economy descriptors. Declared locally so the engine does
// not depend on the concrete registry.
type Registry interface {
	Get(id string) (domain.Economy, error)
}

// Notifier receives fire-and-forget lifecycle notifications. Delivery of the
// underlying message is the notifier's concern.
type Notifier interface {
	BettingEnded(ctx context.Context, p domain.Prediction)
	AutoRefunded(ctx context.Context, p domain.Prediction)
	Resolved(ctx context.Context, p domain.Prediction, winning domain.Option)
}

// Engine owns the full lifecycle of predictions. Per-prediction state
// transitions are serialized by a lock held only for the transition decision;
// settlement transfers run after the lock is released, guarded by the
// settling claim in the store.
type Engine struct {
	predictions domain.PredictionStore
	bets        domain.BetStore
	transfers   TransferService
	registry    Registry
	locks       domain.LockManager
	limiter     domain.RateLimiter
	bus         domain.SignalBus
	audit       domain.AuditStore
	notifier    Notifier
	cache       domain.PredictionCache
	logger      *slog.Logger

	now           func() time.Time
	graceWindow   time.Duration
	lockTTL       time.Duration
	maxOptions    int
	betRateLimit  int
	betRateWindow time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGraceWindow sets the delay between betting end and the automatic-refund
// deadline.
func WithGraceWindow(d time.Duration) Option {
	return func(e *Engine) { e.graceWindow = d }
}

// WithLockTTL sets the per-prediction lock TTL.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) { e.lockTTL = d }
}

// WithMaxOptions caps the number of options a prediction may be created with.
func WithMaxOptions(n int) Option {
	return func(e *Engine) { e.maxOptions = n }
}

// WithPredictionCache puts a read cache in front of GetPrediction. The engine
// invalidates it on every lifecycle transition.
func WithPredictionCache(c domain.PredictionCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithBetRateLimit sets the per-user bet rate limit.
func WithBetRateLimit(limit int, window time.Duration) Option {
	return func(e *Engine) {
		e.betRateLimit = limit
		e.betRateWindow = window
	}
}

// NewEngine creates an Engine. notifier and bus may be nil; notifications and
// event publishes are then skipped.
func NewEngine(
	predictions domain.PredictionStore,
	bets domain.BetStore,
	transfers TransferService,
	registry Registry,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		predictions:   predictions,
		bets:          bets,
		transfers:     transfers,
		registry:      registry,
		locks:         locks,
		limiter:       limiter,
		bus:           bus,
		audit:         audit,
		notifier:      notifier,
		logger:        logger.With(slog.String("component", "market")),
		now:           func() time.Time { return time.Now().UTC() },
		graceWindow:   defaultGraceWindow,
		lockTTL:       defaultLockTTL,
		maxOptions:    defaultMaxOptions,
		betRateLimit:  defaultBetRateLimit,
		betRateWindow: defaultBetRateWindow,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CreatePrediction validates and persists a new market in Open state. Labels
// must hold at least two distinct, non-empty entries and bettingEndsAt must be
// strictly in the future.
func (e *Engine) CreatePrediction(ctx context.Context, creatorID, question, category string, labels []string, bettingEndsAt time.Time) (domain.Prediction, error) {
	if creatorID == "" {
		return domain.Prediction{}, fmt.Errorf("market: create: empty creator")
	}
	if question == "" {
		return domain.Prediction{}, fmt.Errorf("market: create: empty question")
	}
	now := e.now()
	if !bettingEndsAt.After(now) {
		return domain.Prediction{}, fmt.Errorf("market: create: betting end %s is not in the future", bettingEndsAt.Format(time.RFC3339))
	}

	seen := make(map[string]struct{}, len(labels))
	options := make([]domain.Option, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			return domain.Prediction{}, fmt.Errorf("market: create: empty option label")
		}
		if _, dup := seen[label]; dup {
			return domain.Prediction{}, fmt.Errorf("market: create: duplicate option label %q", label)
		}
		seen[label] = struct{}{}
		options = append(options, domain.Option{ID: uuid.New().String(), Label: label})
	}
	if len(options) < 2 {
		return domain.Prediction{}, fmt.Errorf("market: create: need at least two options")
	}
	if len(options) > e.maxOptions {
		return domain.Prediction{}, fmt.Errorf("market: create: at most %d options allowed", e.maxOptions)
	}

	p := domain.Prediction{
		ID:                 uuid.New().String(),
		CreatorID:          creatorID,
		Question:           question,
		Category:           category,
		Options:            options,
		Status:             domain.PredictionStatusOpen,
		CreatedAt:          now,
		BettingEndsAt:      bettingEndsAt.UTC(),
		ResolutionDeadline: bettingEndsAt.UTC().Add(e.graceWindow),
	}
	if err := e.predictions.Create(ctx, p); err != nil {
		return domain.Prediction{}, fmt.Errorf("market: create prediction: %w", err)
	}

	e.auditLog(ctx, "prediction_created", map[string]any{
		"prediction_id":   p.ID,
		"creator_id":      p.CreatorID,
		"question":        p.Question,
		"options":         len(p.Options),
		"betting_ends_at": p.BettingEndsAt,
	})
	e.publish(ctx, Event{Type: "prediction_created", PredictionID: p.ID, At: now})

	e.logger.InfoContext(ctx, "prediction created",
		slog.String("prediction_id", p.ID),
		slog.String("creator_id", p.CreatorID),
		slog.Time("betting_ends_at", p.BettingEndsAt),
	)

	return p, nil
}

// PlaceBet escrows the stake and records a Bet. A Bet is recorded only after
// its escrow transfer commits, so a Bet's existence always means the funds
// are held. After the escrow commits the prediction's status is re-checked
// and the Bet inserted under the per-prediction lock; if betting closed in
// the meantime the stake is returned immediately.
func (e *Engine) PlaceBet(ctx context.Context, predictionID, userID, optionID, economyID string, amount int64) (domain.Bet, error) {
	if amount <= 0 {
		return domain.Bet{}, domain.ErrInvalidAmount
	}

	ok, err := e.limiter.Allow(ctx, "bet:"+userID, e.betRateLimit, e.betRateWindow)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market: bet rate limit: %w", err)
	}
	if !ok {
		return domain.Bet{}, domain.ErrRateLimited
	}

	p, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market: bet on %s: %w", predictionID, err)
	}
	if p.Status != domain.PredictionStatusOpen {
		return domain.Bet{}, domain.ErrMarketNotOpen
	}
	if _, ok := p.Option(optionID); !ok {
		return domain.Bet{}, domain.ErrUnknownOption
	}

	eco, err := e.registry.Get(economyID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market: bet economy %q: %w", economyID, err)
	}
	if eco.Local {
		return domain.Bet{}, domain.ErrLocalEconomyNotWagerable
	}

	res, err := e.transfers.Transfer(ctx, economyID, p.EscrowEconomy(), userID, amount,
		fmt.Sprintf("bet on prediction %s", p.ID))
	if err != nil {
		// No partial state: the transfer either never moved funds or already
		// compensated. Either way no Bet is recorded.
		return domain.Bet{}, err
	}

	// The stake is held from here on; the rest of the placement runs even if
	// the caller goes away.
	ctx = context.WithoutCancel(ctx)

	// The market may have locked between the status check and the escrow
	// commit. The re-check and the insert hold the per-prediction lock so a
	// settlement cannot claim the market and list its bets between the two;
	// no transfer runs while the lock is held. If betting closed, the stake
	// goes back the same way it came in.
	unlock, err := e.locks.Acquire(ctx, lockKey(predictionID), e.lockTTL)
	if err != nil {
		e.returnStake(ctx, p, userID, economyID, amount, "lock unavailable")
		return domain.Bet{}, fmt.Errorf("market: bet on %s: %w", predictionID, err)
	}

	cur, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		unlock()
		e.returnStake(ctx, p, userID, economyID, amount, "status re-check failure")
		return domain.Bet{}, fmt.Errorf("market: bet on %s: %w", predictionID, err)
	}
	if cur.Status != domain.PredictionStatusOpen {
		unlock()
		e.returnStake(ctx, p, userID, economyID, amount, "bet after close")
		return domain.Bet{}, domain.ErrMarketNotOpen
	}

	b := domain.Bet{
		ID:               uuid.New().String(),
		PredictionID:     p.ID,
		OptionID:         optionID,
		UserID:           userID,
		EconomyID:        economyID,
		Amount:           amount,
		EscrowTransferID: res.RecordID,
		CreatedAt:        e.now(),
	}
	createErr := e.bets.Create(ctx, b)
	unlock()
	if createErr != nil {
		e.returnStake(ctx, p, userID, economyID, amount, "bet record failure")
		return domain.Bet{}, fmt.Errorf("market: record bet: %w", createErr)
	}

	e.auditLog(ctx, "bet_placed", map[string]any{
		"bet_id":        b.ID,
		"prediction_id": p.ID,
		"option_id":     optionID,
		"user_id":       userID,
		"economy":       economyID,
		"amount":        amount,
		"transfer_id":   res.RecordID,
	})
	e.publish(ctx, Event{Type: "bet_placed", PredictionID: p.ID, OptionID: optionID, UserID: userID, Amount: amount, At: b.CreatedAt})

	return b, nil
}

// returnStake sends escrowed funds back to their source after a bet could not
// be recorded. A failure here is an unreconciled-transfer condition and is
// escalated by the coordinator itself.
func (e *Engine) returnStake(ctx context.Context, p domain.Prediction, userID, economyID string, amount int64, why string) {
	if _, err := e.transfers.Transfer(ctx, p.EscrowEconomy(), economyID, userID, amount,
		fmt.Sprintf("return stake on %s: %s", p.ID, why)); err != nil {
		e.logger.ErrorContext(ctx, "stake return failed",
			slog.String("prediction_id", p.ID),
			slog.String("user_id", userID),
			slog.String("economy", economyID),
			slog.Int64("amount", amount),
			slog.String("error", err.Error()),
		)
	}
}

// Lock moves an Open prediction to Locked. Idempotent: a late timer or a
// second caller finds the transition already done and returns without effect.
// The betting-ended notification fires exactly once, from the call that won
// the transition.
func (e *Engine) Lock(ctx context.Context, predictionID string) error {
	unlock, err := e.locks.Acquire(ctx, lockKey(predictionID), e.lockTTL)
	if err != nil {
		return fmt.Errorf("market: lock %s: %w", predictionID, err)
	}
	moved, err := e.predictions.TransitionStatus(ctx, predictionID, domain.PredictionStatusOpen, domain.PredictionStatusLocked)
	unlock()
	if err != nil {
		return fmt.Errorf("market: lock %s: %w", predictionID, err)
	}
	if !moved {
		return nil
	}
	e.invalidate(ctx, predictionID)

	p, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		return fmt.Errorf("market: lock %s: reload: %w", predictionID, err)
	}

	e.auditLog(ctx, "prediction_locked", map[string]any{"prediction_id": p.ID})
	e.publish(ctx, Event{Type: "prediction_locked", PredictionID: p.ID, At: e.now()})
	if e.notifier != nil {
		e.notifier.BettingEnded(ctx, p)
	}

	e.logger.InfoContext(ctx, "prediction locked", slog.String("prediction_id", p.ID))
	return nil
}

// Resolve settles a Locked prediction on the winning option. Creator only.
// The settling claim taken under the per-prediction lock is what makes a
// concurrent resolve or refund lose cleanly; the payout transfers themselves
// run without any lock held.
func (e *Engine) Resolve(ctx context.Context, predictionID, callerID, winningOptionID string) (domain.Prediction, error) {
	p, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: resolve %s: %w", predictionID, err)
	}
	if callerID != p.CreatorID {
		return domain.Prediction{}, domain.ErrNotCreator
	}
	winning, ok := p.Option(winningOptionID)
	if !ok {
		return domain.Prediction{}, domain.ErrUnknownOption
	}

	if err := e.claimSettlement(ctx, predictionID); err != nil {
		return domain.Prediction{}, err
	}

	// The settling claim is held; the payout legs run detached from the
	// caller so a disconnect cannot fail the remaining legs mid-settlement.
	ctx = context.WithoutCancel(ctx)

	now := e.now()
	if err := e.predictions.SetResolution(ctx, predictionID, winningOptionID, now); err != nil {
		return domain.Prediction{}, fmt.Errorf("market: resolve %s: set resolution: %w", predictionID, err)
	}

	bets, err := e.bets.ListByPrediction(ctx, predictionID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: resolve %s: list bets: %w", predictionID, err)
	}

	legs, dust := computeResolution(bets, winningOptionID)
	partial := e.settle(ctx, p, legs)
	for economyID, amount := range dust {
		e.auditLog(ctx, "settlement_dust", map[string]any{
			"prediction_id": p.ID,
			"economy":       economyID,
			"amount":        amount,
		})
		e.logger.InfoContext(ctx, "settlement dust burned",
			slog.String("prediction_id", p.ID),
			slog.String("economy", economyID),
			slog.Int64("amount", amount),
		)
	}

	final, err := e.finishSettlement(ctx, predictionID, domain.PredictionStatusResolved, partial)
	if err != nil {
		return domain.Prediction{}, err
	}

	e.auditLog(ctx, "prediction_resolved", map[string]any{
		"prediction_id":      p.ID,
		"winning_option":     winningOptionID,
		"bets":               len(bets),
		"partial_settlement": partial,
	})
	e.publish(ctx, Event{Type: "prediction_resolved", PredictionID: p.ID, OptionID: winningOptionID, At: now})
	if e.notifier != nil {
		e.notifier.Resolved(ctx, final, winning)
	}

	e.logger.InfoContext(ctx, "prediction resolved",
		slog.String("prediction_id", p.ID),
		slog.String("winning_option", winningOptionID),
		slog.Int("bets", len(bets)),
		slog.Bool("partial_settlement", partial),
	)

	if partial {
		return final, fmt.Errorf("market: resolve %s: %w", predictionID, domain.ErrPartialSettlement)
	}
	return final, nil
}

// Refund returns every stake to its original economy and closes the market.
// Allowed from Open (cancel) and Locked (creator refund or the automatic
// deadline refund). callerID must be the creator; an empty callerID marks the
// scheduler's automatic refund, which triggers the auto-refund notification.
func (e *Engine) Refund(ctx context.Context, predictionID, callerID string) (domain.Prediction, error) {
	p, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: refund %s: %w", predictionID, err)
	}
	automatic := callerID == ""
	if !automatic && callerID != p.CreatorID {
		return domain.Prediction{}, domain.ErrNotCreator
	}

	// A cancel from Open skips the Locked stage entirely; claim from
	// whichever non-terminal state the market is in.
	if err := e.claimRefund(ctx, predictionID); err != nil {
		return domain.Prediction{}, err
	}

	// Same detachment as Resolve: the claim is taken, every stake goes back.
	ctx = context.WithoutCancel(ctx)

	// Stamp the settlement time with no winning option so refunded markets
	// age out of the working set the same way resolved ones do.
	if err := e.predictions.SetResolution(ctx, predictionID, "", e.now()); err != nil {
		return domain.Prediction{}, fmt.Errorf("market: refund %s: set settlement time: %w", predictionID, err)
	}

	bets, err := e.bets.ListByPrediction(ctx, predictionID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: refund %s: list bets: %w", predictionID, err)
	}

	partial := e.settle(ctx, p, computeRefund(bets))

	final, err := e.finishSettlement(ctx, predictionID, domain.PredictionStatusRefunded, partial)
	if err != nil {
		return domain.Prediction{}, err
	}

	e.auditLog(ctx, "prediction_refunded", map[string]any{
		"prediction_id":      p.ID,
		"bets":               len(bets),
		"automatic":          automatic,
		"partial_settlement": partial,
	})
	e.publish(ctx, Event{Type: "prediction_refunded", PredictionID: p.ID, At: e.now()})
	if automatic && e.notifier != nil {
		e.notifier.AutoRefunded(ctx, final)
	}

	e.logger.InfoContext(ctx, "prediction refunded",
		slog.String("prediction_id", p.ID),
		slog.Int("bets", len(bets)),
		slog.Bool("automatic", automatic),
		slog.Bool("partial_settlement", partial),
	)

	if partial {
		return final, fmt.Errorf("market: refund %s: %w", predictionID, domain.ErrPartialSettlement)
	}
	return final, nil
}

// claimSettlement takes the settling claim for a resolve: the market must be
// Locked.
func (e *Engine) claimSettlement(ctx context.Context, predictionID string) error {
	unlock, err := e.locks.Acquire(ctx, lockKey(predictionID), e.lockTTL)
	if err != nil {
		return fmt.Errorf("market: settle %s: %w", predictionID, err)
	}
	defer unlock()

	moved, err := e.predictions.TransitionStatus(ctx, predictionID, domain.PredictionStatusLocked, domain.PredictionStatusSettling)
	if err != nil {
		return fmt.Errorf("market: settle %s: %w", predictionID, err)
	}
	if !moved {
		return domain.ErrMarketNotLocked
	}
	return nil
}

// claimRefund takes the settling claim for a refund from either Open or
// Locked.
func (e *Engine) claimRefund(ctx context.Context, predictionID string) error {
	unlock, err := e.locks.Acquire(ctx, lockKey(predictionID), e.lockTTL)
	if err != nil {
		return fmt.Errorf("market: refund %s: %w", predictionID, err)
	}
	defer unlock()

	for _, from := range []domain.PredictionStatus{domain.PredictionStatusLocked, domain.PredictionStatusOpen} {
		moved, err := e.predictions.TransitionStatus(ctx, predictionID, from, domain.PredictionStatusSettling)
		if err != nil {
			return fmt.Errorf("market: refund %s: %w", predictionID, err)
		}
		if moved {
			return nil
		}
	}
	return domain.ErrMarketNotLocked
}

// settle executes one transfer per leg and attaches the resulting record to
// each bet. A failed leg does not block the others. Returns whether any leg
// failed.
func (e *Engine) settle(ctx context.Context, p domain.Prediction, legs []settlementLeg) bool {
	partial := false
	for _, leg := range legs {
		if leg.Bet.Settled() {
			continue
		}

		var (
			res domain.TransferResult
			err error
		)
		switch leg.Kind {
		case settlementNone:
			res, err = e.transfers.NoOp(ctx, p.EscrowEconomy(), leg.Bet.EconomyID, leg.Bet.UserID,
				fmt.Sprintf("losing bet %s", leg.Bet.ID))
		default:
			res, err = e.transfers.Transfer(ctx, p.EscrowEconomy(), leg.Bet.EconomyID, leg.Bet.UserID, leg.Amount,
				fmt.Sprintf("%s for bet %s", leg.Kind, leg.Bet.ID))
		}
		if err != nil {
			partial = true
			e.logger.ErrorContext(ctx, "settlement leg failed",
				slog.String("prediction_id", p.ID),
				slog.String("bet_id", leg.Bet.ID),
				slog.String("kind", string(leg.Kind)),
				slog.Int64("amount", leg.Amount),
				slog.String("error", err.Error()),
			)
		}
		if res.RecordID == "" {
			continue
		}
		if err := e.bets.SetSettlementTransfer(ctx, leg.Bet.ID, res.RecordID); err != nil {
			partial = true
			e.logger.ErrorContext(ctx, "settlement record attach failed",
				slog.String("bet_id", leg.Bet.ID),
				slog.String("transfer_id", res.RecordID),
				slog.String("error", err.Error()),
			)
		}
	}
	return partial
}

// finishSettlement writes the terminal status once every leg has reached a
// terminal transfer state, flagging partial settlement first.
func (e *Engine) finishSettlement(ctx context.Context, predictionID string, terminal domain.PredictionStatus, partial bool) (domain.Prediction, error) {
	if partial {
		if err := e.predictions.SetPartialSettlement(ctx, predictionID); err != nil {
			e.logger.ErrorContext(ctx, "partial settlement flag failed",
				slog.String("prediction_id", predictionID),
				slog.String("error", err.Error()),
			)
		}
	}
	moved, err := e.predictions.TransitionStatus(ctx, predictionID, domain.PredictionStatusSettling, terminal)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: finish %s: %w", predictionID, err)
	}
	if !moved {
		return domain.Prediction{}, fmt.Errorf("market: finish %s: settling claim lost", predictionID)
	}
	e.invalidate(ctx, predictionID)
	p, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: finish %s: reload: %w", predictionID, err)
	}
	return p, nil
}

// GetPrediction returns a prediction by ID. The internal settling state is
// reported as locked.
func (e *Engine) GetPrediction(ctx context.Context, predictionID string) (domain.Prediction, error) {
	if e.cache != nil {
		if p, err := e.cache.Get(ctx, predictionID); err == nil {
			return normalize(p), nil
		}
	}
	p, err := e.predictions.GetByID(ctx, predictionID)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market: get %s: %w", predictionID, err)
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, p); err != nil {
			e.logger.WarnContext(ctx, "prediction cache set failed",
				slog.String("prediction_id", predictionID),
				slog.String("error", err.Error()),
			)
		}
	}
	return normalize(p), nil
}

// ListOpen returns open predictions.
func (e *Engine) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	ps, err := e.predictions.ListByStatus(ctx, domain.PredictionStatusOpen, opts)
	if err != nil {
		return nil, fmt.Errorf("market: list open: %w", err)
	}
	return ps, nil
}

// ListResolved returns resolved predictions.
func (e *Engine) ListResolved(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	ps, err := e.predictions.ListByStatus(ctx, domain.PredictionStatusResolved, opts)
	if err != nil {
		return nil, fmt.Errorf("market: list resolved: %w", err)
	}
	return ps, nil
}

// ListPredictionBets returns every bet on a prediction.
func (e *Engine) ListPredictionBets(ctx context.Context, predictionID string) ([]domain.Bet, error) {
	bets, err := e.bets.ListByPrediction(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("market: list bets for %s: %w", predictionID, err)
	}
	return bets, nil
}

// ListUserBets returns a user's bets across predictions.
func (e *Engine) ListUserBets(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := e.bets.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("market: list bets for user %s: %w", userID, err)
	}
	return bets, nil
}

func normalize(p domain.Prediction) domain.Prediction {
	if p.Status == domain.PredictionStatusSettling {
		p.Status = domain.PredictionStatusLocked
	}
	return p
}

func lockKey(predictionID string) string {
	return "prediction:" + predictionID
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, EventsChannel, payload); err != nil {
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
	if err := e.bus.StreamAppend(ctx, EventsStream, payload); err != nil {
		e.logger.WarnContext(ctx, "event stream append failed",
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) invalidate(ctx context.Context, predictionID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, predictionID); err != nil {
		e.logger.WarnContext(ctx, "prediction cache invalidate failed",
			slog.String("prediction_id", predictionID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
