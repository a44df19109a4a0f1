// Package scheduler fires the time-based market transitions: lock at the
// betting deadline and automatic refund at the resolution deadline. Timers
// are derived from the persisted prediction timestamps, so a restart
// reconstructs them by rehydrating from the store; deadlines already in the
// past fire immediately.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/market"
)

// Engine is the slice of the market engine the scheduler drives.
type Engine interface {
	Lock(ctx context.Context, predictionID string) error
	Refund(ctx context.Context, predictionID, callerID string) (domain.Prediction, error)
}

// Scheduler owns one pending timer per prediction. It is not a data owner:
// every firing goes through the engine, whose idempotent transitions make a
// late or duplicate timer harmless.
type Scheduler struct {
	engine      Engine
	predictions domain.PredictionStore
	bus         domain.SignalBus
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a Scheduler. bus may be nil; new predictions then only get
// timers on the next Rehydrate.
func New(engine Engine, predictions domain.PredictionStore, bus domain.SignalBus, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:      engine,
		predictions: predictions,
		bus:         bus,
		logger:      logger.With(slog.String("component", "scheduler")),
		now:         func() time.Time { return time.Now().UTC() },
		timers:      make(map[string]*time.Timer),
	}
}

// Run rehydrates timers from the store, then follows market events until ctx
// is cancelled. All pending timers are stopped on the way out.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Rehydrate(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if s.bus != nil {
		g.Go(func() error { return s.watchEvents(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		s.stopAll()
		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Rehydrate rebuilds timers for every non-terminal prediction in the store.
func (s *Scheduler) Rehydrate(ctx context.Context) error {
	for _, status := range []domain.PredictionStatus{domain.PredictionStatusOpen, domain.PredictionStatusLocked} {
		ps, err := s.predictions.ListByStatus(ctx, status, domain.ListOpts{})
		if err != nil {
			return fmt.Errorf("scheduler: rehydrate %s: %w", status, err)
		}
		for _, p := range ps {
			s.Track(ctx, p)
		}
	}
	return nil
}

// Track arms the next timer for a prediction based on its current state.
// Terminal predictions have their pending timer, if any, cancelled.
func (s *Scheduler) Track(ctx context.Context, p domain.Prediction) {
	switch p.Status {
	case domain.PredictionStatusOpen:
		s.arm(ctx, p.ID, p.BettingEndsAt, s.fireLock)
	case domain.PredictionStatusLocked, domain.PredictionStatusSettling:
		s.arm(ctx, p.ID, p.ResolutionDeadline, s.fireRefund)
	default:
		s.cancel(p.ID)
	}
}

// arm replaces the prediction's pending timer with one firing at the given
// time. A past deadline fires immediately.
func (s *Scheduler) arm(ctx context.Context, predictionID string, at time.Time, fire func(context.Context, string)) {
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[predictionID]; ok {
		t.Stop()
	}
	s.timers[predictionID] = time.AfterFunc(delay, func() {
		fire(ctx, predictionID)
	})

	s.logger.DebugContext(ctx, "timer armed",
		slog.String("prediction_id", predictionID),
		slog.Duration("delay", delay),
	)
}

func (s *Scheduler) cancel(predictionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[predictionID]; ok {
		t.Stop()
		delete(s.timers, predictionID)
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// fireLock closes betting, then arms the automatic refund for the grace
// window. A lost race with a manual transition is not an error.
func (s *Scheduler) fireLock(ctx context.Context, predictionID string) {
	if err := s.engine.Lock(ctx, predictionID); err != nil {
		s.logger.ErrorContext(ctx, "scheduled lock failed",
			slog.String("prediction_id", predictionID),
			slog.String("error", err.Error()),
		)
		return
	}

	p, err := s.predictions.GetByID(ctx, predictionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled lock reload failed",
			slog.String("prediction_id", predictionID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.Track(ctx, p)
}

// fireRefund returns all stakes for a market whose creator never resolved it.
func (s *Scheduler) fireRefund(ctx context.Context, predictionID string) {
	s.cancel(predictionID)
	if _, err := s.engine.Refund(ctx, predictionID, ""); err != nil {
		// The creator may have resolved or refunded first.
		if errors.Is(err, domain.ErrMarketNotLocked) {
			return
		}
		s.logger.ErrorContext(ctx, "automatic refund failed",
			slog.String("prediction_id", predictionID),
			slog.String("error", err.Error()),
		)
	}
}

// watchEvents follows the market event channel so predictions created or
// transitioned after startup get their timers without another rehydrate.
func (s *Scheduler) watchEvents(ctx context.Context) error {
	events, err := s.bus.Subscribe(ctx, market.EventsChannel)
	if err != nil {
		return fmt.Errorf("scheduler: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, payload)
		}
	}
}

func (s *Scheduler) handleEvent(ctx context.Context, payload []byte) {
	var ev market.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.logger.WarnContext(ctx, "bad event payload", slog.String("error", err.Error()))
		return
	}

	switch ev.Type {
	case "prediction_created", "prediction_locked":
		p, err := s.predictions.GetByID(ctx, ev.PredictionID)
		if err != nil {
			s.logger.WarnContext(ctx, "event prediction lookup failed",
				slog.String("prediction_id", ev.PredictionID),
				slog.String("error", err.Error()),
			)
			return
		}
		s.Track(ctx, p)
	case "prediction_resolved", "prediction_refunded":
		s.cancel(ev.PredictionID)
	}
}
