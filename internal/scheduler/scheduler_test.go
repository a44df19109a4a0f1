package scheduler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	memcache "github.com/avelinor/wagerbot/internal/cache/memory"
	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/market"
	memstore "github.com/avelinor/wagerbot/internal/store/memory"
)

// stubEngine applies the real state machine to the store so the scheduler's
// followup logic (arming the refund after a lock) sees consistent state.
type stubEngine struct {
	predictions *memstore.PredictionStore

	mu       sync.Mutex
	locks    []string
	refunds  []string
	locked   chan string
	refunded chan string
}

func newStubEngine(predictions *memstore.PredictionStore) *stubEngine {
	return &stubEngine{
		predictions: predictions,
		locked:      make(chan string, 8),
		refunded:    make(chan string, 8),
	}
}

func (e *stubEngine) Lock(ctx context.Context, predictionID string) error {
	if _, err := e.predictions.TransitionStatus(ctx, predictionID, domain.PredictionStatusOpen, domain.PredictionStatusLocked); err != nil {
		return err
	}
	e.mu.Lock()
	e.locks = append(e.locks, predictionID)
	e.mu.Unlock()
	e.locked <- predictionID
	return nil
}

func (e *stubEngine) Refund(ctx context.Context, predictionID, callerID string) (domain.Prediction, error) {
	moved, err := e.predictions.TransitionStatus(ctx, predictionID, domain.PredictionStatusLocked, domain.PredictionStatusRefunded)
	if err != nil {
		return domain.Prediction{}, err
	}
	if !moved {
		return domain.Prediction{}, domain.ErrMarketNotLocked
	}
	e.mu.Lock()
	e.refunds = append(e.refunds, predictionID)
	e.mu.Unlock()
	e.refunded <- predictionID
	return e.predictions.GetByID(ctx, predictionID)
}

func (e *stubEngine) lockCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.locks)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("fired for %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer for %s never fired", want)
	}
}

func TestRehydrateFiresPastDeadlinesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	predictions := memstore.NewPredictionStore()
	engine := newStubEngine(predictions)

	// An open market whose betting deadline already passed, and a locked one
	// whose resolution deadline already passed: a restart must catch up both.
	now := time.Now().UTC()
	predictions.Create(ctx, domain.Prediction{
		ID:                 "stale-open",
		Status:             domain.PredictionStatusOpen,
		BettingEndsAt:      now.Add(-time.Hour),
		ResolutionDeadline: now.Add(-time.Minute),
	})
	predictions.Create(ctx, domain.Prediction{
		ID:                 "stale-locked",
		Status:             domain.PredictionStatusLocked,
		BettingEndsAt:      now.Add(-2 * time.Hour),
		ResolutionDeadline: now.Add(-time.Hour),
	})

	s := New(engine, predictions, nil, testLogger())
	if err := s.Rehydrate(ctx); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	defer s.stopAll()

	waitFor(t, engine.locked, "stale-open")
	// After the catch-up lock the stale resolution deadline triggers the
	// automatic refund too.
	refunds := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-engine.refunded:
			refunds[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("refunds seen so far: %v", refunds)
		}
	}
	if !refunds["stale-open"] || !refunds["stale-locked"] {
		t.Fatalf("refunds = %v, want both stale markets", refunds)
	}
}

func TestTrackArmsFutureLockTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	predictions := memstore.NewPredictionStore()
	engine := newStubEngine(predictions)
	now := time.Now().UTC()
	p := domain.Prediction{
		ID:                 "p1",
		Status:             domain.PredictionStatusOpen,
		BettingEndsAt:      now.Add(30 * time.Millisecond),
		ResolutionDeadline: now.Add(time.Hour),
	}
	predictions.Create(ctx, p)

	s := New(engine, predictions, nil, testLogger())
	defer s.stopAll()
	s.Track(ctx, p)

	if engine.lockCount() != 0 {
		t.Fatal("lock fired before the deadline")
	}
	waitFor(t, engine.locked, "p1")

	got, _ := predictions.GetByID(ctx, "p1")
	if got.Status != domain.PredictionStatusLocked {
		t.Fatalf("status = %s, want locked", got.Status)
	}
}

func TestEventsArmAndCancelTimers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	predictions := memstore.NewPredictionStore()
	engine := newStubEngine(predictions)
	bus := memcache.NewSignalBus()

	s := New(engine, predictions, bus, testLogger())
	runDone := make(chan error, 1)
	go func() { runDone <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond) // let the subscription land

	now := time.Now().UTC()
	predictions.Create(ctx, domain.Prediction{
		ID:                 "p1",
		Status:             domain.PredictionStatusOpen,
		BettingEndsAt:      now.Add(30 * time.Millisecond),
		ResolutionDeadline: now.Add(time.Hour),
	})
	publish(t, bus, market.Event{Type: "prediction_created", PredictionID: "p1"})

	waitFor(t, engine.locked, "p1")

	// A resolved event cancels the pending refund timer.
	predictions.TransitionStatus(ctx, "p1", domain.PredictionStatusLocked, domain.PredictionStatusResolved)
	publish(t, bus, market.Event{Type: "prediction_resolved", PredictionID: "p1"})
	time.Sleep(20 * time.Millisecond)

	s.mu.Lock()
	_, pending := s.timers["p1"]
	s.mu.Unlock()
	if pending {
		t.Fatal("timer still pending after terminal event")
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not exit on cancel")
	}
}

func publish(t *testing.T, bus domain.SignalBus, ev market.Event) {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := bus.Publish(context.Background(), market.EventsChannel, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
