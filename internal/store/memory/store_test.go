package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

func TestBalanceStoreDebitNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := NewBalanceStore()
	if err := s.Credit(ctx, "drip", "u1", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 100 concurrent unit debits against a balance of 100: every one must
	// either succeed or fail with insufficient funds, and the final balance
	// must be exactly zero.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Debit(ctx, "drip", "u1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 100 {
		t.Fatalf("successful debits = %d, want 100", succeeded)
	}
	bal, _ := s.Balance(ctx, "drip", "u1")
	if bal != 0 {
		t.Fatalf("balance = %d, want 0", bal)
	}
}

func TestBalanceStoreEconomyTotal(t *testing.T) {
	ctx := context.Background()
	s := NewBalanceStore()
	s.Credit(ctx, "drip", "u1", 30)
	s.Credit(ctx, "drip", "u2", 20)
	s.Credit(ctx, "other", "u1", 99)

	total, err := s.EconomyTotal(ctx, "drip")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 50 {
		t.Fatalf("total = %d, want 50", total)
	}
}

func TestTransferStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewTransferStore()
	rec := domain.TransferRecord{
		ID:          "t1",
		FromEconomy: "drip",
		ToEconomy:   "home",
		UserID:      "u1",
		Amount:      10,
		Status:      domain.TransferStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, rec); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate create: %v", err)
	}

	if err := s.UpdateStatus(ctx, "t1", domain.TransferStatusCommitted); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.TransferStatusCommitted || got.CompletedAt == nil {
		t.Fatalf("record = %+v, want committed with completed_at", got)
	}

	old, err := s.ListTerminalBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("terminal before: %v", err)
	}
	if len(old) != 1 {
		t.Fatalf("terminal records = %d, want 1", len(old))
	}

	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing get: %v", err)
	}
}

func TestTransferStoreTerminalRecordsAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := NewTransferStore()

	for _, terminal := range []domain.TransferStatus{
		domain.TransferStatusCommitted,
		domain.TransferStatusRolledBack,
	} {
		rec := domain.TransferRecord{
			ID:        "t-" + string(terminal),
			Status:    domain.TransferStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.UpdateStatus(ctx, rec.ID, terminal); err != nil {
			t.Fatalf("update to %s: %v", terminal, err)
		}

		if err := s.UpdateStatus(ctx, rec.ID, domain.TransferStatusFailed); !errors.Is(err, domain.ErrTransferFinal) {
			t.Fatalf("overwrite of %s: err = %v, want ErrTransferFinal", terminal, err)
		}
		got, _ := s.GetByID(ctx, rec.ID)
		if got.Status != terminal {
			t.Fatalf("status = %s, want %s untouched", got.Status, terminal)
		}
	}
}

func TestTransferStoreListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewTransferStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Create(ctx, domain.TransferRecord{
			ID:        string(rune('a' + i)),
			UserID:    "u1",
			Status:    domain.TransferStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	page, err := s.ListByUser(ctx, "u1", domain.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d records, want 2", len(page))
	}
	// Newest first: offset 1 skips the newest record "e".
	if page[0].ID != "d" || page[1].ID != "c" {
		t.Fatalf("page order = %s,%s, want d,c", page[0].ID, page[1].ID)
	}
}

func TestPredictionStoreTransitionIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewPredictionStore()
	s.Create(ctx, domain.Prediction{ID: "p1", Status: domain.PredictionStatusLocked})

	// Many racers, one winner.
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			moved, err := s.TransitionStatus(ctx, "p1", domain.PredictionStatusLocked, domain.PredictionStatusSettling)
			if err != nil {
				t.Errorf("transition: %v", err)
				return
			}
			if moved {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("transition winners = %d, want 1", winners)
	}
	if _, err := s.TransitionStatus(ctx, "missing", domain.PredictionStatusOpen, domain.PredictionStatusLocked); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing prediction: %v", err)
	}
}

func TestPredictionStoreSettledListing(t *testing.T) {
	ctx := context.Background()
	s := NewPredictionStore()
	early := time.Now().UTC().Add(-2 * time.Hour)
	late := time.Now().UTC().Add(-time.Minute)

	s.Create(ctx, domain.Prediction{ID: "p1", Status: domain.PredictionStatusResolved, ResolvedAt: &early})
	s.Create(ctx, domain.Prediction{ID: "p2", Status: domain.PredictionStatusRefunded, ResolvedAt: &late})
	s.Create(ctx, domain.Prediction{ID: "p3", Status: domain.PredictionStatusOpen})

	out, err := s.ListSettledBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("settled before: %v", err)
	}
	if len(out) != 1 || out[0].ID != "p1" {
		t.Fatalf("settled = %v, want just p1", out)
	}
}

func TestBetStoreSettlementAttach(t *testing.T) {
	ctx := context.Background()
	s := NewBetStore()
	s.Create(ctx, domain.Bet{ID: "b1", PredictionID: "p1", UserID: "u1", CreatedAt: time.Now()})
	s.Create(ctx, domain.Bet{ID: "b2", PredictionID: "p1", UserID: "u2", CreatedAt: time.Now()})
	s.Create(ctx, domain.Bet{ID: "b3", PredictionID: "p2", UserID: "u1", CreatedAt: time.Now()})

	if err := s.SetSettlementTransfer(ctx, "b1", "t9"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	b, err := s.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if b.SettlementTransferID != "t9" {
		t.Fatalf("settlement id = %q, want t9", b.SettlementTransferID)
	}

	byPrediction, err := s.ListByPrediction(ctx, "p1")
	if err != nil {
		t.Fatalf("by prediction: %v", err)
	}
	if len(byPrediction) != 2 {
		t.Fatalf("p1 bets = %d, want 2", len(byPrediction))
	}
	byUser, err := s.ListByUser(ctx, "u1", domain.ListOpts{})
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(byUser) != 2 {
		t.Fatalf("u1 bets = %d, want 2", len(byUser))
	}
}

func TestAuditStoreAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()
	s.Log(ctx, "first", map[string]any{"n": 1})
	s.Log(ctx, "second", map[string]any{"n": 2})

	entries, err := s.List(ctx, domain.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Event != "second" || entries[1].Event != "first" {
		t.Fatalf("order = %s,%s, want second,first", entries[0].Event, entries[1].Event)
	}
	if entries[0].ID == entries[1].ID {
		t.Fatal("entries share an ID")
	}
}
