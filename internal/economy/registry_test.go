package economy

import (
	"context"
	"errors"
	"testing"

	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/ledger"
	"github.com/avelinor/wagerbot/internal/store/memory"
)

func testEntries(balances domain.BalanceStore) []Entry {
	return []Entry{
		{
			Economy: domain.Economy{ID: "drip", DisplayName: "Drip", Debitable: true, Creditable: true},
			Ledger:  ledger.NewStoreLedger(balances, "drip"),
		},
		{
			Economy: domain.Economy{ID: "home", DisplayName: "Home", Creditable: true, Local: true},
			Ledger:  ledger.NewStoreLedger(balances, "home"),
		},
	}
}

func TestNewRegistryValidation(t *testing.T) {
	balances := memory.NewBalanceStore()
	l := ledger.NewStoreLedger(balances, "a")

	cases := []struct {
		name    string
		entries []Entry
	}{
		{"empty id", []Entry{{Economy: domain.Economy{}, Ledger: l}}},
		{"escrow namespace", []Entry{{Economy: domain.Economy{ID: domain.EscrowEconomyID("p1")}, Ledger: l}}},
		{"duplicate id", []Entry{
			{Economy: domain.Economy{ID: "a"}, Ledger: l},
			{Economy: domain.Economy{ID: "a"}, Ledger: l},
		}},
		{"nil ledger", []Entry{{Economy: domain.Economy{ID: "a"}}}},
		{"two locals", []Entry{
			{Economy: domain.Economy{ID: "a", Local: true}, Ledger: l},
			{Economy: domain.Economy{ID: "b", Local: true}, Ledger: l},
		}},
	}
	for _, tc := range cases {
		if _, err := NewRegistry(tc.entries, balances); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	balances := memory.NewBalanceStore()
	reg, err := NewRegistry(testEntries(balances), balances)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	eco, err := reg.Get("drip")
	if err != nil {
		t.Fatalf("get drip: %v", err)
	}
	if !eco.Debitable || eco.Local {
		t.Fatalf("drip descriptor = %+v", eco)
	}

	if _, err := reg.Get("nowhere"); !errors.Is(err, domain.ErrUnknownEconomy) {
		t.Fatalf("unknown economy: %v", err)
	}
	if _, err := reg.Ledger("nowhere"); !errors.Is(err, domain.ErrUnknownEconomy) {
		t.Fatalf("unknown ledger: %v", err)
	}

	local, ok := reg.Local()
	if !ok || local.ID != "home" {
		t.Fatalf("local = %+v ok=%v", local, ok)
	}
	if got := len(reg.List()); got != 2 {
		t.Fatalf("list = %d entries, want 2", got)
	}
}

func TestRegistryResolvesEscrowDynamically(t *testing.T) {
	ctx := context.Background()
	balances := memory.NewBalanceStore()
	reg, err := NewRegistry(testEntries(balances), balances)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	escrowID := domain.EscrowEconomyID("p1")
	eco, err := reg.Get(escrowID)
	if err != nil {
		t.Fatalf("get escrow: %v", err)
	}
	if !eco.Debitable || !eco.Creditable || eco.Local {
		t.Fatalf("escrow descriptor = %+v", eco)
	}

	// The escrow ledger pools funds across users on the balance store.
	l, err := reg.Ledger(escrowID)
	if err != nil {
		t.Fatalf("escrow ledger: %v", err)
	}
	if err := l.Credit(ctx, "u1", 30); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(ctx, "u2", 30); err != nil {
		t.Fatalf("pooled debit: %v", err)
	}
}
