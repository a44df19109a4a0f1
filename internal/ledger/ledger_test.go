package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/store/memory"
)

func TestStoreLedgerKeysPerUser(t *testing.T) {
	ctx := context.Background()
	balances := memory.NewBalanceStore()
	l := NewStoreLedger(balances, "drip")

	if err := l.Credit(ctx, "u1", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(ctx, "u1", 40); err != nil {
		t.Fatalf("debit: %v", err)
	}

	bal, err := l.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 60 {
		t.Fatalf("balance = %d, want 60", bal)
	}

	// Another user starts at zero and cannot spend u1's funds.
	if err := l.Debit(ctx, "u2", 1); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("debit u2: %v, want ErrInsufficientFunds", err)
	}
}

func TestPooledLedgerSharesOneBalance(t *testing.T) {
	ctx := context.Background()
	balances := memory.NewBalanceStore()
	l := NewPooledLedger(balances, domain.EscrowEconomyID("p1"))

	// Credits under different users land in the same pool.
	if err := l.Credit(ctx, "u1", 100); err != nil {
		t.Fatalf("credit u1: %v", err)
	}
	if err := l.Credit(ctx, "u2", 100); err != nil {
		t.Fatalf("credit u2: %v", err)
	}

	// u1 can draw more than they put in: payouts come from the whole pool.
	if err := l.Debit(ctx, "u1", 150); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, err := l.Balance(ctx, "anyone")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 50 {
		t.Fatalf("pooled balance = %d, want 50", bal)
	}

	if err := l.Debit(ctx, "u2", 51); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("overdraw: %v, want ErrInsufficientFunds", err)
	}
}
