// Package ledger adapts the balance store to the domain.Ledger capability
// interface. StoreLedger keys balances per user and serves the local economy;
// PooledLedger keeps a single shared balance and serves the per-prediction
// escrow accounts. Atomicity of debits is delegated to the store's
// conditional update.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/avelinor/wagerbot/internal/domain"
)

// StoreLedger is a domain.Ledger bound to one economy ID inside a
// BalanceStore.
type StoreLedger struct {
	balances  domain.BalanceStore
	economyID string
}

// NewStoreLedger creates a ledger for the given economy ID.
func NewStoreLedger(balances domain.BalanceStore, economyID string) *StoreLedger {
	return &StoreLedger{balances: balances, economyID: economyID}
}

// Balance returns the user's balance in this economy. A user with no row has
// a zero balance.
func (l *StoreLedger) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := l.balances.Balance(ctx, l.economyID, userID)
	if err != nil {
		return 0, fmt.Errorf("ledger: balance %s/%s: %w", l.economyID, userID, err)
	}
	return bal, nil
}

// Debit removes amount from the user's balance. The store enforces
// non-negativity at commit time.
func (l *StoreLedger) Debit(ctx context.Context, userID string, amount int64) error {
	if err := l.balances.Debit(ctx, l.economyID, userID, amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return err
		}
		return fmt.Errorf("ledger: debit %s/%s: %w", l.economyID, userID, err)
	}
	return nil
}

// Credit adds amount to the user's balance.
func (l *StoreLedger) Credit(ctx context.Context, userID string, amount int64) error {
	if err := l.balances.Credit(ctx, l.economyID, userID, amount); err != nil {
		return fmt.Errorf("ledger: credit %s/%s: %w", l.economyID, userID, err)
	}
	return nil
}

// pooledAccount is the single account key a PooledLedger keeps its funds
// under.
const pooledAccount = "pool"

// PooledLedger is a domain.Ledger that keeps one shared balance for the whole
// economy, regardless of which user a call names. Escrow pseudo-economies use
// it: a winner's payout is drawn from everyone's stakes, so a per-user escrow
// balance could not cover it.
type PooledLedger struct {
	balances  domain.BalanceStore
	economyID string
}

// NewPooledLedger creates a pooled ledger for the given economy ID.
func NewPooledLedger(balances domain.BalanceStore, economyID string) *PooledLedger {
	return &PooledLedger{balances: balances, economyID: economyID}
}

// Balance returns the pooled balance. The user ID is ignored.
func (l *PooledLedger) Balance(ctx context.Context, _ string) (int64, error) {
	bal, err := l.balances.Balance(ctx, l.economyID, pooledAccount)
	if err != nil {
		return 0, fmt.Errorf("ledger: pooled balance %s: %w", l.economyID, err)
	}
	return bal, nil
}

// Debit removes amount from the pooled balance.
func (l *PooledLedger) Debit(ctx context.Context, _ string, amount int64) error {
	if err := l.balances.Debit(ctx, l.economyID, pooledAccount, amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return err
		}
		return fmt.Errorf("ledger: pooled debit %s: %w", l.economyID, err)
	}
	return nil
}

// Credit adds amount to the pooled balance.
func (l *PooledLedger) Credit(ctx context.Context, _ string, amount int64) error {
	if err := l.balances.Credit(ctx, l.economyID, pooledAccount, amount); err != nil {
		return fmt.Errorf("ledger: pooled credit %s: %w", l.economyID, err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ domain.Ledger = (*StoreLedger)(nil)
	_ domain.Ledger = (*PooledLedger)(nil)
)
