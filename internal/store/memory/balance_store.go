// Package memory implements the domain store interfaces with mutex-guarded
// maps. It backs tests and the single-node mode that runs without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/avelinor/wagerbot/internal/domain"
)

type balanceKey struct {
	economy string
	user    string
}

// BalanceStore implements domain.BalanceStore in memory. A single mutex
// serializes all mutations, which trivially satisfies the per-(economy, user)
// atomicity requirement.
type BalanceStore struct {
	mu       sync.Mutex
	balances map[balanceKey]int64
}

// NewBalanceStore creates an empty BalanceStore.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{balances: make(map[balanceKey]int64)}
}

// Balance returns the user's balance in the economy; zero for unknown users.
func (s *BalanceStore) Balance(ctx context.Context, economyID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey{economyID, userID}], nil
}

// Credit adds amount to the balance.
func (s *BalanceStore) Credit(ctx context.Context, economyID, userID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{economyID, userID}] += amount
	return nil
}

// Debit removes amount from the balance, failing with ErrInsufficientFunds
// before any mutation if the balance would go negative.
func (s *BalanceStore) Debit(ctx context.Context, economyID, userID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{economyID, userID}
	if s.balances[key] < amount {
		return domain.ErrInsufficientFunds
	}
	s.balances[key] -= amount
	return nil
}

// EconomyTotal sums every balance held under the economy.
func (s *BalanceStore) EconomyTotal(ctx context.Context, economyID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for k, v := range s.balances {
		if k.economy == economyID {
			total += v
		}
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.BalanceStore = (*BalanceStore)(nil)
