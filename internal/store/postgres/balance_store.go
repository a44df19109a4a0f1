package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelinor/wagerbot/internal/domain"
)

// BalanceStore implements domain.BalanceStore using PostgreSQL. Atomicity of
// concurrent debits against the same (economy, user) row is delegated to the
// database: a single conditional UPDATE either applies in full or not at all,
// and the CHECK constraint backs up the non-negativity invariant.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a new BalanceStore backed by the given connection pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Balance returns the user's balance in the economy; zero for unknown users.
func (s *BalanceStore) Balance(ctx context.Context, economyID, userID string) (int64, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM balances WHERE economy_id = $1 AND user_id = $2`,
		economyID, userID,
	).Scan(&bal)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: balance %s/%s: %w", economyID, userID, err)
	}
	return bal, nil
}

// Credit adds amount to the balance, creating the row on first use.
func (s *BalanceStore) Credit(ctx context.Context, economyID, userID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	const query = `
		INSERT INTO balances (economy_id, user_id, balance, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (economy_id, user_id)
		DO UPDATE SET balance = balances.balance + EXCLUDED.balance, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, economyID, userID, amount); err != nil {
		return fmt.Errorf("postgres: credit %s/%s: %w", economyID, userID, err)
	}
	return nil
}

// Debit removes amount from the balance. The WHERE clause makes the debit
// conditional on sufficient funds, so two racing debits can never drive the
// balance negative; the loser simply affects zero rows.
func (s *BalanceStore) Debit(ctx context.Context, economyID, userID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	const query = `
		UPDATE balances
		SET balance = balance - $3, updated_at = NOW()
		WHERE economy_id = $1 AND user_id = $2 AND balance >= $3`
	tag, err := s.pool.Exec(ctx, query, economyID, userID, amount)
	if err != nil {
		return fmt.Errorf("postgres: debit %s/%s: %w", economyID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// EconomyTotal sums every balance held under the economy.
func (s *BalanceStore) EconomyTotal(ctx context.Context, economyID string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM balances WHERE economy_id = $1`,
		economyID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: economy total %s: %w", economyID, err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.BalanceStore = (*BalanceStore)(nil)
