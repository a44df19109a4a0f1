package domain

import "context"

// Ledger is the capability interface through which every economy, local or
// external, is reached. Implementations must make Debit atomic with respect
// to concurrent calls on the same user so a race can never drive a balance
// negative; the non-negativity check happens at commit time, never in the
// caller.
//
// Debit returns ErrInsufficientFunds when the balance is too low and
// ErrEconomyUnavailable when the economy cannot be reached. Credit returns
// ErrEconomyUnavailable on failure.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64) error
	Credit(ctx context.Context, userID string, amount int64) error
}
