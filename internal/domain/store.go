package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BalanceStore persists the integer balances owned by this process: the local
// economy and every per-prediction escrow account. Debit must be atomic with
// respect to concurrent calls on the same (economy, user) pair and must fail
// with ErrInsufficientFunds rather than let a balance go negative.
type BalanceStore interface {
	Balance(ctx context.Context, economyID, userID string) (int64, error)
	Credit(ctx context.Context, economyID, userID string, amount int64) error
	Debit(ctx context.Context, economyID, userID string, amount int64) error
	// EconomyTotal returns the sum of all balances held under an economy.
	// Used to audit escrow accounts against the open bets on a market.
	EconomyTotal(ctx context.Context, economyID string) (int64, error)
}

// TransferStore persists transfer records.
type TransferStore interface {
	Create(ctx context.Context, rec TransferRecord) error
	// UpdateStatus moves a record to the given status, stamping completed_at
	// when the status is terminal.
	UpdateStatus(ctx context.Context, id string, status TransferStatus) error
	GetByID(ctx context.Context, id string) (TransferRecord, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]TransferRecord, error)
	ListByStatus(ctx context.Context, status TransferStatus, opts ListOpts) ([]TransferRecord, error)
	// ListTerminalBefore returns committed/rolled-back/failed records
	// completed strictly before the cutoff. Used by the archiver.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]TransferRecord, error)
}

// PredictionStore persists prediction markets.
type PredictionStore interface {
	Create(ctx context.Context, p Prediction) error
	GetByID(ctx context.Context, id string) (Prediction, error)
	// TransitionStatus atomically moves the prediction from one status to
	// another. It returns false (and no error) when the current status is not
	// `from`, and ErrNotFound when the prediction does not exist. This
	// compare-and-swap is what lets a late timer or a concurrent caller lose
	// the race cleanly.
	TransitionStatus(ctx context.Context, id string, from, to PredictionStatus) (bool, error)
	// SetResolution records the winning option and resolution time.
	SetResolution(ctx context.Context, id, optionID string, at time.Time) error
	SetPartialSettlement(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status PredictionStatus, opts ListOpts) ([]Prediction, error)
	// ListSettledBefore returns terminal predictions resolved/refunded
	// strictly before the cutoff. Used by the archiver.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Prediction, error)
}

// BetStore persists bets.
type BetStore interface {
	Create(ctx context.Context, b Bet) error
	SetSettlementTransfer(ctx context.Context, id, transferID string) error
	GetByID(ctx context.Context, id string) (Bet, error)
	ListByPrediction(ctx context.Context, predictionID string) ([]Bet, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Bet, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
