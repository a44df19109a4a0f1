package domain

import "time"

// TransferStatus is the lifecycle state of a two-leg transfer.
type TransferStatus string

const (
	// TransferStatusPending is set before the first ledger call so a crash
	// mid-transfer leaves an inspectable record.
	TransferStatusPending TransferStatus = "pending"
	// TransferStatusCommitted means both legs succeeded.
	TransferStatusCommitted TransferStatus = "committed"
	// TransferStatusRolledBack means the credit leg failed and the
	// compensating re-credit of the source succeeded.
	TransferStatusRolledBack TransferStatus = "rolled_back"
	// TransferStatusFailed means the debit leg failed; no balance moved.
	TransferStatusFailed TransferStatus = "failed"
	// TransferStatusCompensationPending means the credit leg failed and the
	// compensation also failed. Funds are debited but not credited anywhere;
	// manual reconciliation is required.
	TransferStatusCompensationPending TransferStatus = "compensation_pending"
)

// Terminal reports whether the status is final. CompensationPending is
// deliberately not terminal: an operator reconciliation can still move it
// to rolled_back.
func (s TransferStatus) Terminal() bool {
	switch s {
	case TransferStatusCommitted, TransferStatusRolledBack, TransferStatusFailed:
		return true
	default:
		return false
	}
}

// TransferRecord is the durable audit trail of a single transfer attempt and
// the unit of idempotent retry. Immutable once Committed or RolledBack.
type TransferRecord struct {
	ID          string         `json:"id"`
	FromEconomy string         `json:"from_economy"`
	ToEconomy   string         `json:"to_economy"`
	UserID      string         `json:"user_id"`
	Amount      int64          `json:"amount"`
	Status      TransferStatus `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TransferResult is returned to callers of the coordinator.
type TransferResult struct {
	RecordID string         `json:"record_id"`
	Status   TransferStatus `json:"status"`
}
