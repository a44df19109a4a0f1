// Package transfer implements the cross-economy transfer coordinator. Every
// balance-affecting operation in the system funnels through Coordinator; no
// other component mutates a balance directly.
//
// The two ledgers of a transfer are independently owned and cannot share an
// atomic multi-row commit, so the coordinator uses compensating transactions:
// debit the source, credit the destination, and on a credit failure attempt
// exactly one compensating re-credit of the source. A compensation failure is
// a bounded, observable state (CompensationPending) that is escalated rather
// than retried forever.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelinor/wagerbot/internal/domain"
)

// Registry resolves economy IDs to descriptors and ledger adapters. Declared
// locally so the coordinator does not depend on the concrete registry.
type Registry interface {
	Get(id string) (domain.Economy, error)
	Ledger(id string) (domain.Ledger, error)
}

// Alerter escalates unreconciled transfers to an operator-facing channel.
type Alerter interface {
	UnreconciledTransfer(ctx context.Context, rec domain.TransferRecord)
}

// Coordinator executes two-leg value movements with all-or-nothing semantics.
type Coordinator struct {
	registry Registry
	records  domain.TransferStore
	audit    domain.AuditStore
	alerts   Alerter
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator. alerts may be nil, in which case
// unreconciled transfers are only logged and audited.
func NewCoordinator(
	registry Registry,
	records domain.TransferStore,
	audit domain.AuditStore,
	alerts Alerter,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		registry: registry,
		records:  records,
		audit:    audit,
		alerts:   alerts,
		logger:   logger.With(slog.String("component", "transfer")),
	}
}

// Transfer moves amount from the user's balance in fromEconomy to their
// balance in toEconomy. The record is persisted in Pending state before the
// first ledger call; once the debit has run, the transfer always reaches a
// terminal status and is never cancelled mid-flight.
//
// On failure the returned error carries the underlying cause
// (ErrInsufficientFunds, ErrEconomyUnavailable, ErrUnreconciledTransfer) and
// the result carries the record ID and final status.
func (c *Coordinator) Transfer(ctx context.Context, fromEconomy, toEconomy, userID string, amount int64, reason string) (domain.TransferResult, error) {
	if amount <= 0 {
		return domain.TransferResult{}, domain.ErrInvalidAmount
	}

	src, err := c.registry.Get(fromEconomy)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: source economy %q: %w", fromEconomy, err)
	}
	dst, err := c.registry.Get(toEconomy)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: destination economy %q: %w", toEconomy, err)
	}
	if !src.Debitable {
		return domain.TransferResult{}, fmt.Errorf("transfer: economy %q: %w", fromEconomy, domain.ErrEconomyNotDebitable)
	}
	if !dst.Creditable {
		return domain.TransferResult{}, fmt.Errorf("transfer: economy %q: %w", toEconomy, domain.ErrEconomyNotCreditable)
	}

	rec := domain.TransferRecord{
		ID:          uuid.New().String(),
		FromEconomy: fromEconomy,
		ToEconomy:   toEconomy,
		UserID:      userID,
		Amount:      amount,
		Status:      domain.TransferStatusPending,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.records.Create(ctx, rec); err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: create record: %w", err)
	}

	// The legs run detached from the caller's cancellation: once the debit
	// lands the transfer must still reach a terminal status, and a caller
	// going away mid-flight must not strand the debited funds.
	return c.execute(context.WithoutCancel(ctx), rec)
}

// execute runs both legs for an already-persisted Pending record.
func (c *Coordinator) execute(ctx context.Context, rec domain.TransferRecord) (domain.TransferResult, error) {
	srcLedger, err := c.registry.Ledger(rec.FromEconomy)
	if err != nil {
		return c.fail(ctx, rec, fmt.Errorf("transfer: source ledger %q: %w", rec.FromEconomy, err))
	}
	dstLedger, err := c.registry.Ledger(rec.ToEconomy)
	if err != nil {
		return c.fail(ctx, rec, fmt.Errorf("transfer: destination ledger %q: %w", rec.ToEconomy, err))
	}

	// Leg 1: debit the source. A failure here means no balance moved.
	if err := srcLedger.Debit(ctx, rec.UserID, rec.Amount); err != nil {
		return c.fail(ctx, rec, fmt.Errorf("transfer: debit %s: %w", rec.FromEconomy, err))
	}

	// Leg 2: credit the destination.
	if err := dstLedger.Credit(ctx, rec.UserID, rec.Amount); err != nil {
		return c.compensate(ctx, rec, srcLedger, err)
	}

	if err := c.records.UpdateStatus(ctx, rec.ID, domain.TransferStatusCommitted); err != nil {
		// The balances are already consistent; losing the status update is a
		// record-keeping failure, not a money failure.
		c.logger.ErrorContext(ctx, "commit status update failed",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	c.auditLog(ctx, "transfer_committed", rec)

	c.logger.InfoContext(ctx, "transfer committed",
		slog.String("record_id", rec.ID),
		slog.String("from", rec.FromEconomy),
		slog.String("to", rec.ToEconomy),
		slog.String("user_id", rec.UserID),
		slog.Int64("amount", rec.Amount),
	)

	return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusCommitted}, nil
}

// fail marks the record Failed and returns the debit-side failure. No credit
// was attempted, so no partial state exists.
func (c *Coordinator) fail(ctx context.Context, rec domain.TransferRecord, cause error) (domain.TransferResult, error) {
	if err := c.records.UpdateStatus(ctx, rec.ID, domain.TransferStatusFailed); err != nil {
		c.logger.ErrorContext(ctx, "failed status update failed",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	c.auditLog(ctx, "transfer_failed", rec)
	return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusFailed}, cause
}

// compensate undoes a committed debit after its paired credit failed. Exactly
// one compensation attempt is made; a second failure leaves the record in
// CompensationPending and escalates.
func (c *Coordinator) compensate(ctx context.Context, rec domain.TransferRecord, srcLedger domain.Ledger, creditErr error) (domain.TransferResult, error) {
	if compErr := srcLedger.Credit(ctx, rec.UserID, rec.Amount); compErr != nil {
		if err := c.records.UpdateStatus(ctx, rec.ID, domain.TransferStatusCompensationPending); err != nil {
			c.logger.ErrorContext(ctx, "compensation-pending status update failed",
				slog.String("record_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
		c.auditLog(ctx, "transfer_unreconciled", rec)

		c.logger.ErrorContext(ctx, "transfer unreconciled: debit taken, credit and compensation both failed",
			slog.String("record_id", rec.ID),
			slog.String("from", rec.FromEconomy),
			slog.String("to", rec.ToEconomy),
			slog.String("user_id", rec.UserID),
			slog.Int64("amount", rec.Amount),
			slog.String("credit_error", creditErr.Error()),
			slog.String("compensation_error", compErr.Error()),
		)

		if c.alerts != nil {
			rec.Status = domain.TransferStatusCompensationPending
			c.alerts.UnreconciledTransfer(ctx, rec)
		}

		return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusCompensationPending},
			fmt.Errorf("transfer: record %s: %w", rec.ID, domain.ErrUnreconciledTransfer)
	}

	if err := c.records.UpdateStatus(ctx, rec.ID, domain.TransferStatusRolledBack); err != nil {
		c.logger.ErrorContext(ctx, "rolled-back status update failed",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	c.auditLog(ctx, "transfer_rolled_back", rec)

	return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusRolledBack},
		fmt.Errorf("transfer: credit %s: %w", rec.ToEconomy, creditErr)
}

// NoOp persists a zero-amount Committed record without touching any ledger.
// Settlement uses it so a losing bet still carries a settlement record even
// though no value moves for it.
func (c *Coordinator) NoOp(ctx context.Context, fromEconomy, toEconomy, userID, reason string) (domain.TransferResult, error) {
	now := time.Now().UTC()
	rec := domain.TransferRecord{
		ID:          uuid.New().String(),
		FromEconomy: fromEconomy,
		ToEconomy:   toEconomy,
		UserID:      userID,
		Amount:      0,
		Status:      domain.TransferStatusCommitted,
		Reason:      reason,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := c.records.Create(ctx, rec); err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: create no-op record: %w", err)
	}
	return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusCommitted}, nil
}

// Retry re-drives a transfer whose previous attempt ended in Failed or
// RolledBack, by executing a fresh record with the same legs. Records that
// already moved money stay immutable: a Committed record is rejected with
// ErrTransferCommitted, a CompensationPending record must go through
// Reconcile, and a Pending record is still in flight.
func (c *Coordinator) Retry(ctx context.Context, recordID string) (domain.TransferResult, error) {
	prev, err := c.records.GetByID(ctx, recordID)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: retry %s: %w", recordID, err)
	}

	switch prev.Status {
	case domain.TransferStatusCommitted:
		return domain.TransferResult{}, fmt.Errorf("transfer: retry %s: %w", recordID, domain.ErrTransferCommitted)
	case domain.TransferStatusCompensationPending:
		return domain.TransferResult{}, fmt.Errorf("transfer: retry %s: %w", recordID, domain.ErrUnreconciledTransfer)
	case domain.TransferStatusPending:
		return domain.TransferResult{}, fmt.Errorf("transfer: retry %s: transfer still in flight", recordID)
	}

	return c.Transfer(ctx, prev.FromEconomy, prev.ToEconomy, prev.UserID, prev.Amount,
		fmt.Sprintf("retry of %s", prev.ID))
}

// Reconcile makes one more compensation attempt for a CompensationPending
// record: credit the original source back. On success the record moves to
// RolledBack. Any other status is rejected; money is never guessed into a
// final state.
func (c *Coordinator) Reconcile(ctx context.Context, recordID string) (domain.TransferResult, error) {
	rec, err := c.records.GetByID(ctx, recordID)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: reconcile %s: %w", recordID, err)
	}
	if rec.Status != domain.TransferStatusCompensationPending {
		return domain.TransferResult{}, fmt.Errorf("transfer: reconcile %s: record is %s, not compensation_pending", recordID, rec.Status)
	}

	srcLedger, err := c.registry.Ledger(rec.FromEconomy)
	if err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: reconcile %s: source ledger: %w", recordID, err)
	}

	// A cancellation between the credit and the status write would leave the
	// record CompensationPending and double-credit on the next attempt.
	ctx = context.WithoutCancel(ctx)

	if err := srcLedger.Credit(ctx, rec.UserID, rec.Amount); err != nil {
		return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusCompensationPending},
			fmt.Errorf("transfer: reconcile %s: compensation credit: %w", recordID, err)
	}

	if err := c.records.UpdateStatus(ctx, rec.ID, domain.TransferStatusRolledBack); err != nil {
		return domain.TransferResult{}, fmt.Errorf("transfer: reconcile %s: update status: %w", recordID, err)
	}
	c.auditLog(ctx, "transfer_reconciled", rec)

	c.logger.InfoContext(ctx, "transfer reconciled",
		slog.String("record_id", rec.ID),
		slog.String("from", rec.FromEconomy),
		slog.Int64("amount", rec.Amount),
	)

	return domain.TransferResult{RecordID: rec.ID, Status: domain.TransferStatusRolledBack}, nil
}

// Get returns a transfer record by ID.
func (c *Coordinator) Get(ctx context.Context, recordID string) (domain.TransferRecord, error) {
	rec, err := c.records.GetByID(ctx, recordID)
	if err != nil {
		return domain.TransferRecord{}, fmt.Errorf("transfer: get %s: %w", recordID, err)
	}
	return rec, nil
}

// ListUnreconciled returns every CompensationPending record for operator
// inspection.
func (c *Coordinator) ListUnreconciled(ctx context.Context, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	recs, err := c.records.ListByStatus(ctx, domain.TransferStatusCompensationPending, opts)
	if err != nil {
		return nil, fmt.Errorf("transfer: list unreconciled: %w", err)
	}
	return recs, nil
}

func (c *Coordinator) auditLog(ctx context.Context, event string, rec domain.TransferRecord) {
	if err := c.audit.Log(ctx, event, map[string]any{
		"record_id": rec.ID,
		"from":      rec.FromEconomy,
		"to":        rec.ToEconomy,
		"user_id":   rec.UserID,
		"amount":    rec.Amount,
		"reason":    rec.Reason,
	}); err != nil {
		c.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// IsTransferFailure reports whether err is one of the synchronous
// transfer-layer failures that leave no partial state behind.
func IsTransferFailure(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrEconomyUnavailable)
}
