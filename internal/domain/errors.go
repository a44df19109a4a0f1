package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Transfer layer.
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrEconomyUnavailable   = errors.New("economy unavailable")
	ErrUnknownEconomy       = errors.New("unknown economy")
	ErrEconomyNotDebitable  = errors.New("economy does not allow debits")
	ErrEconomyNotCreditable = errors.New("economy does not allow credits")
	ErrTransferCommitted    = errors.New("transfer already committed")
	ErrTransferFinal        = errors.New("transfer record is final")
	// ErrUnreconciledTransfer means a debit was taken and neither the credit
	// nor the compensating re-credit succeeded. The record stays in
	// CompensationPending until an operator reconciles it.
	ErrUnreconciledTransfer = errors.New("unreconciled transfer")

	// Market layer.
	ErrMarketNotOpen            = errors.New("market is not open for betting")
	ErrMarketNotLocked          = errors.New("market is not locked")
	ErrUnknownOption            = errors.New("unknown option")
	ErrLocalEconomyNotWagerable = errors.New("local economy cannot be wagered")
	ErrNotCreator               = errors.New("only the creator may do this")
	ErrPartialSettlement        = errors.New("partial settlement")
)
