package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelinor/wagerbot/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given connection pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Create inserts a new transfer record.
func (s *TransferStore) Create(ctx context.Context, rec domain.TransferRecord) error {
	const query = `
		INSERT INTO transfers (
			id, from_economy, to_economy, user_id, amount,
			status, reason, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.FromEconomy, rec.ToEconomy, rec.UserID, rec.Amount,
		string(rec.Status), rec.Reason, rec.CreatedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create transfer %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus moves a record to the given status, stamping completed_at when
// the status is terminal or compensation-pending. The WHERE clause keeps
// terminal records immutable.
func (s *TransferStore) UpdateStatus(ctx context.Context, id string, status domain.TransferStatus) error {
	var query string
	if status.Terminal() || status == domain.TransferStatusCompensationPending {
		query = `UPDATE transfers SET status = $1, completed_at = NOW()
			WHERE id = $2 AND status NOT IN ('committed', 'rolled_back')`
	} else {
		query = `UPDATE transfers SET status = $1
			WHERE id = $2 AND status NOT IN ('committed', 'rolled_back')`
	}

	tag, err := s.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update transfer status %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Distinguish an immutable record from a missing row.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transfers WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check transfer %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("transfer record %s: %w", id, domain.ErrTransferFinal)
}

const transferSelectCols = `id, from_economy, to_economy, user_id, amount,
	status, reason, created_at, completed_at`

func scanTransferFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.TransferRecord, error) {
	var rec domain.TransferRecord
	var status string
	err := scanner.Scan(
		&rec.ID, &rec.FromEconomy, &rec.ToEconomy, &rec.UserID, &rec.Amount,
		&status, &rec.Reason, &rec.CreatedAt, &rec.CompletedAt,
	)
	if err != nil {
		return domain.TransferRecord{}, err
	}
	rec.Status = domain.TransferStatus(status)
	return rec, nil
}

func scanTransferRows(rows pgx.Rows) ([]domain.TransferRecord, error) {
	var recs []domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransferFromRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// GetByID retrieves a single transfer record by ID.
func (s *TransferStore) GetByID(ctx context.Context, id string) (domain.TransferRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transferSelectCols+` FROM transfers WHERE id = $1`, id)

	rec, err := scanTransferFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.TransferRecord{}, domain.ErrNotFound
		}
		return domain.TransferRecord{}, fmt.Errorf("postgres: get transfer %s: %w", id, err)
	}
	return rec, nil
}

// ListByUser returns the user's transfer records, newest first.
func (s *TransferStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	return s.list(ctx, `user_id = $1`, userID, opts)
}

// ListByStatus returns records in the given status, newest first.
func (s *TransferStore) ListByStatus(ctx context.Context, status domain.TransferStatus, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	return s.list(ctx, `status = $1`, string(status), opts)
}

func (s *TransferStore) list(ctx context.Context, where string, arg any, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	query := `SELECT ` + transferSelectCols + ` FROM transfers WHERE ` + where
	args := []any{arg}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers: %w", err)
	}
	defer rows.Close()

	recs, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transfers: %w", err)
	}
	return recs, nil
}

// ListTerminalBefore returns committed/rolled-back/failed records completed
// before the cutoff.
func (s *TransferStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.TransferRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transferSelectCols+` FROM transfers
		 WHERE status IN ('committed', 'rolled_back', 'failed')
		   AND completed_at IS NOT NULL AND completed_at < $1
		 ORDER BY completed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal transfers: %w", err)
	}
	defer rows.Close()

	recs, err := scanTransferRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal transfers: %w", err)
	}
	return recs, nil
}

// Compile-time interface check.
var _ domain.TransferStore = (*TransferStore)(nil)
