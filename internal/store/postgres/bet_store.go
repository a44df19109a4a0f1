package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelinor/wagerbot/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Create inserts a new bet.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (
			id, prediction_id, option_id, user_id, economy_id, amount,
			escrow_transfer_id, settlement_transfer_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`
	_, err := s.pool.Exec(ctx, query,
		b.ID, b.PredictionID, b.OptionID, b.UserID, b.EconomyID, b.Amount,
		b.EscrowTransferID, b.SettlementTransferID, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create bet %s: %w", b.ID, err)
	}
	return nil
}

// SetSettlementTransfer attaches the settlement transfer to the bet, marking
// it settled.
func (s *BetStore) SetSettlementTransfer(ctx context.Context, id, transferID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET settlement_transfer_id = $1 WHERE id = $2`,
		transferID, id)
	if err != nil {
		return fmt.Errorf("postgres: set settlement transfer on bet %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const betSelectCols = `id, prediction_id, option_id, user_id, economy_id, amount,
	escrow_transfer_id, COALESCE(settlement_transfer_id::text, ''), created_at`

func scanBetFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Bet, error) {
	var b domain.Bet
	err := scanner.Scan(
		&b.ID, &b.PredictionID, &b.OptionID, &b.UserID, &b.EconomyID, &b.Amount,
		&b.EscrowTransferID, &b.SettlementTransferID, &b.CreatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}

func scanBetRows(rows pgx.Rows) ([]domain.Bet, error) {
	var bs []domain.Bet
	for rows.Next() {
		b, err := scanBetFromRow(rows)
		if err != nil {
			return nil, err
		}
		bs = append(bs, b)
	}
	return bs, rows.Err()
}

// GetByID retrieves a single bet by ID.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE id = $1`, id)

	b, err := scanBetFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return b, nil
}

// ListByPrediction returns every bet on a prediction in placement order.
func (s *BetStore) ListByPrediction(ctx context.Context, predictionID string) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE prediction_id = $1 ORDER BY created_at`,
		predictionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for prediction %s: %w", predictionID, err)
	}
	defer rows.Close()

	bs, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets: %w", err)
	}
	return bs, nil
}

// ListByUser returns a user's bets, newest first.
func (s *BetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE user_id = $1
		ORDER BY created_at DESC`
	args := []any{userID}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list bets for user %s: %w", userID, err)
	}
	defer rows.Close()

	bs, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets: %w", err)
	}
	return bs, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
