package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelinor/wagerbot/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a new PredictionStore backed by the given connection pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

// Create inserts a new prediction. Options are stored as JSONB.
func (s *PredictionStore) Create(ctx context.Context, p domain.Prediction) error {
	optionsJSON, err := json.Marshal(p.Options)
	if err != nil {
		return fmt.Errorf("postgres: marshal options: %w", err)
	}

	const query = `
		INSERT INTO predictions (
			id, creator_id, question, category, options, status,
			created_at, betting_ends_at, resolution_deadline,
			resolved_option_id, resolved_at, partial_settlement
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = s.pool.Exec(ctx, query,
		p.ID, p.CreatorID, p.Question, p.Category, optionsJSON, string(p.Status),
		p.CreatedAt, p.BettingEndsAt, p.ResolutionDeadline,
		p.ResolvedOptionID, p.ResolvedAt, p.PartialSettlement,
	)
	if err != nil {
		return fmt.Errorf("postgres: create prediction %s: %w", p.ID, err)
	}
	return nil
}

// TransitionStatus atomically moves the prediction from one status to
// another. The conditional UPDATE is the compare-and-swap: a caller holding a
// stale view affects zero rows and loses the race without corrupting state.
func (s *PredictionStore) TransitionStatus(ctx context.Context, id string, from, to domain.PredictionStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("postgres: transition prediction %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish a lost race from a missing row.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM predictions WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: check prediction %s: %w", id, err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// SetResolution records the winning option and resolution time.
func (s *PredictionStore) SetResolution(ctx context.Context, id, optionID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions SET resolved_option_id = $1, resolved_at = $2 WHERE id = $3`,
		optionID, at, id)
	if err != nil {
		return fmt.Errorf("postgres: set resolution %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPartialSettlement flags the prediction as partially settled.
func (s *PredictionStore) SetPartialSettlement(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions SET partial_settlement = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: set partial settlement %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const predictionSelectCols = `id, creator_id, question, category, options, status,
	created_at, betting_ends_at, resolution_deadline,
	resolved_option_id, resolved_at, partial_settlement`

func scanPredictionFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Prediction, error) {
	var p domain.Prediction
	var status string
	var optionsJSON []byte

	err := scanner.Scan(
		&p.ID, &p.CreatorID, &p.Question, &p.Category, &optionsJSON, &status,
		&p.CreatedAt, &p.BettingEndsAt, &p.ResolutionDeadline,
		&p.ResolvedOptionID, &p.ResolvedAt, &p.PartialSettlement,
	)
	if err != nil {
		return domain.Prediction{}, err
	}

	p.Status = domain.PredictionStatus(status)
	if err := json.Unmarshal(optionsJSON, &p.Options); err != nil {
		return domain.Prediction{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return p, nil
}

func scanPredictionRows(rows pgx.Rows) ([]domain.Prediction, error) {
	var ps []domain.Prediction
	for rows.Next() {
		p, err := scanPredictionFromRow(rows)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// GetByID retrieves a single prediction by ID.
func (s *PredictionStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionSelectCols+` FROM predictions WHERE id = $1`, id)

	p, err := scanPredictionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction %s: %w", id, err)
	}
	return p, nil
}

// ListByStatus returns predictions in the given status ordered by betting
// deadline, soonest first.
func (s *PredictionStore) ListByStatus(ctx context.Context, status domain.PredictionStatus, opts domain.ListOpts) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionSelectCols + ` FROM predictions WHERE status = $1
		ORDER BY betting_ends_at`
	args := []any{string(status)}
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
		return nil, fmt.Errorf("postgres: list predictions: %w", err)
	}
	defer rows.Close()

	ps, err := scanPredictionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan predictions: %w", err)
	}
	return ps, nil
}

// ListSettledBefore returns terminal predictions settled before the cutoff.
func (s *PredictionStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+predictionSelectCols+` FROM predictions
		 WHERE status IN ('resolved', 'refunded')
		   AND resolved_at IS NOT NULL AND resolved_at < $1
		 ORDER BY resolved_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled predictions: %w", err)
	}
	defer rows.Close()

	ps, err := scanPredictionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan settled predictions: %w", err)
	}
	return ps, nil
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
