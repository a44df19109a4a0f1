package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/avelinor/wagerbot/internal/domain"
)

// BetStore implements domain.BetStore in memory.
type BetStore struct {
	mu    sync.Mutex
	bets  map[string]domain.Bet
	order []string
}

// NewBetStore creates an empty BetStore.
func NewBetStore() *BetStore {
	return &BetStore{bets: make(map[string]domain.Bet)}
}

// Create inserts a new bet.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bets[b.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.bets[b.ID] = b
	s.order = append(s.order, b.ID)
	return nil
}

// SetSettlementTransfer attaches the settlement transfer record to a bet.
func (s *BetStore) SetSettlementTransfer(ctx context.Context, id, transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.SettlementTransferID = transferID
	s.bets[id] = b
	return nil
}

// GetByID retrieves a bet by ID.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

// ListByPrediction returns every bet on a prediction in placement order.
func (s *BetStore) ListByPrediction(ctx context.Context, predictionID string) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Bet
	for _, id := range s.order {
		if b := s.bets[id]; b.PredictionID == predictionID {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListByUser returns the user's bets, newest first.
func (s *BetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Bet
	for _, id := range s.order {
		if b := s.bets[id]; b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts), nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
