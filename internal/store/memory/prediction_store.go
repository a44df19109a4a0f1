package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// PredictionStore implements domain.PredictionStore in memory.
type PredictionStore struct {
	mu          sync.Mutex
	predictions map[string]domain.Prediction
}

// NewPredictionStore creates an empty PredictionStore.
func NewPredictionStore() *PredictionStore {
	return &PredictionStore{predictions: make(map[string]domain.Prediction)}
}

// Create inserts a new prediction.
func (s *PredictionStore) Create(ctx context.Context, p domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.predictions[p.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.predictions[p.ID] = p
	return nil
}

// GetByID retrieves a prediction by ID.
func (s *PredictionStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.predictions[id]
	if !ok {
		return domain.Prediction{}, domain.ErrNotFound
	}
	return p, nil
}

// TransitionStatus atomically moves the prediction from one status to
// another. The whole check-and-set happens under the store mutex.
func (s *PredictionStore) TransitionStatus(ctx context.Context, id string, from, to domain.PredictionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.predictions[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	s.predictions[id] = p
	return true, nil
}

// SetResolution records the winning option and resolution time.
func (s *PredictionStore) SetResolution(ctx context.Context, id, optionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.predictions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ResolvedOptionID = optionID
	p.ResolvedAt = &at
	s.predictions[id] = p
	return nil
}

// SetPartialSettlement flags the prediction as partially settled.
func (s *PredictionStore) SetPartialSettlement(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.predictions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.PartialSettlement = true
	s.predictions[id] = p
	return nil
}

// ListByStatus returns predictions in the given status ordered by betting
// deadline, soonest first.
func (s *PredictionStore) ListByStatus(ctx context.Context, status domain.PredictionStatus, opts domain.ListOpts) ([]domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Prediction
	for _, p := range s.predictions {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BettingEndsAt.Before(out[j].BettingEndsAt)
	})
	return paginate(out, opts), nil
}

// ListSettledBefore returns terminal predictions resolved before the cutoff.
func (s *PredictionStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Prediction
	for _, p := range s.predictions {
		if p.Status.Terminal() && p.ResolvedAt != nil && p.ResolvedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResolvedAt.Before(*out[j].ResolvedAt)
	})
	return out, nil
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
