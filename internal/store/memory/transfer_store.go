package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// TransferStore implements domain.TransferStore in memory.
type TransferStore struct {
	mu      sync.Mutex
	records map[string]domain.TransferRecord
	order   []string // insertion order for stable listings
}

// NewTransferStore creates an empty TransferStore.
func NewTransferStore() *TransferStore {
	return &TransferStore{records: make(map[string]domain.TransferRecord)}
}

// Create inserts a new transfer record.
func (s *TransferStore) Create(ctx context.Context, rec domain.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return nil
}

// UpdateStatus moves a record to the given status, stamping completed_at when
// the status is terminal or compensation-pending. Records in a terminal
// status are immutable.
func (s *TransferStore) UpdateStatus(ctx context.Context, id string, status domain.TransferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("transfer record %s is %s: %w", id, rec.Status, domain.ErrTransferFinal)
	}
	rec.Status = status
	if status.Terminal() || status == domain.TransferStatusCompensationPending {
		now := time.Now().UTC()
		rec.CompletedAt = &now
	}
	s.records[id] = rec
	return nil
}

// GetByID retrieves a record by ID.
func (s *TransferStore) GetByID(ctx context.Context, id string) (domain.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.TransferRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// ListByUser returns the user's records, newest first.
func (s *TransferStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	return s.list(func(r domain.TransferRecord) bool { return r.UserID == userID }, opts), nil
}

// ListByStatus returns records in the given status, newest first.
func (s *TransferStore) ListByStatus(ctx context.Context, status domain.TransferStatus, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	return s.list(func(r domain.TransferRecord) bool { return r.Status == status }, opts), nil
}

// ListTerminalBefore returns terminal records completed before the cutoff.
func (s *TransferStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.TransferRecord, error) {
	return s.list(func(r domain.TransferRecord) bool {
		return r.Status.Terminal() && r.CompletedAt != nil && r.CompletedAt.Before(before)
	}, domain.ListOpts{}), nil
}

func (s *TransferStore) list(match func(domain.TransferRecord) bool, opts domain.ListOpts) []domain.TransferRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.TransferRecord
	for _, id := range s.order {
		if rec := s.records[id]; match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts)
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface check.
var _ domain.TransferStore = (*TransferStore)(nil)
