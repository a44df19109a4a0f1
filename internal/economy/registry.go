// Package economy provides the registry that maps economy IDs to their
// descriptors and ledger adapters. The registry is built once at startup and
// read-only afterwards, so it needs no locking.
package economy

import (
	"fmt"

	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/avelinor/wagerbot/internal/ledger"
)

// Entry pairs an economy descriptor with the adapter used to reach it.
type Entry struct {
	Economy domain.Economy
	Ledger  domain.Ledger
}

// Registry resolves economy IDs to entries. Escrow pseudo-economies are
// resolved dynamically onto the balance store, everything else comes from the
// fixed set registered at construction.
type Registry struct {
	entries  map[string]Entry
	balances domain.BalanceStore
}

// NewRegistry builds a registry from the given entries. The balance store
// backs every escrow pseudo-economy. It returns an error on duplicate IDs,
// on more than one local economy, or on an entry with no ledger.
func NewRegistry(entries []Entry, balances domain.BalanceStore) (*Registry, error) {
	m := make(map[string]Entry, len(entries))
	localSeen := false
	for _, e := range entries {
		if e.Economy.ID == "" {
			return nil, fmt.Errorf("economy: entry with empty ID")
		}
		if domain.IsEscrowEconomy(e.Economy.ID) {
			return nil, fmt.Errorf("economy: %q collides with the escrow namespace", e.Economy.ID)
		}
		if _, dup := m[e.Economy.ID]; dup {
			return nil, fmt.Errorf("economy: duplicate ID %q", e.Economy.ID)
		}
		if e.Ledger == nil {
			return nil, fmt.Errorf("economy: %q has no ledger adapter", e.Economy.ID)
		}
		if e.Economy.Local {
			if localSeen {
				return nil, fmt.Errorf("economy: more than one local economy")
			}
			localSeen = true
		}
		m[e.Economy.ID] = e
	}
	return &Registry{entries: m, balances: balances}, nil
}

// Get returns the descriptor for an economy ID. Escrow IDs resolve to a
// synthetic descriptor that is debitable and creditable but never wagerable.
func (r *Registry) Get(id string) (domain.Economy, error) {
	if domain.IsEscrowEconomy(id) {
		return domain.Economy{
			ID:          id,
			DisplayName: "escrow",
			Debitable:   true,
			Creditable:  true,
		}, nil
	}
	e, ok := r.entries[id]
	if !ok {
		return domain.Economy{}, domain.ErrUnknownEconomy
	}
	return e.Economy, nil
}

// Ledger returns the ledger adapter for an economy ID.
func (r *Registry) Ledger(id string) (domain.Ledger, error) {
	if domain.IsEscrowEconomy(id) {
		return ledger.NewPooledLedger(r.balances, id), nil
	}
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrUnknownEconomy
	}
	return e.Ledger, nil
}

// List returns every registered economy descriptor. The slice is a copy;
// callers may not mutate registry state through it.
func (r *Registry) List() []domain.Economy {
	out := make([]domain.Economy, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Economy)
	}
	return out
}

// Local returns the local economy descriptor, if one was registered.
func (r *Registry) Local() (domain.Economy, bool) {
	for _, e := range r.entries {
		if e.Economy.Local {
			return e.Economy, true
		}
	}
	return domain.Economy{}, false
}
