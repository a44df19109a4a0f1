package domain

import "strings"

// escrowPrefix namespaces the per-prediction escrow pseudo-economies so they
// can never collide with a configured economy ID.
const escrowPrefix = "escrow:"

// Economy describes one independently owned integer point ledger. Economies
// are registered once at startup and immutable afterwards.
type Economy struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	// Debitable reports whether value may be taken out of this economy.
	Debitable bool `json:"debitable"`
	// Creditable reports whether value may be paid into this economy.
	Creditable bool `json:"creditable"`
	// Local marks the bot's own ledger. The local economy may receive
	// transfers but is never wagerable in a market.
	Local bool `json:"local"`
}

// EscrowEconomyID returns the escrow pseudo-economy ID for a prediction.
// Escrowed stakes for a market live under this ID in the local ledger store.
func EscrowEconomyID(predictionID string) string {
	return escrowPrefix + predictionID
}

// IsEscrowEconomy reports whether id names a per-prediction escrow account.
func IsEscrowEconomy(id string) bool {
	return strings.HasPrefix(id, escrowPrefix)
}
