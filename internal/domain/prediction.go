package domain

import "time"

// PredictionStatus is the lifecycle state of a prediction market.
//
// The stored state machine is open -> locked -> settling -> {resolved,
// refunded}. Settling is a persistence-level claim: exactly one settlement
// (resolve or refund) holds it while its payout transfers run, which is what
// serializes concurrent terminal transitions. Reads treat settling as locked.
type PredictionStatus string

const (
	PredictionStatusOpen     PredictionStatus = "open"
	PredictionStatusLocked   PredictionStatus = "locked"
	PredictionStatusSettling PredictionStatus = "settling"
	PredictionStatusResolved PredictionStatus = "resolved"
	PredictionStatusRefunded PredictionStatus = "refunded"
)

// Terminal reports whether the status is absorbing.
func (s PredictionStatus) Terminal() bool {
	return s == PredictionStatusResolved || s == PredictionStatusRefunded
}

// Option is one possible outcome of a prediction. Options are fixed at
// creation time.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Prediction is a user-created market. Question, options and creator are
// immutable after creation.
type Prediction struct {
	ID                 string           `json:"id"`
	CreatorID          string           `json:"creator_id"`
	Question           string           `json:"question"`
	Category           string           `json:"category,omitempty"`
	Options            []Option         `json:"options"`
	Status             PredictionStatus `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	BettingEndsAt      time.Time        `json:"betting_ends_at"`
	ResolutionDeadline time.Time        `json:"resolution_deadline"`
	ResolvedOptionID   string           `json:"resolved_option_id,omitempty"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
	// PartialSettlement is set when one or more settlement transfers failed
	// during resolve/refund. The market still closes; the flagged bets can be
	// retried individually via their settlement transfer records.
	PartialSettlement bool `json:"partial_settlement,omitempty"`
}

// Option returns the option with the given ID, if it belongs to the
// prediction.
func (p Prediction) Option(optionID string) (Option, bool) {
	for _, o := range p.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return Option{}, false
}

// EscrowEconomy returns the ID of this prediction's escrow pseudo-economy.
func (p Prediction) EscrowEconomy() string {
	return EscrowEconomyID(p.ID)
}

// Bet is a single wager. A Bet exists if and only if its escrow transfer is
// committed, so the sum of bets per economy always equals the escrow balance
// for that economy until settlement drains it.
type Bet struct {
	ID               string `json:"id"`
	PredictionID     string `json:"prediction_id"`
	OptionID         string `json:"option_id"`
	UserID           string `json:"user_id"`
	EconomyID        string `json:"economy_id"`
	Amount           int64  `json:"amount"`
	EscrowTransferID string `json:"escrow_transfer_id"`
	// SettlementTransferID is empty until the bet is paid out or refunded.
	SettlementTransferID string    `json:"settlement_transfer_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Settled reports whether the bet has a settlement transfer attached.
func (b Bet) Settled() bool {
	return b.SettlementTransferID != ""
}
