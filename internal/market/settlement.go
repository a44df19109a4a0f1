package market

import (
	"math/big"

	"github.com/avelinor/wagerbot/internal/domain"
)

// settlementKind says why a bet receives (or does not receive) funds.
type settlementKind string

const (
	// settlementPayout is a proportional winner's share.
	settlementPayout settlementKind = "payout"
	// settlementRefund returns the exact stake; used when the bet's economy
	// had no winning stake, and for whole-market refunds.
	settlementRefund settlementKind = "refund"
	// settlementNone is a losing bet in an economy that does have winners;
	// nothing is paid.
	settlementNone settlementKind = "none"
)

// settlementLeg is one bet's share of a settlement.
type settlementLeg struct {
	Bet    domain.Bet
	Kind   settlementKind
	Amount int64
}

// economyPool aggregates the stakes of one economy on one prediction.
type economyPool struct {
	Total   int64
	Winning int64
}

// computeResolution computes per-bet settlement legs for a resolved market.
//
// Pools are computed per economy: winners are paid floor(amount * total /
// winning) from their own economy's pool only, so economies never
// cross-subsidize one another. An economy with no stake on the winning option
// has its bets refunded instead, since there is no winner to pay. The
// returned dust map holds, per economy, the rounding remainder that is
// distributed to no one.
func computeResolution(bets []domain.Bet, winningOptionID string) ([]settlementLeg, map[string]int64) {
	pools := make(map[string]*economyPool)
	for _, b := range bets {
		p := pools[b.EconomyID]
		if p == nil {
			p = &economyPool{}
			pools[b.EconomyID] = p
		}
		p.Total += b.Amount
		if b.OptionID == winningOptionID {
			p.Winning += b.Amount
		}
	}

	legs := make([]settlementLeg, 0, len(bets))
	paid := make(map[string]int64)
	for _, b := range bets {
		p := pools[b.EconomyID]
		switch {
		case p.Winning == 0:
			// No winner in this economy; every stake goes back.
			legs = append(legs, settlementLeg{Bet: b, Kind: settlementRefund, Amount: b.Amount})
		case b.OptionID == winningOptionID:
			amount := proportionalShare(b.Amount, p.Total, p.Winning)
			legs = append(legs, settlementLeg{Bet: b, Kind: settlementPayout, Amount: amount})
			paid[b.EconomyID] += amount
		default:
			legs = append(legs, settlementLeg{Bet: b, Kind: settlementNone})
		}
	}

	dust := make(map[string]int64)
	for economyID, p := range pools {
		if p.Winning == 0 {
			continue
		}
		if d := p.Total - paid[economyID]; d > 0 {
			dust[economyID] = d
		}
	}

	return legs, dust
}

// computeRefund returns one refund leg per bet for its exact original stake.
func computeRefund(bets []domain.Bet) []settlementLeg {
	legs := make([]settlementLeg, 0, len(bets))
	for _, b := range bets {
		legs = append(legs, settlementLeg{Bet: b, Kind: settlementRefund, Amount: b.Amount})
	}
	return legs
}

// proportionalShare computes floor(amount * total / winning) without
// intermediate overflow.
func proportionalShare(amount, total, winning int64) int64 {
	res := new(big.Int).Mul(big.NewInt(amount), big.NewInt(total))
	res.Quo(res, big.NewInt(winning))
	return res.Int64()
}
