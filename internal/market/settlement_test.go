package market

import (
	"testing"

	"github.com/avelinor/wagerbot/internal/domain"
)

func bet(id, optionID, userID, economyID string, amount int64) domain.Bet {
	return domain.Bet{ID: id, OptionID: optionID, UserID: userID, EconomyID: economyID, Amount: amount}
}

func legByBet(t *testing.T, legs []settlementLeg, betID string) settlementLeg {
	t.Helper()
	for _, l := range legs {
		if l.Bet.ID == betID {
			return l
		}
	}
	t.Fatalf("no leg for bet %s", betID)
	return settlementLeg{}
}

func TestComputeResolutionEvenSplit(t *testing.T) {
	bets := []domain.Bet{
		bet("b1", "A", "user1", "x", 100),
		bet("b2", "B", "user2", "x", 100),
	}

	legs, dust := computeResolution(bets, "A")

	if got := legByBet(t, legs, "b1"); got.Kind != settlementPayout || got.Amount != 200 {
		t.Fatalf("winner leg = %s/%d, want payout/200", got.Kind, got.Amount)
	}
	if got := legByBet(t, legs, "b2"); got.Kind != settlementNone || got.Amount != 0 {
		t.Fatalf("loser leg = %s/%d, want none/0", got.Kind, got.Amount)
	}
	if len(dust) != 0 {
		t.Fatalf("dust = %v, want none", dust)
	}
}

func TestComputeResolutionProportionalWithDust(t *testing.T) {
	// Pool 100, winning pool 60: payouts floor(40*100/60)=66 and
	// floor(20*100/60)=33, leaving 1 point of dust.
	bets := []domain.Bet{
		bet("b1", "A", "user1", "x", 40),
		bet("b2", "A", "user2", "x", 20),
		bet("b3", "B", "user3", "x", 40),
	}

	legs, dust := computeResolution(bets, "A")

	if got := legByBet(t, legs, "b1"); got.Amount != 66 {
		t.Fatalf("b1 payout = %d, want 66", got.Amount)
	}
	if got := legByBet(t, legs, "b2"); got.Amount != 33 {
		t.Fatalf("b2 payout = %d, want 33", got.Amount)
	}
	if got := legByBet(t, legs, "b3"); got.Kind != settlementNone {
		t.Fatalf("b3 kind = %s, want none", got.Kind)
	}
	if dust["x"] != 1 {
		t.Fatalf("dust = %v, want x:1", dust)
	}
}

func TestComputeResolutionNoWinnerEconomyRefunds(t *testing.T) {
	// Economy y has no stake on the winning option: its bet is refunded in
	// full, not burned.
	bets := []domain.Bet{
		bet("b1", "A", "user1", "x", 100),
		bet("b2", "B", "user2", "y", 50),
	}

	legs, dust := computeResolution(bets, "A")

	if got := legByBet(t, legs, "b1"); got.Kind != settlementPayout || got.Amount != 100 {
		t.Fatalf("b1 leg = %s/%d, want payout/100", got.Kind, got.Amount)
	}
	if got := legByBet(t, legs, "b2"); got.Kind != settlementRefund || got.Amount != 50 {
		t.Fatalf("b2 leg = %s/%d, want refund/50", got.Kind, got.Amount)
	}
	if len(dust) != 0 {
		t.Fatalf("dust = %v, want none", dust)
	}
}

func TestComputeResolutionEconomiesSettleIndependently(t *testing.T) {
	bets := []domain.Bet{
		bet("b1", "A", "user1", "x", 100),
		bet("b2", "B", "user2", "x", 300),
		bet("b3", "A", "user3", "y", 10),
		bet("b4", "B", "user4", "y", 10),
	}

	legs, _ := computeResolution(bets, "A")

	// x winner takes x's pool only; y winner takes y's pool only.
	if got := legByBet(t, legs, "b1"); got.Amount != 400 {
		t.Fatalf("b1 payout = %d, want 400", got.Amount)
	}
	if got := legByBet(t, legs, "b3"); got.Amount != 20 {
		t.Fatalf("b3 payout = %d, want 20", got.Amount)
	}
}

func TestComputeResolutionLargeAmountsDoNotOverflow(t *testing.T) {
	// amount * total would overflow int64; the share itself stays in range.
	huge := int64(1) << 40
	bets := []domain.Bet{
		bet("b1", "A", "user1", "x", huge),
		bet("b2", "B", "user2", "x", huge),
	}

	legs, _ := computeResolution(bets, "A")

	if got := legByBet(t, legs, "b1"); got.Amount != 2*huge {
		t.Fatalf("b1 payout = %d, want %d", got.Amount, 2*huge)
	}
}

func TestComputeRefund(t *testing.T) {
	bets := []domain.Bet{
		bet("b1", "A", "user1", "x", 70),
		bet("b2", "B", "user2", "y", 30),
	}

	legs := computeRefund(bets)

	if len(legs) != 2 {
		t.Fatalf("legs = %d, want 2", len(legs))
	}
	for _, l := range legs {
		if l.Kind != settlementRefund || l.Amount != l.Bet.Amount {
			t.Fatalf("leg %s = %s/%d, want refund of original stake %d", l.Bet.ID, l.Kind, l.Amount, l.Bet.Amount)
		}
	}
}
