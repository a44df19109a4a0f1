package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// Event type names used for filtering via the notify.events config list.
const (
	EventBettingEnded         = "betting_ended"
	EventResolved             = "resolved"
	EventAutoRefunded         = "auto_refunded"
	EventUnreconciledTransfer = "unreconciled_transfer"
)

// MarketEvents adapts the Notifier to the typed lifecycle callbacks the
// market engine and the transfer coordinator expect. Delivery failures are
// logged by the underlying Notifier; callbacks never propagate them back to
// the settlement path.
type MarketEvents struct {
	n *Notifier
}

// NewMarketEvents wraps a Notifier with the typed event surface.
func NewMarketEvents(n *Notifier) *MarketEvents {
	return &MarketEvents{n: n}
}

// BettingEnded announces that a market has locked.
func (m *MarketEvents) BettingEnded(ctx context.Context, p domain.Prediction) {
	msg := fmt.Sprintf("%q is locked. Bets are in; waiting on the creator to resolve by %s.",
		p.Question, p.ResolutionDeadline.Format(time.RFC1123))
	_ = m.n.Notify(ctx, EventBettingEnded, "Betting ended", msg)
}

// Resolved announces the winning option of a settled market.
func (m *MarketEvents) Resolved(ctx context.Context, p domain.Prediction, winning domain.Option) {
	msg := fmt.Sprintf("%q resolved: %s wins.", p.Question, winning.Label)
	if p.PartialSettlement {
		msg += " Some payouts could not be delivered and need attention."
	}
	_ = m.n.Notify(ctx, EventResolved, "Market resolved", msg)
}

// AutoRefunded announces that an unresolved market was refunded at its
// deadline.
func (m *MarketEvents) AutoRefunded(ctx context.Context, p domain.Prediction) {
	msg := fmt.Sprintf("%q was never resolved; all stakes have been returned.", p.Question)
	if p.PartialSettlement {
		msg += " Some refunds could not be delivered and need attention."
	}
	_ = m.n.Notify(ctx, EventAutoRefunded, "Market auto-refunded", msg)
}

// UnreconciledTransfer escalates a transfer whose compensation failed. This
// is the one event an operator must act on, so it bypasses the event filter.
func (m *MarketEvents) UnreconciledTransfer(ctx context.Context, rec domain.TransferRecord) {
	msg := fmt.Sprintf(
		"Transfer %s (%d points, %s -> %s, user %s) debited but could not credit or compensate. Manual reconciliation required.",
		rec.ID, rec.Amount, rec.FromEconomy, rec.ToEconomy, rec.UserID)
	_ = m.n.NotifyAll(ctx, "Unreconciled transfer", msg)
}
