package strategy

import (
	"fmt"

	"market-replay-lab/internal/backtest"
	"market-replay-lab/internal/domain"
)

// ImbalanceStrategy trades top-of-book size imbalance: a book that is
// heavily bid tends to tick up, a heavily offered one down.
type ImbalanceStrategy struct {
	Threshold float64 // bid share of top-of-book size above which to buy, (0.5, 1)
}

// NewImbalanceStrategy creates a new ImbalanceStrategy.
func NewImbalanceStrategy(threshold float64) *ImbalanceStrategy {
	return &ImbalanceStrategy{Threshold: threshold}
}

// ID returns the strategy identifier including parameters.
func (s *ImbalanceStrategy) ID() string {
	return fmt.Sprintf("IMBALANCE_t%.2f", s.Threshold)
}

// Evaluate compares the bid share of top-of-book size against the
// threshold. One-sided or empty books yield HOLD.
func (s *ImbalanceStrategy) Evaluate(ctx *backtest.Context) domain.Signal {
	bid, okBid := ctx.Book.BestBid()
	ask, okAsk := ctx.Book.BestAsk()
	if !okBid || !okAsk {
		return domain.SignalHold
	}

	total := bid.Size + ask.Size
	if total == 0 {
		return domain.SignalHold
	}

	share := float64(bid.Size) / float64(total)
	switch {
	case share > s.Threshold:
		return domain.SignalBuy
	case share < 1-s.Threshold:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// Ensure ImbalanceStrategy implements Strategy
var _ Strategy = (*ImbalanceStrategy)(nil)
