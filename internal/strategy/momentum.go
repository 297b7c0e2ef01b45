package strategy

import (
	"fmt"

	"market-replay-lab/internal/backtest"
	"market-replay-lab/internal/domain"
)

// MomentumStrategy follows short-term drift in traded prices: when the
// last N trades have moved far enough in one direction, join the move.
type MomentumStrategy struct {
	Lookback      int     // trades considered for the drift window
	MinDriftTicks float64 // minimum drift over the window, in ticks
}

// NewMomentumStrategy creates a new MomentumStrategy.
func NewMomentumStrategy(lookback int, minDriftTicks float64) *MomentumStrategy {
	return &MomentumStrategy{
		Lookback:      lookback,
		MinDriftTicks: minDriftTicks,
	}
}

// ID returns the strategy identifier including parameters.
func (s *MomentumStrategy) ID() string {
	return fmt.Sprintf("MOMENTUM_n%d_d%.1f", s.Lookback, s.MinDriftTicks)
}

// Evaluate measures traded-price drift across the lookback window.
// Fewer trades than the window, or a zero tick size, yield HOLD.
func (s *MomentumStrategy) Evaluate(ctx *backtest.Context) domain.Signal {
	trades := ctx.RecentTrades
	if len(trades) < s.Lookback {
		return domain.SignalHold
	}

	tick := ctx.Book.TickSize()
	if tick.IsZero() {
		return domain.SignalHold
	}

	window := trades[len(trades)-s.Lookback:]
	first := window[0].Price
	last := window[len(window)-1].Price

	driftTicks, _ := last.Sub(first).Div(tick).Float64()
	switch {
	case driftTicks >= s.MinDriftTicks:
		return domain.SignalBuy
	case driftTicks <= -s.MinDriftTicks:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// Ensure MomentumStrategy implements Strategy
var _ Strategy = (*MomentumStrategy)(nil)
