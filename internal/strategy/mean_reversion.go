package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"market-replay-lab/internal/backtest"
	"market-replay-lab/internal/domain"
)

// minReversionTrades is the smallest sample the rolling mean is
// trusted on.
const minReversionTrades = 3

// MeanReversionStrategy fades moves away from the rolling traded-price
// mean: sell when the mid runs above it, buy when it runs below.
type MeanReversionStrategy struct {
	BandTicks float64 // distance from the rolling mean, in ticks
}

// NewMeanReversionStrategy creates a new MeanReversionStrategy.
func NewMeanReversionStrategy(bandTicks float64) *MeanReversionStrategy {
	return &MeanReversionStrategy{BandTicks: bandTicks}
}

// ID returns the strategy identifier including parameters.
func (s *MeanReversionStrategy) ID() string {
	return fmt.Sprintf("MEAN_REVERSION_b%.1f", s.BandTicks)
}

// Evaluate compares the current mid against the mean of recent traded
// prices. Thin samples or a one-sided book yield HOLD.
func (s *MeanReversionStrategy) Evaluate(ctx *backtest.Context) domain.Signal {
	trades := ctx.RecentTrades
	if len(trades) < minReversionTrades {
		return domain.SignalHold
	}

	mid, ok := ctx.Book.Mid()
	if !ok {
		return domain.SignalHold
	}

	tick := ctx.Book.TickSize()
	if tick.IsZero() {
		return domain.SignalHold
	}

	sum := decimal.Zero
	for _, tr := range trades {
		sum = sum.Add(tr.Price)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(trades))))

	deviationTicks, _ := mid.Sub(mean).Div(tick).Float64()
	switch {
	case deviationTicks >= s.BandTicks:
		return domain.SignalSell
	case deviationTicks <= -s.BandTicks:
		return domain.SignalBuy
	default:
		return domain.SignalHold
	}
}

// Ensure MeanReversionStrategy implements Strategy
var _ Strategy = (*MeanReversionStrategy)(nil)
