// Package execution converts trading signals into simulated fills against
// the current book state, modeling latency-driven slippage and realized
// profit on closing trades.
package execution

import (
	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/latency"
)

// SlippageLatencyThresholdUs is the sampled latency above which one tick
// of adverse slippage is applied to the fill.
const SlippageLatencyThresholdUs = 50.0

// Simulator computes fills for accepted signals. It never mutates the
// book: simulated trades do not consume displayed liquidity.
type Simulator struct {
	params  domain.BacktestParameters
	latency *latency.Model // nil when latency modeling is disabled
	queue   QueueEstimator
}

// NewSimulator creates a simulator. Pass a nil latency model to disable
// latency-driven slippage.
func NewSimulator(params domain.BacktestParameters, lm *latency.Model, queue QueueEstimator) *Simulator {
	return &Simulator{params: params, latency: lm, queue: queue}
}

// TryExecute attempts a marketable fill for the signal at the opposite
// best price: a BUY crosses the ask, a SELL crosses the bid. When the side
// being crossed has no liquidity the tick is a normal no-op and nil is
// returned.
//
// Realized PnL is computed only when the trade reduces an opposing
// position, priced against the most recent trade on the entry side. A
// trade placed with a flat position opens and carries PnL == 0, whatever
// the last trade was. last may be nil when no trade has occurred yet.
func (s *Simulator) TryExecute(sig domain.Signal, b *book.Book, position int64, last *domain.Trade, now int64) *domain.Trade {
	var side domain.TradeSide
	var lvl *book.Level
	var ok bool

	switch sig {
	case domain.SignalBuy:
		side = domain.TradeSideBuy
		lvl, ok = b.BestAsk()
	case domain.SignalSell:
		side = domain.TradeSideSell
		lvl, ok = b.BestBid()
	default:
		return nil
	}
	if !ok {
		return nil
	}

	price := lvl.Price
	slippage := 0.0
	if s.latency != nil {
		if lat := s.latency.Sample(); lat > SlippageLatencyThresholdUs {
			// Adverse direction: pay up on buys, give up on sells.
			if side == domain.TradeSideBuy {
				price = price.Add(s.params.TickSize)
			} else {
				price = price.Sub(s.params.TickSize)
			}
			slippage = s.params.TickSize.InexactFloat64()
		}
	}

	size := s.params.LotSize
	closing := (side == domain.TradeSideSell && position > 0) ||
		(side == domain.TradeSideBuy && position < 0)
	pnl := 0.0
	if closing && last != nil && last.Side != side {
		var points float64
		if side == domain.TradeSideSell {
			points = price.Sub(last.Price).InexactFloat64()
		} else {
			points = last.Price.Sub(price).InexactFloat64()
		}
		commission := s.params.FeePerSide * float64(size) * 2
		pnl = points*float64(size)*s.params.ContractMultiplier - commission
	}

	return &domain.Trade{
		Timestamp: now,
		Side:      side,
		Price:     price,
		Size:      size,
		PnL:       pnl,
		Slippage:  slippage,
		QueueRank: s.queue.Estimate(lvl),
		Reason:    domain.TradeReasonSignal,
	}
}
