// Package risk enforces position exit limits during a run. It is the
// terminal safety net: when the stop-loss or take-profit threshold is
// breached the entire position is flattened at the best available opposite
// price, regardless of additional slippage.
package risk

import (
	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
)

// Manager enforces the configured stop-loss and take-profit once per
// tick.
type Manager struct {
	params domain.BacktestParameters
}

// NewManager creates a manager for the given run parameters.
func NewManager(params domain.BacktestParameters) *Manager {
	return &Manager{params: params}
}

// Enforce checks the open position against the exit thresholds and
// returns a closing trade when one is breached, or nil. Thresholds scale
// with position size: a loss flattens when -unrealized exceeds
// stopLossPoints * multiplier * |position|, a gain when unrealized exceeds
// the same product of takeProfitPoints. With takeProfitPoints == 0 the
// stop-loss threshold bounds both directions, so a runaway mark either
// way still flattens.
//
// The close fills at the best opposite price. When that side of the book
// is empty the position cannot be flattened this tick and nil is returned;
// the check fires again on the next tick.
func (m *Manager) Enforce(position int64, unrealized float64, b *book.Book, now int64) *domain.Trade {
	if position == 0 {
		return nil
	}

	absPos := position
	if absPos < 0 {
		absPos = -absPos
	}
	stop := m.params.StopLossPoints * m.params.ContractMultiplier * float64(absPos)

	reason := domain.TradeReasonStopLoss
	switch {
	case unrealized < 0:
		if -unrealized <= stop {
			return nil
		}
	case m.params.TakeProfitPoints > 0:
		take := m.params.TakeProfitPoints * m.params.ContractMultiplier * float64(absPos)
		if unrealized <= take {
			return nil
		}
		reason = domain.TradeReasonTakeProfit
	default:
		if unrealized <= stop {
			return nil
		}
	}

	var side domain.TradeSide
	var lvl *book.Level
	var ok bool
	if position > 0 {
		side = domain.TradeSideSell
		lvl, ok = b.BestBid()
	} else {
		side = domain.TradeSideBuy
		lvl, ok = b.BestAsk()
	}
	if !ok {
		return nil
	}

	fee := m.params.FeePerSide * float64(absPos)
	return &domain.Trade{
		Timestamp: now,
		Side:      side,
		Price:     lvl.Price,
		Size:      absPos,
		PnL:       unrealized - fee,
		Reason:    reason,
	}
}
