package domain

import "github.com/shopspring/decimal"

// TradeSide is the direction of a simulated fill.
type TradeSide string

// Trade side constants.
const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade reason codes.
const (
	TradeReasonSignal     = "SIGNAL"
	TradeReasonStopLoss   = "STOP_LOSS"
	TradeReasonTakeProfit = "TAKE_PROFIT"
)

// Trade is a simulated fill produced by the execution simulator or the
// risk manager. Immutable; appended to the run's trade log in order.
//
// PnL is realized profit and loss: it is non-zero only on trades that close
// an opposing position. Opening trades carry PnL == 0.
type Trade struct {
	Timestamp int64 // microseconds since epoch
	Side      TradeSide
	Price     decimal.Decimal
	Size      int64
	PnL       float64
	Slippage  float64 // price units, >= 0
	QueueRank int     // estimated queue position at the traded level, [1, 50]
	Reason    string  // TradeReasonSignal | TradeReasonStopLoss | TradeReasonTakeProfit
}

// SignedSize returns +Size for buys and -Size for sells.
func (t *Trade) SignedSize() int64 {
	if t.Side == TradeSideBuy {
		return t.Size
	}
	return -t.Size
}
