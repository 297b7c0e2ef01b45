package backtest

import (
	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
)

// RecentTradeWindow is the number of TRADE events exposed to strategies.
const RecentTradeWindow = 10

// Context is the read-only view a strategy receives on each tick. The
// book reference is shared for efficiency; strategies must not mutate it.
// Params carries the run configuration so strategies can read thresholds
// like the take-profit distance.
type Context struct {
	Book          *book.Book
	RecentTrades  []*domain.MarketEvent // most recent last
	Position      int64
	UnrealizedPnL float64
	Capital       float64
	Params        domain.BacktestParameters
}

// StrategyFn evaluates one tick and returns an action. The engine retains
// no state on behalf of the function; from the engine's perspective it is
// a pure function of the context. Panics are contained per tick and
// treated as HOLD.
type StrategyFn func(ctx *Context) domain.Signal
