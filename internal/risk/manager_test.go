package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
)

func testParams() domain.BacktestParameters {
	p := domain.DefaultParameters()
	p.StopLossPoints = 4
	p.ContractMultiplier = 5
	p.FeePerSide = 0
	return p
}

func seededBook() *book.Book {
	return book.NewSeeded(decimal.New(25, -2), decimal.NewFromInt(100), 3, 10, 0)
}

func TestEnforce_FlatPositionIsNoOp(t *testing.T) {
	m := NewManager(testParams())
	require.Nil(t, m.Enforce(0, -10_000, seededBook(), 1))
}

func TestEnforce_WithinThresholdHolds(t *testing.T) {
	m := NewManager(testParams())
	// Stop threshold for 2 contracts: 4 * 5 * 2 = 40; take: 8 * 5 * 2 = 80.
	require.Nil(t, m.Enforce(2, -40, seededBook(), 1))
	require.Nil(t, m.Enforce(2, 80, seededBook(), 1))
}

func TestEnforce_LongBreachSellsAtBestBid(t *testing.T) {
	m := NewManager(testParams())
	b := seededBook()

	tr := m.Enforce(2, -41, b, 7)
	require.NotNil(t, tr)
	require.Equal(t, domain.TradeSideSell, tr.Side)
	require.EqualValues(t, 2, tr.Size)
	require.Equal(t, domain.TradeReasonStopLoss, tr.Reason)

	bb, _ := b.BestBid()
	require.True(t, tr.Price.Equal(bb.Price))
	require.Equal(t, -41.0, tr.PnL)
	require.EqualValues(t, 7, tr.Timestamp)
}

func TestEnforce_ShortBreachBuysAtBestAsk(t *testing.T) {
	m := NewManager(testParams())
	b := seededBook()

	tr := m.Enforce(-3, -61, b, 1)
	require.NotNil(t, tr)
	require.Equal(t, domain.TradeSideBuy, tr.Side)
	require.EqualValues(t, 3, tr.Size)

	ba, _ := b.BestAsk()
	require.True(t, tr.Price.Equal(ba.Price))
}

func TestEnforce_TakeProfitBreachFlattens(t *testing.T) {
	// Take threshold for 1 contract: 8 * 5 * 1 = 40.
	m := NewManager(testParams())
	b := seededBook()

	require.Nil(t, m.Enforce(1, 40, b, 1))

	tr := m.Enforce(1, 41, b, 2)
	require.NotNil(t, tr)
	require.Equal(t, domain.TradeSideSell, tr.Side)
	require.Equal(t, domain.TradeReasonTakeProfit, tr.Reason)
	require.Equal(t, 41.0, tr.PnL)
}

func TestEnforce_NoTakeProfitRunawayGainStopsOut(t *testing.T) {
	// Without a take-profit the stop threshold bounds both directions, so
	// a runaway mark still flattens.
	p := testParams()
	p.TakeProfitPoints = 0
	m := NewManager(p)

	tr := m.Enforce(1, 21, seededBook(), 1)
	require.NotNil(t, tr)
	require.Equal(t, domain.TradeReasonStopLoss, tr.Reason)
}

func TestEnforce_FeeReducesClosePnL(t *testing.T) {
	p := testParams()
	p.FeePerSide = 2
	m := NewManager(p)

	tr := m.Enforce(2, -41, seededBook(), 1)
	require.NotNil(t, tr)
	require.Equal(t, -41.0-4.0, tr.PnL)
}

func TestEnforce_EmptyOppositeSideCannotClose(t *testing.T) {
	m := NewManager(testParams())
	b := book.New(decimal.New(25, -2))

	require.Nil(t, m.Enforce(2, -1000, b, 1))
	require.Nil(t, m.Enforce(-2, -1000, b, 1))
}
