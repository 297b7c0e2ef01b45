package backtest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/feed"
)

var tick = decimal.New(25, -2)

func testParams() domain.BacktestParameters {
	p := domain.DefaultParameters()
	p.FeePerSide = 0
	p.LotSize = 1
	p.ContractMultiplier = 5
	p.StopLossPoints = 1000 // keep the safety net out of the way by default
	p.TakeProfitPoints = 0
	p.Limits = domain.PositionLimits{MaxLong: 10, MaxShort: 10}
	return p
}

// eventScript builds an ordered event stream with monotonic timestamps.
type eventScript struct {
	events []*domain.MarketEvent
	ts     int64
}

func (s *eventScript) add(typ domain.EventType, side domain.BookSide, price float64, size int64) *eventScript {
	s.ts++
	s.events = append(s.events, &domain.MarketEvent{
		Timestamp: s.ts,
		Sequence:  s.ts,
		Type:      typ,
		Side:      side,
		Price:     decimal.NewFromFloat(price),
		Size:      size,
	})
	return s
}

func (s *eventScript) source() *feed.ReplaySource {
	return feed.NewReplaySource(s.events)
}

func newTestEngine(t *testing.T, params domain.BacktestParameters, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithBook(book.New(tick))}, opts...)
	e, err := NewEngine(params, opts...)
	require.NoError(t, err)
	return e
}

func TestRun_EmptyStream(t *testing.T) {
	e := newTestEngine(t, testParams())

	res, err := e.Run(context.Background(), NewStubStrategy().Fn(), feed.NewReplaySource(nil))
	require.NoError(t, err)
	require.Equal(t, domain.RunStateCompleted, res.State)
	require.Zero(t, res.TotalTrades)
	require.Zero(t, res.TotalReturnPct)
	require.Equal(t, testParams().StartCapital, res.EndCapital)
}

func TestRun_BuyThenSellRealizesPointDifference(t *testing.T) {
	params := testParams()
	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 10). // BUY fills here at 100.25
		add(domain.EventTypeCancel, domain.SideAsk, 100.25, 10).
		add(domain.EventTypeCancel, domain.SideBid, 100.00, 10).
		add(domain.EventTypeAdd, domain.SideBid, 101.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 101.25, 10). // SELL fills here at 101.00
		add(domain.EventTypeAdd, domain.SideBid, 100.75, 5)

	stub := NewStubStrategy(
		domain.SignalHold,
		domain.SignalBuy,
		domain.SignalHold,
		domain.SignalHold,
		domain.SignalHold,
		domain.SignalSell,
	)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)
	require.Equal(t, domain.RunStateCompleted, res.State)
	require.Len(t, res.Trades, 2)

	buy, sell := res.Trades[0], res.Trades[1]
	require.Equal(t, domain.TradeSideBuy, buy.Side)
	require.Zero(t, buy.PnL)
	require.Equal(t, domain.TradeSideSell, sell.Side)

	want := (101.00 - 100.25) * float64(params.LotSize) * params.ContractMultiplier
	require.InDelta(t, want, sell.PnL, 1e-9)
	require.InDelta(t, params.StartCapital+want, res.EndCapital, 1e-9)
}

func TestRun_PositionEqualsSignedTradeSum(t *testing.T) {
	params := testParams()
	script := &eventScript{}
	for i := 0; i < 20; i++ {
		script.
			add(domain.EventTypeAdd, domain.SideBid, 100.00, 2).
			add(domain.EventTypeAdd, domain.SideAsk, 100.25, 2)
	}
	stub := NewStubStrategy(
		domain.SignalBuy, domain.SignalBuy, domain.SignalSell,
		domain.SignalBuy, domain.SignalSell, domain.SignalSell,
		domain.SignalBuy,
	)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)

	// The first BUY lands on a bid-only book and cannot fill; the six
	// remaining signals all execute.
	require.Len(t, res.Trades, 6)

	var signed int64
	for _, tr := range res.Trades {
		signed += tr.SignedSize()
	}
	require.EqualValues(t, engPosition(e), signed,
		"engine position must equal the signed sum of executed trades")
}

func TestRun_PositionLimitGatesBuys(t *testing.T) {
	params := testParams()
	params.Limits.MaxLong = 2

	script := &eventScript{}
	for i := 0; i < 6; i++ {
		script.
			add(domain.EventTypeAdd, domain.SideBid, 100.00, 1).
			add(domain.EventTypeAdd, domain.SideAsk, 100.25, 1)
	}
	stub := NewStubStrategy(
		domain.SignalBuy, domain.SignalBuy, domain.SignalBuy,
		domain.SignalBuy, domain.SignalBuy, domain.SignalBuy,
	)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)

	var position int64
	for _, tr := range res.Trades {
		position += tr.SignedSize()
		require.LessOrEqual(t, position, params.Limits.MaxLong,
			"position must never exceed maxLong")
	}
	require.EqualValues(t, 2, position)
}

func TestRun_CrossedBookFailsRun(t *testing.T) {
	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 5).
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 5).
		add(domain.EventTypeAdd, domain.SideBid, 100.50, 5) // crosses

	e := newTestEngine(t, testParams())
	res, err := e.Run(context.Background(), NewStubStrategy().Fn(), script.source())
	require.ErrorIs(t, err, book.ErrCrossedBook)
	require.Nil(t, res, "failed runs return no partial results")
	require.Equal(t, domain.RunStateFailed, e.State())
}

func TestRun_MalformedEventSkippedWithWarning(t *testing.T) {
	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 5).
		add(domain.EventTypeAdd, domain.SideBid, 100.10, 5). // off tick
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 5)

	var warned []error
	e := newTestEngine(t, testParams(), WithWarnFunc(func(err error, _ *domain.MarketEvent) {
		warned = append(warned, err)
	}))

	res, err := e.Run(context.Background(), NewStubStrategy().Fn(), script.source())
	require.NoError(t, err)
	require.Equal(t, domain.RunStateCompleted, res.State)
	require.Equal(t, 1, res.EventsSkipped)
	require.Equal(t, 2, res.EventsProcessed)
	require.Len(t, warned, 1)
	require.ErrorIs(t, warned[0], book.ErrPriceOffTick)
}

func TestRun_StrategyPanicTreatedAsHold(t *testing.T) {
	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 5).
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 5).
		add(domain.EventTypeAdd, domain.SideAsk, 100.50, 5)

	calls := 0
	faulty := func(ctx *Context) domain.Signal {
		calls++
		if calls == 2 {
			panic("strategy bug")
		}
		return domain.SignalHold
	}

	warnings := 0
	e := newTestEngine(t, testParams(), WithWarnFunc(func(error, *domain.MarketEvent) { warnings++ }))

	res, err := e.Run(context.Background(), faulty, script.source())
	require.NoError(t, err, "a single bad tick must not abort the run")
	require.Equal(t, domain.RunStateCompleted, res.State)
	require.Equal(t, 3, res.EventsProcessed)
	require.Equal(t, 1, warnings)
}

func TestRun_StopProducesPartialResults(t *testing.T) {
	cfg := feed.SyntheticConfig{
		BasePrice: decimal.NewFromInt(100),
		TickSize:  tick,
		MinPrice:  decimal.NewFromInt(90),
		MaxPrice:  decimal.NewFromInt(110),
		Events:    10_000,
		Seed:      5,
	}
	src, err := feed.NewSyntheticSource(cfg)
	require.NoError(t, err)

	var e *Engine
	e = newTestEngine(t, testParams(), WithProgress(func(Progress) {
		e.Stop()
	}, 100))

	res, err := e.Run(context.Background(), NewStubStrategy().Fn(), src)
	require.NoError(t, err)
	require.Equal(t, domain.RunStateStopped, res.State)
	require.NotNil(t, res)
	require.Equal(t, 100, res.EventsProcessed,
		"stop observed at the first event boundary after the flag was set")
}

func TestRun_StopIsIdempotent(t *testing.T) {
	e := newTestEngine(t, testParams())
	e.Stop()
	e.Stop()

	res, err := e.Run(context.Background(), NewStubStrategy().Fn(), feed.NewReplaySource(nil))
	require.NoError(t, err)
	require.Equal(t, domain.RunStateStopped, res.State)
}

func TestRun_EngineIsSingleUse(t *testing.T) {
	e := newTestEngine(t, testParams())
	_, err := e.Run(context.Background(), NewStubStrategy().Fn(), feed.NewReplaySource(nil))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), NewStubStrategy().Fn(), feed.NewReplaySource(nil))
	require.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_ForcedLatencySlipsEveryTrade(t *testing.T) {
	params := testParams()
	params.UseLatency = true
	params.Latency = domain.LatencyProfile{
		Distribution: domain.DistributionUniform,
		MeanUs:       500, // always above the 50us threshold
		StdDevUs:     0,
	}

	script := &eventScript{}
	for i := 0; i < 10; i++ {
		script.
			add(domain.EventTypeAdd, domain.SideBid, 100.00, 3).
			add(domain.EventTypeAdd, domain.SideAsk, 100.50, 3)
	}
	stub := NewStubStrategy(
		domain.SignalBuy, domain.SignalSell, domain.SignalBuy, domain.SignalSell,
	)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	for i, tr := range res.Trades {
		require.Positive(t, tr.Slippage, "trade %d must carry slippage", i)
	}
}

func TestRun_StopLossFlattensPosition(t *testing.T) {
	params := testParams()
	params.StopLossPoints = 1 // threshold: 1 * 5 * 1 = 5 currency units

	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 10). // BUY at 100.25
		// Collapse the market ~2 points: unrealized loss breaches the stop.
		add(domain.EventTypeCancel, domain.SideBid, 100.00, 10).
		add(domain.EventTypeCancel, domain.SideAsk, 100.25, 10).
		add(domain.EventTypeAdd, domain.SideBid, 98.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 98.25, 10)

	stub := NewStubStrategy(domain.SignalHold, domain.SignalBuy)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	closing := res.Trades[1]
	require.Equal(t, domain.TradeReasonStopLoss, closing.Reason)
	require.Equal(t, domain.TradeSideSell, closing.Side)
	require.Negative(t, closing.PnL)

	var position int64
	for _, tr := range res.Trades {
		position += tr.SignedSize()
	}
	require.Zero(t, position, "risk close flattens the position")
}

func TestRun_DefaultBookRunsSyntheticStream(t *testing.T) {
	// The engine starts from an empty book and the synthetic stream opens
	// with its own seed depth, so the default wiring replays cleanly for
	// any corridor.
	cfg := feed.SyntheticConfig{
		BasePrice: decimal.NewFromInt(100),
		TickSize:  tick,
		MinPrice:  decimal.NewFromInt(90),
		MaxPrice:  decimal.NewFromInt(110),
		Events:    5000,
		Seed:      1,
	}
	src, err := feed.NewSyntheticSource(cfg)
	require.NoError(t, err)

	e, err := NewEngine(testParams())
	require.NoError(t, err)

	res, err := e.Run(context.Background(), NewStubStrategy().Fn(), src)
	require.NoError(t, err)
	require.Equal(t, domain.RunStateCompleted, res.State)
	require.Equal(t, 5000, res.EventsProcessed)
	require.Zero(t, res.EventsSkipped)
}

func TestRun_ReopenAfterStopLossCarriesZeroPnL(t *testing.T) {
	params := testParams()
	params.StopLossPoints = 1 // threshold: 1 * 5 * 1 = 5 currency units

	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 10). // BUY at 100.25
		add(domain.EventTypeCancel, domain.SideBid, 100.00, 10).
		add(domain.EventTypeCancel, domain.SideAsk, 100.25, 10).
		add(domain.EventTypeAdd, domain.SideBid, 98.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 98.25, 10). // stop fires here
		add(domain.EventTypeAdd, domain.SideBid, 97.75, 10)  // fresh BUY at 98.25

	stub := NewStubStrategy(
		domain.SignalHold, domain.SignalBuy,
		domain.SignalHold, domain.SignalHold, domain.SignalHold, domain.SignalHold,
		domain.SignalBuy,
	)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)
	require.Equal(t, domain.TradeReasonStopLoss, res.Trades[1].Reason)

	// The buy after the flatten opens a fresh position; nothing is
	// realized against the stop trade.
	reopen := res.Trades[2]
	require.Equal(t, domain.TradeSideBuy, reopen.Side)
	require.Equal(t, domain.TradeReasonSignal, reopen.Reason)
	require.Zero(t, reopen.PnL)
	require.Equal(t, params.StartCapital+res.Trades[1].PnL, res.EndCapital)
}

func TestRun_TakeProfitFlattensPosition(t *testing.T) {
	params := testParams()
	params.TakeProfitPoints = 1 // threshold: 1 * 5 * 1 = 5 currency units

	script := &eventScript{}
	script.
		add(domain.EventTypeAdd, domain.SideBid, 100.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 100.25, 10). // BUY at 100.25
		// Rally ~2 points: unrealized gain breaches the take-profit.
		add(domain.EventTypeCancel, domain.SideBid, 100.00, 10).
		add(domain.EventTypeCancel, domain.SideAsk, 100.25, 10).
		add(domain.EventTypeAdd, domain.SideBid, 102.00, 10).
		add(domain.EventTypeAdd, domain.SideAsk, 102.25, 10)

	stub := NewStubStrategy(domain.SignalHold, domain.SignalBuy)

	e := newTestEngine(t, params)
	res, err := e.Run(context.Background(), stub.Fn(), script.source())
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	closing := res.Trades[1]
	require.Equal(t, domain.TradeReasonTakeProfit, closing.Reason)
	require.Equal(t, domain.TradeSideSell, closing.Side)
	require.Positive(t, closing.PnL)

	var position int64
	for _, tr := range res.Trades {
		position += tr.SignedSize()
	}
	require.Zero(t, position)
}

func TestRun_EquityCurveProperties(t *testing.T) {
	cfg := feed.SyntheticConfig{
		BasePrice: decimal.NewFromInt(100),
		TickSize:  tick,
		MinPrice:  decimal.NewFromInt(90),
		MaxPrice:  decimal.NewFromInt(110),
		Events:    3000,
		Seed:      17,
	}
	src, err := feed.NewSyntheticSource(cfg)
	require.NoError(t, err)

	// Trade on top-of-book imbalance so the curve actually moves.
	strategy := func(ctx *Context) domain.Signal {
		bb, okB := ctx.Book.BestBid()
		ba, okA := ctx.Book.BestAsk()
		if !okB || !okA {
			return domain.SignalHold
		}
		if bb.Size > 3*ba.Size {
			return domain.SignalBuy
		}
		if ba.Size > 3*bb.Size {
			return domain.SignalSell
		}
		return domain.SignalHold
	}

	params := testParams()
	params.StopLossPoints = 4
	e := newTestEngine(t, params)

	res, err := e.Run(context.Background(), strategy, src)
	require.NoError(t, err)
	require.Equal(t, 3000, res.EventsProcessed)
	require.Len(t, res.EquityCurve, 3000)

	peak := params.StartCapital
	for i, p := range res.EquityCurve {
		require.GreaterOrEqual(t, p.Drawdown, 0.0, "point %d", i)
		require.LessOrEqual(t, p.Drawdown, 1.0, "point %d", i)
		if p.Equity > peak {
			peak = p.Equity
		}
		// Running peak implied by recorded drawdown never decreases.
		if p.Drawdown > 0 {
			require.Greater(t, peak, p.Equity, "point %d", i)
		}
	}

	var position int64
	for _, tr := range res.Trades {
		position += tr.SignedSize()
	}
	require.EqualValues(t, position, engPosition(e), "results position must match engine state")
}

// engPosition exposes the final engine position for white-box checks.
func engPosition(e *Engine) int64 {
	return e.position
}

func TestRun_ProgressSinkCadence(t *testing.T) {
	cfg := feed.SyntheticConfig{
		BasePrice: decimal.NewFromInt(100),
		TickSize:  tick,
		MinPrice:  decimal.NewFromInt(90),
		MaxPrice:  decimal.NewFromInt(110),
		Events:    1000,
		Seed:      2,
	}
	src, err := feed.NewSyntheticSource(cfg)
	require.NoError(t, err)

	var snaps []Progress
	e := newTestEngine(t, testParams(), WithProgress(func(p Progress) {
		snaps = append(snaps, p)
	}, 250))

	_, err = e.Run(context.Background(), NewStubStrategy().Fn(), src)
	require.NoError(t, err)

	require.Len(t, snaps, 4)
	require.Equal(t, 250, snaps[0].Processed)
	require.Equal(t, 1000, snaps[3].Processed)
	require.Equal(t, 1000, snaps[0].Total)
}

func TestChannelSink_NeverBlocks(t *testing.T) {
	ch := make(chan Progress, 1)
	sink := ChannelSink(ch)

	sink(Progress{Processed: 1})
	sink(Progress{Processed: 2}) // full channel: dropped, not blocked

	got := <-ch
	require.Equal(t, 1, got.Processed)
}
