// Package backtest orchestrates the simulation loop: advance the event
// source, update the order book, evaluate the strategy, simulate
// execution, enforce risk, and aggregate the equity curve into results.
//
// A run is single-threaded and synchronous: one event is fully processed
// before the next is read, so a fixed event stream and RNG seed always
// reproduce the same results. Concurrent runs use separate engines; an
// engine owns its book, trade log, and RNG exclusively.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/execution"
	"market-replay-lab/internal/feed"
	"market-replay-lab/internal/latency"
	"market-replay-lab/internal/risk"
	"market-replay-lab/internal/stats"
)

// Engine errors.
var (
	// ErrAlreadyRun is returned when Run is called on a consumed engine.
	// Engines are single-use; construct a new one per run.
	ErrAlreadyRun = errors.New("engine already run")
)

// defaultProgressEvery is the progress cadence when none is configured.
const defaultProgressEvery = 1000

// WarnFn receives non-fatal per-event problems: malformed events that
// were skipped and strategy faults downgraded to HOLD.
type WarnFn func(err error, ev *domain.MarketEvent)

// Option configures an Engine.
type Option func(*Engine)

// WithRunID sets the identifier stamped on the results.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// WithBook replaces the empty book the engine starts from, for runs that
// begin against a pre-built snapshot.
func WithBook(b *book.Book) Option {
	return func(e *Engine) { e.book = b }
}

// WithProgress installs a progress sink invoked every `every` events.
func WithProgress(fn ProgressFn, every int) Option {
	return func(e *Engine) {
		e.progress = fn
		if every > 0 {
			e.progressEvery = every
		}
	}
}

// WithWarnFunc installs a callback for skipped events and strategy
// faults.
func WithWarnFunc(fn WarnFn) Option {
	return func(e *Engine) { e.warn = fn }
}

// WithQueueEstimator replaces the default depth-based queue estimator.
func WithQueueEstimator(q execution.QueueEstimator) Option {
	return func(e *Engine) { e.queue = q }
}

// Engine executes one backtest run.
type Engine struct {
	params domain.BacktestParameters
	sim    *execution.Simulator
	riskMg *risk.Manager
	book   *book.Book
	queue  execution.QueueEstimator

	runID         string
	progress      ProgressFn
	progressEvery int
	warn          WarnFn

	stateMu sync.Mutex
	state   domain.RunState
	stopped atomic.Bool

	// per-run accumulators
	position      int64
	capital       float64
	entrySize     int64   // contracts on the currently-held side
	entryNotional float64 // price*size sum backing the average entry price
	lastTrade     *domain.Trade
	trades        []*domain.Trade
	equity        []*domain.EquityPoint
	recent        []*domain.MarketEvent
	peakEquity    float64
	processed     int
	skipped       int
}

// NewEngine creates a single-use engine. The RNG seeded from the
// parameters drives both latency sampling and queue estimation, so a
// fixed seed reproduces the run exactly.
func NewEngine(params domain.BacktestParameters, opts ...Option) (*Engine, error) {
	e := &Engine{
		params:        params,
		state:         domain.RunStateIdle,
		capital:       params.StartCapital,
		peakEquity:    params.StartCapital,
		progressEvery: defaultProgressEvery,
	}

	rng := rand.New(rand.NewSource(params.Seed))
	if params.UseMBO {
		e.queue = execution.NewOrderCountEstimator(rng)
	} else {
		e.queue = execution.NewDepthEstimator(rng)
	}

	for _, opt := range opts {
		opt(e)
	}

	var lm *latency.Model
	if params.UseLatency {
		var err error
		lm, err = latency.NewModel(params.Latency, rng)
		if err != nil {
			return nil, fmt.Errorf("latency model: %w", err)
		}
	}
	e.sim = execution.NewSimulator(params, lm, e.queue)
	e.riskMg = risk.NewManager(params)

	if e.book == nil {
		// Empty by default: the event stream carries its own depth.
		e.book = book.New(params.TickSize)
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() domain.RunState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s domain.RunState) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// Stop requests cooperative cancellation. Idempotent and safe to call
// concurrently with Run; the flag is observed at the next event boundary,
// never mid-tick, so book and position state stay coherent.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Run iterates the event source to exhaustion, or until a stop request or
// fatal book error. It returns partial results with state STOPPED on
// cancellation; a crossed book fails the run and returns no results.
func (e *Engine) Run(ctx context.Context, strategy StrategyFn, source feed.Source) (*domain.BacktestResults, error) {
	e.stateMu.Lock()
	if e.state != domain.RunStateIdle {
		e.stateMu.Unlock()
		return nil, ErrAlreadyRun
	}
	e.state = domain.RunStateRunning
	e.stateMu.Unlock()

	total := source.Total()
	wasStopped := false

	for {
		// Stop requests are checked at event boundaries only.
		if e.stopped.Load() || ctx.Err() != nil {
			wasStopped = true
			break
		}

		ev, ok := source.Next()
		if !ok {
			break
		}
		if e.params.StartTime > 0 && ev.Timestamp < e.params.StartTime {
			continue
		}
		if e.params.EndTime > 0 && ev.Timestamp > e.params.EndTime {
			break
		}

		if err := e.book.ApplyEvent(ev); err != nil {
			if errors.Is(err, book.ErrCrossedBook) {
				e.setState(domain.RunStateFailed)
				return nil, fmt.Errorf("apply event at %d: %w", ev.Timestamp, err)
			}
			// Malformed event: record a warning and continue the run.
			e.skipped++
			e.warnf(err, ev)
			continue
		}

		if ev.Type == domain.EventTypeTrade {
			e.pushRecent(ev)
		}

		sig := e.evaluate(strategy)
		sig = e.gateLimits(sig)

		if sig != domain.SignalHold {
			if tr := e.sim.TryExecute(sig, e.book, e.position, e.lastTrade, ev.Timestamp); tr != nil {
				e.applyTrade(tr)
			}
		}

		if tr := e.riskMg.Enforce(e.position, e.unrealized(), e.book, ev.Timestamp); tr != nil {
			e.applyTrade(tr)
		}

		e.appendEquity(ev.Timestamp)
		e.processed++

		if e.progress != nil && e.processed%e.progressEvery == 0 {
			e.progress(e.snapshot(total))
		}
	}

	if wasStopped {
		e.setState(domain.RunStateStopped)
	} else {
		e.setState(domain.RunStateCompleted)
	}

	results := stats.Compute(e.trades, e.equity, e.params.StartCapital)
	results.RunID = e.runID
	results.State = e.State()
	results.EventsProcessed = e.processed
	results.EventsSkipped = e.skipped
	return results, nil
}

// evaluate runs the strategy with the current context. A panicking
// strategy must not abort the run: the tick degrades to HOLD.
func (e *Engine) evaluate(strategy StrategyFn) (sig domain.Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = domain.SignalHold
			e.warnf(fmt.Errorf("strategy fault: %v", r), nil)
		}
	}()

	recent := make([]*domain.MarketEvent, len(e.recent))
	copy(recent, e.recent)

	sig = strategy(&Context{
		Book:          e.book,
		RecentTrades:  recent,
		Position:      e.position,
		UnrealizedPnL: e.unrealized(),
		Capital:       e.capital,
		Params:        e.params,
	})
	return sig
}

// gateLimits downgrades signals that would push the position beyond the
// configured limits.
func (e *Engine) gateLimits(sig domain.Signal) domain.Signal {
	switch sig {
	case domain.SignalBuy:
		if e.position+e.params.LotSize > e.params.Limits.MaxLong {
			return domain.SignalHold
		}
	case domain.SignalSell:
		if e.position-e.params.LotSize < -e.params.Limits.MaxShort {
			return domain.SignalHold
		}
	}
	return sig
}

// applyTrade threads a fill through position, average entry price, and
// capital.
func (e *Engine) applyTrade(tr *domain.Trade) {
	signed := tr.SignedSize()
	price := tr.Price.InexactFloat64()

	switch {
	case e.position == 0 || (e.position > 0) == (signed > 0):
		// Opening or adding to the held side.
		e.entryNotional += price * float64(tr.Size)
		e.entrySize += tr.Size
	default:
		remaining := e.position + signed
		switch {
		case remaining == 0:
			e.entryNotional = 0
			e.entrySize = 0
		case (remaining > 0) != (e.position > 0):
			// Flipped through zero: the residual establishes a new basis.
			size := remaining
			if size < 0 {
				size = -size
			}
			e.entryNotional = price * float64(size)
			e.entrySize = size
		default:
			// Partial close at the running average entry price.
			avg := e.entryNotional / float64(e.entrySize)
			e.entryNotional -= avg * float64(tr.Size)
			e.entrySize -= tr.Size
		}
	}

	e.position += signed
	e.capital += tr.PnL
	e.trades = append(e.trades, tr)
	e.lastTrade = tr
}

// unrealized marks the open position against the current book mid.
func (e *Engine) unrealized() float64 {
	if e.position == 0 || e.entrySize == 0 {
		return 0
	}
	mid, ok := e.book.Mid()
	if !ok {
		return 0
	}
	avgEntry := e.entryNotional / float64(e.entrySize)
	return (mid.InexactFloat64() - avgEntry) * float64(e.position) * e.params.ContractMultiplier
}

func (e *Engine) appendEquity(ts int64) {
	eq := e.capital + e.unrealized()
	if eq > e.peakEquity {
		e.peakEquity = eq
	}
	dd := 0.0
	if e.peakEquity > 0 {
		dd = (e.peakEquity - eq) / e.peakEquity
		if dd > 1 {
			dd = 1
		}
	}
	e.equity = append(e.equity, &domain.EquityPoint{
		Timestamp: ts,
		Equity:    eq,
		Drawdown:  dd,
	})
}

func (e *Engine) pushRecent(ev *domain.MarketEvent) {
	e.recent = append(e.recent, ev)
	if len(e.recent) > RecentTradeWindow {
		e.recent = e.recent[len(e.recent)-RecentTradeWindow:]
	}
}

func (e *Engine) snapshot(total int) Progress {
	price := 0.0
	if mid, ok := e.book.Mid(); ok {
		price = mid.InexactFloat64()
	}
	return Progress{
		Processed:      e.processed,
		Total:          total,
		CurrentPrice:   price,
		Capital:        e.capital,
		TradesExecuted: len(e.trades),
	}
}

func (e *Engine) warnf(err error, ev *domain.MarketEvent) {
	if e.warn != nil {
		e.warn(err, ev)
	}
}
