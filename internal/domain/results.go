package domain

// RunState is the lifecycle state of a backtest run.
type RunState string

// Run state constants.
const (
	RunStateIdle      RunState = "IDLE"
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateStopped   RunState = "STOPPED"
	RunStateFailed    RunState = "FAILED"
)

// EquityPoint is one sample of the equity curve, appended once per
// processed event. Drawdown is (peak-equity)/peak against the running
// peak, so it is always within [0, 1].
type EquityPoint struct {
	Timestamp int64 // microseconds since epoch
	Equity    float64
	Drawdown  float64
}

// BacktestResults is the final immutable snapshot of a run.
// All ratio fields are guaranteed finite: NaN and Inf are substituted
// with 0 before the snapshot is built.
type BacktestResults struct {
	RunID string
	State RunState

	StartCapital   float64
	EndCapital     float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	HitRatePct     float64
	SharpeRatio    float64
	ProfitFactor   float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	AvgWin        float64
	AvgLoss       float64
	LargestWin    float64
	LargestLoss   float64

	EventsProcessed int
	EventsSkipped   int // malformed events rejected with a warning

	Trades      []*Trade
	EquityCurve []*EquityPoint
}
