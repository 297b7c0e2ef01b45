package domain

// Dataset describes a named, pre-recorded stream of market events.
// Events are loaded in full before a run starts; the simulation loop
// never touches storage.
type Dataset struct {
	DatasetID  string
	Name       string
	Venue      string
	Symbol     string
	EventCount int64
	FirstEvent int64 // microseconds since epoch
	LastEvent  int64 // microseconds since epoch
	CreatedAt  int64 // milliseconds since epoch
}

// RunRecord is the persisted summary of a completed, stopped, or failed
// backtest run. The full trade log and equity curve are stored separately.
type RunRecord struct {
	RunID      string
	DatasetID  string // empty for synthetic runs
	StrategyID string
	State      RunState

	StartCapital   float64
	EndCapital     float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	HitRatePct     float64
	SharpeRatio    float64
	ProfitFactor   float64
	TotalTrades    int

	EventsProcessed int
	EventsSkipped   int
	CreatedAt       int64 // milliseconds since epoch
}
