package domain

import "github.com/shopspring/decimal"

// Distribution selects the latency sampling distribution.
type Distribution string

// Distribution constants.
const (
	DistributionGaussian    Distribution = "GAUSSIAN"
	DistributionUniform     Distribution = "UNIFORM"
	DistributionExponential Distribution = "EXPONENTIAL"
)

// LatencyProfile configures the latency model.
type LatencyProfile struct {
	Distribution Distribution
	MeanUs       float64 // mean latency in microseconds
	StdDevUs     float64 // standard deviation in microseconds
}

// PositionLimits bounds the position the engine may accumulate.
type PositionLimits struct {
	MaxLong  int64 // maximum long position (contracts)
	MaxShort int64 // maximum short position (contracts, positive number)
}

// BacktestParameters is the immutable configuration of a single run.
type BacktestParameters struct {
	StartTime int64 // microseconds since epoch, 0 = unbounded
	EndTime   int64 // microseconds since epoch, 0 = unbounded

	FeePerSide         float64 // per-contract fee charged on each side
	TickSize           decimal.Decimal
	LotSize            int64   // contracts per signal trade
	TakeProfitPoints   float64 // take-profit threshold in points
	StopLossPoints     float64 // stop-loss threshold in points
	ContractMultiplier float64 // currency value of one point per contract

	UseMBO     bool // rank queue estimates by exact order counts (order-by-order datasets)
	UseLatency bool
	Latency    LatencyProfile

	Limits PositionLimits

	StartCapital float64
	Seed         int64 // RNG seed for latency and queue estimation
}

// DefaultParameters returns a runnable parameter set for demos and tests.
func DefaultParameters() BacktestParameters {
	return BacktestParameters{
		FeePerSide:         0.85,
		TickSize:           decimal.New(25, -2), // 0.25
		LotSize:            1,
		TakeProfitPoints:   8,
		StopLossPoints:     4,
		ContractMultiplier: 5,
		UseLatency:         false,
		Latency: LatencyProfile{
			Distribution: DistributionGaussian,
			MeanUs:       40,
			StdDevUs:     12,
		},
		Limits: PositionLimits{
			MaxLong:  5,
			MaxShort: 5,
		},
		StartCapital: 100_000,
		Seed:         1,
	}
}
