package domain

// Strategy type constants.
const (
	StrategyTypeImbalance     = "IMBALANCE"
	StrategyTypeMomentum      = "MOMENTUM"
	StrategyTypeMeanReversion = "MEAN_REVERSION"
)

// StrategyConfig selects a built-in strategy and its parameters.
// Pointer fields are required only for the strategy types that use them.
type StrategyConfig struct {
	StrategyType string

	// IMBALANCE
	ImbalanceThreshold *float64 // top-of-book bid share above which to buy, (0.5, 1)

	// MOMENTUM
	LookbackTrades *int     // trades considered for the drift window
	MomentumTicks  *float64 // minimum drift over the window, in ticks

	// MEAN_REVERSION
	ReversionTicks *float64 // distance from rolling mean, in ticks
}
