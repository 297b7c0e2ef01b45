package domain

// Signal is the action a strategy may request on a tick.
type Signal string

// Signal constants.
const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)
