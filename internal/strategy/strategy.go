package strategy

import (
	"market-replay-lab/internal/backtest"
	"market-replay-lab/internal/domain"
)

// Strategy turns the current market snapshot into a directional signal.
type Strategy interface {
	// Evaluate is called once per applied event. It must not mutate the
	// context or retain references past the call.
	Evaluate(ctx *backtest.Context) domain.Signal

	// ID returns strategy identifier (includes parameters).
	ID() string
}
