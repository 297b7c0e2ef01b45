package backtest

import "market-replay-lab/internal/domain"

// StubStrategy replays a scripted list of signals, holding once the
// script is exhausted, and records every context it saw. Used to drive
// the engine deterministically in tests and demos.
type StubStrategy struct {
	script   []domain.Signal
	pos      int
	Contexts []*Context
}

// NewStubStrategy creates a stub that emits the given signals in order.
func NewStubStrategy(script ...domain.Signal) *StubStrategy {
	return &StubStrategy{script: script}
}

// Fn returns the StrategyFn for the stub.
func (s *StubStrategy) Fn() StrategyFn {
	return func(ctx *Context) domain.Signal {
		s.Contexts = append(s.Contexts, ctx)
		if s.pos >= len(s.script) {
			return domain.SignalHold
		}
		sig := s.script[s.pos]
		s.pos++
		return sig
	}
}
