// Package feed produces finite, time-ordered market event streams for the
// backtest engine: replayed from a recorded dataset or synthesized from a
// seeded random walk.
package feed

import "market-replay-lab/internal/domain"

// Source yields a lazy, finite sequence of market events with
// non-decreasing timestamps. A source is not rewindable; construct a new
// one to restart a stream.
type Source interface {
	// Next returns the next event, or false when the stream is exhausted.
	Next() (*domain.MarketEvent, bool)

	// Total returns the number of events the source will produce,
	// used for progress reporting.
	Total() int
}
