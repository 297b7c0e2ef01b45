package execution

import (
	"math/rand"

	"market-replay-lab/internal/book"
)

// MaxQueueRank bounds queue-position estimates.
const MaxQueueRank = 50

// QueueEstimator estimates the ordinal position among orders resting at a
// price level. Estimates are reporting-only; they never gate a fill.
type QueueEstimator interface {
	// Estimate returns a rank in [1, MaxQueueRank] for the given level.
	Estimate(level *book.Level) int
}

// DepthEstimator derives a rank from the level's displayed size with
// injected randomness standing in for unobservable order arrival order.
// It can be swapped for a calibrated model without touching the
// execution loop.
type DepthEstimator struct {
	rng *rand.Rand
}

// NewDepthEstimator creates an estimator using the given RNG.
func NewDepthEstimator(rng *rand.Rand) *DepthEstimator {
	return &DepthEstimator{rng: rng}
}

// Estimate implements QueueEstimator.
func (e *DepthEstimator) Estimate(level *book.Level) int {
	est := int(float64(level.Size)*0.7) + e.rng.Intn(10) + 1
	if est > MaxQueueRank {
		return MaxQueueRank
	}
	if est < 1 {
		return 1
	}
	return est
}

// OrderCountEstimator ranks against the level's tracked order count, for
// datasets carrying order-by-order flow where the count is exact. The
// arrival slot within the queue is still unobservable and drawn from the
// injected RNG.
type OrderCountEstimator struct {
	rng *rand.Rand
}

// NewOrderCountEstimator creates an estimator using the given RNG.
func NewOrderCountEstimator(rng *rand.Rand) *OrderCountEstimator {
	return &OrderCountEstimator{rng: rng}
}

// Estimate implements QueueEstimator.
func (e *OrderCountEstimator) Estimate(level *book.Level) int {
	if level.OrderCount <= 1 {
		return 1
	}
	est := 1 + e.rng.Intn(level.OrderCount)
	if est > MaxQueueRank {
		return MaxQueueRank
	}
	return est
}

var _ QueueEstimator = (*DepthEstimator)(nil)
var _ QueueEstimator = (*OrderCountEstimator)(nil)
