// Package latency samples execution delays from a configured statistical
// distribution. The model is consulted once per prospective trade.
package latency

import (
	"errors"
	"math/rand"

	"market-replay-lab/internal/domain"
)

// Model errors.
var (
	ErrUnknownDistribution = errors.New("unknown latency distribution")
	ErrNonPositiveMean     = errors.New("latency mean must be positive")
)

// MinGaussianUs is the floor applied to Gaussian samples. Sampling a
// non-positive latency is non-physical.
const MinGaussianUs = 5.0

// Model samples latency values in microseconds. It holds no state beyond
// the injected RNG, so runs are reproducible for a fixed seed.
type Model struct {
	profile domain.LatencyProfile
	rng     *rand.Rand
}

// NewModel validates the profile and creates a model using the given RNG.
func NewModel(profile domain.LatencyProfile, rng *rand.Rand) (*Model, error) {
	switch profile.Distribution {
	case domain.DistributionGaussian, domain.DistributionUniform, domain.DistributionExponential:
	default:
		return nil, ErrUnknownDistribution
	}
	if profile.MeanUs <= 0 {
		return nil, ErrNonPositiveMean
	}
	return &Model{profile: profile, rng: rng}, nil
}

// Sample draws one latency value in microseconds.
func (m *Model) Sample() float64 {
	switch m.profile.Distribution {
	case domain.DistributionGaussian:
		v := m.profile.MeanUs + m.rng.NormFloat64()*m.profile.StdDevUs
		if v < MinGaussianUs {
			return MinGaussianUs
		}
		return v
	case domain.DistributionUniform:
		// Uniform on [mean-stddev, mean+stddev], floored at zero.
		v := m.profile.MeanUs + (2*m.rng.Float64()-1)*m.profile.StdDevUs
		if v < 0 {
			return 0
		}
		return v
	default: // exponential; stddev equals the mean by definition
		return m.rng.ExpFloat64() * m.profile.MeanUs
	}
}
