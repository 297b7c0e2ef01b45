package latency

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"market-replay-lab/internal/domain"
)

func newModel(t *testing.T, dist domain.Distribution, mean, stddev float64, seed int64) *Model {
	t.Helper()
	m, err := NewModel(domain.LatencyProfile{
		Distribution: dist,
		MeanUs:       mean,
		StdDevUs:     stddev,
	}, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return m
}

func TestNewModel_Validation(t *testing.T) {
	_, err := NewModel(domain.LatencyProfile{Distribution: "PARETO", MeanUs: 10}, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrUnknownDistribution)

	_, err = NewModel(domain.LatencyProfile{Distribution: domain.DistributionGaussian, MeanUs: 0}, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrNonPositiveMean)
}

func TestSample_GaussianClampedAtFloor(t *testing.T) {
	// Mean far below the floor: every sample must be clamped up.
	m := newModel(t, domain.DistributionGaussian, 1, 0.1, 1)
	for i := 0; i < 1000; i++ {
		require.GreaterOrEqual(t, m.Sample(), MinGaussianUs)
	}
}

func TestSample_GaussianNeverNonPositive(t *testing.T) {
	// Wide stddev produces raw negative draws; the clamp must hold.
	m := newModel(t, domain.DistributionGaussian, 10, 100, 2)
	for i := 0; i < 5000; i++ {
		v := m.Sample()
		if v <= 0 {
			t.Fatalf("non-positive gaussian latency %f", v)
		}
	}
}

func TestSample_UniformWithinBounds(t *testing.T) {
	m := newModel(t, domain.DistributionUniform, 40, 10, 3)
	for i := 0; i < 2000; i++ {
		v := m.Sample()
		require.GreaterOrEqual(t, v, 30.0)
		require.LessOrEqual(t, v, 50.0)
	}
}

func TestSample_ExponentialMeanConverges(t *testing.T) {
	m := newModel(t, domain.DistributionExponential, 40, 0, 4)
	sum := 0.0
	n := 50_000
	for i := 0; i < n; i++ {
		sum += m.Sample()
	}
	mean := sum / float64(n)
	if math.Abs(mean-40) > 2 {
		t.Errorf("exponential sample mean %f too far from 40", mean)
	}
}

func TestSample_DeterministicForSeed(t *testing.T) {
	a := newModel(t, domain.DistributionGaussian, 40, 12, 9)
	b := newModel(t, domain.DistributionGaussian, 40, 12, 9)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Sample(), b.Sample())
	}
}
