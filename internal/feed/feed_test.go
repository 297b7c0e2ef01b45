package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
)

func syntheticConfig(seed int64, events int) SyntheticConfig {
	return SyntheticConfig{
		BasePrice: decimal.NewFromInt(100),
		TickSize:  decimal.New(25, -2),
		MinPrice:  decimal.NewFromInt(90),
		MaxPrice:  decimal.NewFromInt(110),
		Events:    events,
		StartTime: 1_700_000_000_000_000,
		Seed:      seed,
	}
}

func drain(t *testing.T, s Source) []*domain.MarketEvent {
	t.Helper()
	var out []*domain.MarketEvent
	for {
		ev, ok := s.Next()
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out
}

func TestReplaySource_PreservesOrderedInput(t *testing.T) {
	events := []*domain.MarketEvent{
		{Timestamp: 1, Sequence: 1, Type: domain.EventTypeAdd},
		{Timestamp: 2, Sequence: 2, Type: domain.EventTypeAdd},
		{Timestamp: 2, Sequence: 3, Type: domain.EventTypeCancel},
	}
	s := NewReplaySource(events)

	require.Equal(t, 3, s.Total())
	got := drain(t, s)
	require.Equal(t, events, got)

	// Exhausted: construct a new source to restart.
	_, ok := s.Next()
	require.False(t, ok)
}

func TestReplaySource_SortsUnorderedInput(t *testing.T) {
	events := []*domain.MarketEvent{
		{Timestamp: 5, Sequence: 9},
		{Timestamp: 1, Sequence: 2},
		{Timestamp: 5, Sequence: 1},
	}
	s := NewReplaySource(events)

	got := drain(t, s)
	require.True(t, Ordered(got))
	require.EqualValues(t, 1, got[0].Timestamp)
	require.EqualValues(t, 1, got[1].Sequence)
}

func TestSyntheticSource_DeterministicForSeed(t *testing.T) {
	a, err := NewSyntheticSource(syntheticConfig(42, 500))
	require.NoError(t, err)
	b, err := NewSyntheticSource(syntheticConfig(42, 500))
	require.NoError(t, err)

	ea := drain(t, a)
	eb := drain(t, b)
	require.Equal(t, len(ea), len(eb))
	for i := range ea {
		require.Equal(t, ea[i].Type, eb[i].Type, "event %d", i)
		require.Equal(t, ea[i].Side, eb[i].Side, "event %d", i)
		require.True(t, ea[i].Price.Equal(eb[i].Price), "event %d", i)
		require.Equal(t, ea[i].Size, eb[i].Size, "event %d", i)
		require.Equal(t, ea[i].Timestamp, eb[i].Timestamp, "event %d", i)
	}
}

func TestSyntheticSource_TimestampsNonDecreasing(t *testing.T) {
	s, err := NewSyntheticSource(syntheticConfig(7, 2000))
	require.NoError(t, err)

	events := drain(t, s)
	require.Len(t, events, 2000)
	require.True(t, Ordered(events))
}

func TestSyntheticSource_StaysInsideCorridor(t *testing.T) {
	cfg := syntheticConfig(3, 3000)
	s, err := NewSyntheticSource(cfg)
	require.NoError(t, err)

	for _, ev := range drain(t, s) {
		require.True(t, ev.Price.GreaterThanOrEqual(cfg.MinPrice),
			"price %s below corridor", ev.Price)
		require.True(t, ev.Price.LessThanOrEqual(cfg.MaxPrice),
			"price %s above corridor", ev.Price)
	}
}

// The generated stream must be directly consumable by the order book
// without ever producing a crossed state.
func TestSyntheticSource_NeverCrossesBook(t *testing.T) {
	cfg := syntheticConfig(11, 5000)
	s, err := NewSyntheticSource(cfg)
	require.NoError(t, err)

	b := book.New(cfg.TickSize)
	for i := 0; ; i++ {
		ev, ok := s.Next()
		if !ok {
			break
		}
		require.NoError(t, b.ApplyEvent(ev), "event %d", i)
	}
}

func TestSyntheticSource_ConfigValidation(t *testing.T) {
	cfg := syntheticConfig(1, 10)
	cfg.TickSize = decimal.Zero
	_, err := NewSyntheticSource(cfg)
	require.ErrorIs(t, err, ErrInvalidTick)

	cfg = syntheticConfig(1, 0)
	_, err = NewSyntheticSource(cfg)
	require.ErrorIs(t, err, ErrInvalidCount)

	cfg = syntheticConfig(1, 10)
	cfg.BasePrice = decimal.NewFromInt(500)
	_, err = NewSyntheticSource(cfg)
	require.ErrorIs(t, err, ErrInvalidCorridor)
}
