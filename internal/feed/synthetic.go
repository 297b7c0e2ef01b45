package feed

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"market-replay-lab/internal/domain"
)

// Synthetic source errors.
var (
	ErrInvalidTick     = errors.New("tick size must be positive")
	ErrInvalidCorridor = errors.New("base price must lie inside [min, max] corridor")
	ErrInvalidCount    = errors.New("event count must be positive")
)

// maxPlacementOffset is the widest distance, in ticks, at which the
// generator places a level away from the walk anchor.
const maxPlacementOffset = 5

// SyntheticConfig configures the random-walk generator.
type SyntheticConfig struct {
	BasePrice decimal.Decimal
	TickSize  decimal.Decimal
	MinPrice  decimal.Decimal // lower corridor bound
	MaxPrice  decimal.Decimal // upper corridor bound
	Events    int
	StartTime int64 // microseconds since epoch
	Seed      int64
}

// SyntheticSource generates a deterministic-given-seed stream of
// ADD/CANCEL/TRADE events around a random-walk anchor bounded to the
// configured price corridor. The stream opens with ADD events placing the
// generator's own seed depth, so replaying it onto an empty book is
// self-consistent. The generator tracks its outstanding levels and emits
// clearing cancels before any placement that would cross the book, so the
// produced stream never crosses.
type SyntheticSource struct {
	cfg      SyntheticConfig
	rng      *rand.Rand
	mid      int64 // walk anchor in ticks
	minTick  int64
	maxTick  int64
	bids     *sideLevels
	asks     *sideLevels
	pending  []*domain.MarketEvent
	produced int
	ts       int64
	seq      int64
}

// NewSyntheticSource validates the config and creates a generator.
func NewSyntheticSource(cfg SyntheticConfig) (*SyntheticSource, error) {
	if cfg.TickSize.Sign() <= 0 {
		return nil, ErrInvalidTick
	}
	if cfg.Events <= 0 {
		return nil, ErrInvalidCount
	}
	if cfg.BasePrice.LessThan(cfg.MinPrice) || cfg.BasePrice.GreaterThan(cfg.MaxPrice) {
		return nil, ErrInvalidCorridor
	}

	minTick := cfg.MinPrice.Div(cfg.TickSize).IntPart()
	maxTick := cfg.MaxPrice.Div(cfg.TickSize).IntPart()
	if maxTick-minTick < 2*maxPlacementOffset+2 {
		return nil, ErrInvalidCorridor
	}

	mid := cfg.BasePrice.Div(cfg.TickSize).IntPart()
	mid = clamp(mid, minTick+maxPlacementOffset+1, maxTick-maxPlacementOffset-1)

	s := &SyntheticSource{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		mid:     mid,
		minTick: minTick,
		maxTick: maxTick,
		bids:    newSideLevels(),
		asks:    newSideLevels(),
		ts:      cfg.StartTime,
	}
	s.queueSeedDepth()
	return s, nil
}

// queueSeedDepth places the initial resting levels as the first events of
// the stream. The levels are tracked like any generated ADD, so later
// clearing cancels cover them.
func (s *SyntheticSource) queueSeedDepth() {
	for offset := int64(1); offset <= maxPlacementOffset; offset++ {
		size := int64(1 + s.rng.Intn(10))
		s.bids.add(s.mid-offset, size)
		s.push(&domain.MarketEvent{
			Timestamp: s.ts,
			Type:      domain.EventTypeAdd,
			Side:      domain.SideBid,
			Price:     s.priceAt(s.mid - offset),
			Size:      size,
		})

		size = int64(1 + s.rng.Intn(10))
		s.asks.add(s.mid+offset, size)
		s.push(&domain.MarketEvent{
			Timestamp: s.ts,
			Type:      domain.EventTypeAdd,
			Side:      domain.SideAsk,
			Price:     s.priceAt(s.mid + offset),
			Size:      size,
		})
	}
}

// Next returns the next generated event.
func (s *SyntheticSource) Next() (*domain.MarketEvent, bool) {
	if s.produced >= s.cfg.Events {
		return nil, false
	}
	for len(s.pending) == 0 {
		s.step()
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	s.produced++
	return ev, true
}

// Total returns the configured event count.
func (s *SyntheticSource) Total() int {
	return s.cfg.Events
}

// step advances the walk and queues at least one event.
func (s *SyntheticSource) step() {
	s.ts += int64(1 + s.rng.Intn(500))

	// Occasionally drift the anchor one tick, clamped to the corridor.
	if s.rng.Float64() < 0.2 {
		if s.rng.Intn(2) == 0 {
			s.mid++
		} else {
			s.mid--
		}
		s.mid = clamp(s.mid, s.minTick+maxPlacementOffset+1, s.maxTick-maxPlacementOffset-1)
	}

	r := s.rng.Float64()
	switch {
	case r < 0.15:
		s.queueTrade()
	case r < 0.40:
		s.queueCancel()
	default:
		s.queueAdd()
	}
}

func (s *SyntheticSource) queueTrade() {
	side := domain.SideAsk
	offset := int64(1)
	if s.rng.Intn(2) == 0 {
		side = domain.SideBid
		offset = -1
	}
	s.push(&domain.MarketEvent{
		Timestamp: s.ts,
		Type:      domain.EventTypeTrade,
		Side:      side,
		Price:     s.priceAt(s.mid + offset),
		Size:      int64(1 + s.rng.Intn(5)),
	})
}

func (s *SyntheticSource) queueAdd() {
	offset := int64(1 + s.rng.Intn(maxPlacementOffset))
	size := int64(1 + s.rng.Intn(10))

	if s.rng.Intn(2) == 0 {
		p := s.mid - offset
		// Clear any resting asks at or below the new bid first.
		for _, t := range s.asks.atOrBelow(p) {
			s.queueClearingCancel(domain.SideAsk, t, s.asks)
		}
		s.bids.add(p, size)
		s.push(&domain.MarketEvent{
			Timestamp: s.ts,
			Type:      domain.EventTypeAdd,
			Side:      domain.SideBid,
			Price:     s.priceAt(p),
			Size:      size,
		})
		return
	}

	p := s.mid + offset
	for _, t := range s.bids.atOrAbove(p) {
		s.queueClearingCancel(domain.SideBid, t, s.bids)
	}
	s.asks.add(p, size)
	s.push(&domain.MarketEvent{
		Timestamp: s.ts,
		Type:      domain.EventTypeAdd,
		Side:      domain.SideAsk,
		Price:     s.priceAt(p),
		Size:      size,
	})
}

func (s *SyntheticSource) queueCancel() {
	side := domain.SideBid
	levels := s.bids
	if s.rng.Intn(2) == 0 {
		side = domain.SideAsk
		levels = s.asks
	}
	t, sz, ok := levels.random(s.rng)
	if !ok {
		s.queueAdd()
		return
	}
	cancel := int64(1 + s.rng.Int63n(sz))
	levels.reduce(t, cancel)
	s.push(&domain.MarketEvent{
		Timestamp: s.ts,
		Type:      domain.EventTypeCancel,
		Side:      side,
		Price:     s.priceAt(t),
		Size:      cancel,
	})
}

func (s *SyntheticSource) queueClearingCancel(side domain.BookSide, t int64, levels *sideLevels) {
	sz := levels.size[t]
	levels.reduce(t, sz)
	s.push(&domain.MarketEvent{
		Timestamp: s.ts,
		Type:      domain.EventTypeCancel,
		Side:      side,
		Price:     s.priceAt(t),
		Size:      sz,
	})
}

func (s *SyntheticSource) push(ev *domain.MarketEvent) {
	s.seq++
	ev.Sequence = s.seq
	s.pending = append(s.pending, ev)
}

func (s *SyntheticSource) priceAt(t int64) decimal.Decimal {
	return decimal.NewFromInt(t).Mul(s.cfg.TickSize)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sideLevels tracks the generator's outstanding levels on one side.
// Prices are kept as tick counts in a sorted slice so random selection is
// deterministic for a fixed seed (map iteration order is not).
type sideLevels struct {
	ticks []int64 // sorted ascending
	size  map[int64]int64
}

func newSideLevels() *sideLevels {
	return &sideLevels{size: make(map[int64]int64)}
}

func (l *sideLevels) add(t, sz int64) {
	if _, ok := l.size[t]; !ok {
		i := sort.Search(len(l.ticks), func(i int) bool { return l.ticks[i] >= t })
		l.ticks = append(l.ticks, 0)
		copy(l.ticks[i+1:], l.ticks[i:])
		l.ticks[i] = t
	}
	l.size[t] += sz
}

func (l *sideLevels) reduce(t, sz int64) {
	cur, ok := l.size[t]
	if !ok {
		return
	}
	if sz >= cur {
		delete(l.size, t)
		i := sort.Search(len(l.ticks), func(i int) bool { return l.ticks[i] >= t })
		if i < len(l.ticks) && l.ticks[i] == t {
			l.ticks = append(l.ticks[:i], l.ticks[i+1:]...)
		}
		return
	}
	l.size[t] = cur - sz
}

func (l *sideLevels) random(rng *rand.Rand) (int64, int64, bool) {
	if len(l.ticks) == 0 {
		return 0, 0, false
	}
	t := l.ticks[rng.Intn(len(l.ticks))]
	return t, l.size[t], true
}

// atOrBelow returns tick levels <= t, ascending.
func (l *sideLevels) atOrBelow(t int64) []int64 {
	i := sort.Search(len(l.ticks), func(i int) bool { return l.ticks[i] > t })
	out := make([]int64, i)
	copy(out, l.ticks[:i])
	return out
}

// atOrAbove returns tick levels >= t, ascending.
func (l *sideLevels) atOrAbove(t int64) []int64 {
	i := sort.Search(len(l.ticks), func(i int) bool { return l.ticks[i] >= t })
	out := make([]int64, len(l.ticks)-i)
	copy(out, l.ticks[i:])
	return out
}

var _ Source = (*SyntheticSource)(nil)
