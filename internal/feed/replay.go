package feed

import "market-replay-lab/internal/domain"

// ReplaySource replays a pre-loaded, ordered list of recorded events.
// Loading and parsing the dataset happens before the run starts; the
// source itself never touches storage.
type ReplaySource struct {
	events []*domain.MarketEvent
	pos    int
}

// NewReplaySource wraps events in a source. The slice is sorted by
// (timestamp, sequence) if not already ordered; the caller retains no
// obligation to pre-sort.
func NewReplaySource(events []*domain.MarketEvent) *ReplaySource {
	if !Ordered(events) {
		sorted := make([]*domain.MarketEvent, len(events))
		copy(sorted, events)
		SortEvents(sorted)
		events = sorted
	}
	return &ReplaySource{events: events}
}

// Next returns the next recorded event.
func (s *ReplaySource) Next() (*domain.MarketEvent, bool) {
	if s.pos >= len(s.events) {
		return nil, false
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, true
}

// Total returns the number of recorded events.
func (s *ReplaySource) Total() int {
	return len(s.events)
}

var _ Source = (*ReplaySource)(nil)
