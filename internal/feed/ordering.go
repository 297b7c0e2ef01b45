package feed

import (
	"sort"

	"market-replay-lab/internal/domain"
)

// SortEvents orders events by (timestamp ASC, sequence ASC).
// Recorded streams are sorted once at load time so replay is deterministic
// regardless of capture interleaving.
func SortEvents(events []*domain.MarketEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Sequence < events[j].Sequence
	})
}

// Ordered reports whether events are sorted by (timestamp, sequence).
func Ordered(events []*domain.MarketEvent) bool {
	for i := 1; i < len(events); i++ {
		a, b := events[i-1], events[i]
		if a.Timestamp > b.Timestamp {
			return false
		}
		if a.Timestamp == b.Timestamp && a.Sequence > b.Sequence {
			return false
		}
	}
	return true
}
