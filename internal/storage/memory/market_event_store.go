package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/storage"
)

// MarketEventStore is an in-memory implementation of storage.MarketEventStore.
type MarketEventStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.MarketEvent // keyed by dataset_id
	keys map[string]struct{}              // (dataset_id, sequence) uniqueness
}

// NewMarketEventStore creates a new in-memory market event store.
func NewMarketEventStore() *MarketEventStore {
	return &MarketEventStore{
		data: make(map[string][]*domain.MarketEvent),
		keys: make(map[string]struct{}),
	}
}

func eventKey(datasetID string, sequence int64) string {
	return fmt.Sprintf("%s:%d", datasetID, sequence)
}

// InsertBulk adds multiple events. Fails the entire batch on any
// duplicate (dataset_id, sequence) or invalid event.
func (s *MarketEventStore) InsertBulk(_ context.Context, events []*domain.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the full batch before mutating anything.
	batch := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev == nil || ev.DatasetID == "" {
			return storage.ErrInvalidInput
		}
		key := eventKey(ev.DatasetID, ev.Sequence)
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}

	for _, ev := range events {
		eventCopy := *ev
		s.data[ev.DatasetID] = append(s.data[ev.DatasetID], &eventCopy)
		s.keys[eventKey(ev.DatasetID, ev.Sequence)] = struct{}{}
	}
	return nil
}

// GetByDatasetID retrieves all events for a dataset, ordered by
// (timestamp, sequence) ASC.
func (s *MarketEventStore) GetByDatasetID(_ context.Context, datasetID string) ([]*domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.data[datasetID]
	result := make([]*domain.MarketEvent, 0, len(events))
	for _, ev := range events {
		eventCopy := *ev
		result = append(result, &eventCopy)
	}

	sortEvents(result)
	return result, nil
}

// GetByTimeRange retrieves events for a dataset within [start, end]
// (inclusive), ordered by (timestamp, sequence) ASC.
func (s *MarketEventStore) GetByTimeRange(_ context.Context, datasetID string, start, end int64) ([]*domain.MarketEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketEvent
	for _, ev := range s.data[datasetID] {
		if ev.Timestamp >= start && ev.Timestamp <= end {
			eventCopy := *ev
			result = append(result, &eventCopy)
		}
	}

	sortEvents(result)
	return result, nil
}

func sortEvents(events []*domain.MarketEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Sequence < events[j].Sequence
	})
}

// Ensure MarketEventStore implements storage.MarketEventStore
var _ storage.MarketEventStore = (*MarketEventStore)(nil)
