package memory

import (
	"context"
	"sort"
	"sync"

	"market-replay-lab/internal/storage"
)

// EquityCurveStore is an in-memory implementation of storage.EquityCurveStore.
type EquityCurveStore struct {
	mu   sync.RWMutex
	data map[string][]*storage.EquityCurvePoint // keyed by run_id
}

// NewEquityCurveStore creates a new in-memory equity curve store.
func NewEquityCurveStore() *EquityCurveStore {
	return &EquityCurveStore{
		data: make(map[string][]*storage.EquityCurvePoint),
	}
}

// InsertBulk adds the full curve of a run in one batch.
func (s *EquityCurveStore) InsertBulk(_ context.Context, points []*storage.EquityCurvePoint) error {
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		pointCopy := *p
		s.data[p.RunID] = append(s.data[p.RunID], &pointCopy)
	}
	return nil
}

// GetByRunID retrieves the curve for a run, ordered by timestamp ASC.
func (s *EquityCurveStore) GetByRunID(_ context.Context, runID string) ([]*storage.EquityCurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[runID]
	result := make([]*storage.EquityCurvePoint, 0, len(points))
	for _, p := range points {
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Ensure EquityCurveStore implements storage.EquityCurveStore
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)
