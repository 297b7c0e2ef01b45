package memory

import (
	"context"
	"sort"
	"sync"

	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/storage"
)

// DatasetStore is an in-memory implementation of storage.DatasetStore.
type DatasetStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Dataset // keyed by dataset_id
}

// NewDatasetStore creates a new in-memory dataset store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		data: make(map[string]*domain.Dataset),
	}
}

// Insert adds a new dataset. Returns ErrDuplicateKey if dataset_id exists.
func (s *DatasetStore) Insert(_ context.Context, d *domain.Dataset) error {
	if d == nil || d.DatasetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.DatasetID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	datasetCopy := *d
	s.data[d.DatasetID] = &datasetCopy
	return nil
}

// GetByID retrieves a dataset by its ID. Returns ErrNotFound if not exists.
func (s *DatasetStore) GetByID(_ context.Context, datasetID string) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[datasetID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	datasetCopy := *d
	return &datasetCopy, nil
}

// List retrieves all datasets, ordered by created_at ASC.
func (s *DatasetStore) List(_ context.Context) ([]*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Dataset, 0, len(s.data))
	for _, d := range s.data {
		datasetCopy := *d
		result = append(result, &datasetCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].DatasetID < result[j].DatasetID
	})

	return result, nil
}

// Ensure DatasetStore implements storage.DatasetStore
var _ storage.DatasetStore = (*DatasetStore)(nil)
