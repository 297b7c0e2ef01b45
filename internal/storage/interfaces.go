package storage

import (
	"context"

	"market-replay-lab/internal/domain"
)

// DatasetStore provides access to datasets storage.
type DatasetStore interface {
	// Insert adds a new dataset. Returns ErrDuplicateKey if dataset_id exists.
	Insert(ctx context.Context, d *domain.Dataset) error

	// GetByID retrieves a dataset by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, datasetID string) (*domain.Dataset, error)

	// List retrieves all datasets, ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.Dataset, error)
}

// MarketEventStore provides access to market_events storage.
type MarketEventStore interface {
	// InsertBulk adds multiple events for a dataset. Fails the entire
	// batch on any duplicate (dataset_id, sequence).
	InsertBulk(ctx context.Context, events []*domain.MarketEvent) error

	// GetByDatasetID retrieves all events for a dataset, ordered by
	// (timestamp, sequence) ASC.
	GetByDatasetID(ctx context.Context, datasetID string) ([]*domain.MarketEvent, error)

	// GetByTimeRange retrieves events for a dataset within [start, end]
	// (inclusive), ordered by (timestamp, sequence) ASC.
	GetByTimeRange(ctx context.Context, datasetID string, start, end int64) ([]*domain.MarketEvent, error)
}

// RunStore provides access to run_records storage.
type RunStore interface {
	// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetByDatasetID retrieves all runs over a dataset, ordered by created_at ASC.
	GetByDatasetID(ctx context.Context, datasetID string) ([]*domain.RunRecord, error)
}

// EquityCurvePoint is one persisted equity observation of a run.
type EquityCurvePoint struct {
	RunID     string
	Timestamp int64 // microseconds since epoch
	Equity    float64
	Drawdown  float64
}

// EquityCurveStore provides access to equity_curves timeseries storage.
type EquityCurveStore interface {
	// InsertBulk adds the full curve of a run in one batch.
	InsertBulk(ctx context.Context, points []*EquityCurvePoint) error

	// GetByRunID retrieves the curve for a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*EquityCurvePoint, error)
}
