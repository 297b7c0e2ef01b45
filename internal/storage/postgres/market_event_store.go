package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/storage"
)

// MarketEventStore implements storage.MarketEventStore using PostgreSQL.
// Prices travel as text to keep exact decimal representation.
type MarketEventStore struct {
	pool *Pool
}

// NewMarketEventStore creates a new MarketEventStore.
func NewMarketEventStore(pool *Pool) *MarketEventStore {
	return &MarketEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MarketEventStore = (*MarketEventStore)(nil)

// InsertBulk adds multiple events atomically. Fails the entire batch on
// any duplicate (dataset_id, sequence).
func (s *MarketEventStore) InsertBulk(ctx context.Context, events []*domain.MarketEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO market_events (
			dataset_id, sequence, event_timestamp, event_type, side, price, size, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, ev := range events {
		if ev == nil || ev.DatasetID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			ev.DatasetID,
			ev.Sequence,
			ev.Timestamp,
			string(ev.Type),
			string(ev.Side),
			ev.Price.String(),
			ev.Size,
			ev.OrderID,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert market event in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDatasetID retrieves all events for a dataset, ordered by
// (timestamp, sequence) ASC.
func (s *MarketEventStore) GetByDatasetID(ctx context.Context, datasetID string) ([]*domain.MarketEvent, error) {
	query := `
		SELECT dataset_id, sequence, event_timestamp, event_type, side, price, size, order_id
		FROM market_events
		WHERE dataset_id = $1
		ORDER BY event_timestamp ASC, sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("get events by dataset id: %w", err)
	}
	defer rows.Close()

	return scanMarketEvents(rows)
}

// GetByTimeRange retrieves events for a dataset within [start, end]
// (inclusive), ordered by (timestamp, sequence) ASC.
func (s *MarketEventStore) GetByTimeRange(ctx context.Context, datasetID string, start, end int64) ([]*domain.MarketEvent, error) {
	query := `
		SELECT dataset_id, sequence, event_timestamp, event_type, side, price, size, order_id
		FROM market_events
		WHERE dataset_id = $1 AND event_timestamp >= $2 AND event_timestamp <= $3
		ORDER BY event_timestamp ASC, sequence ASC
	`

	rows, err := s.pool.Query(ctx, query, datasetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanMarketEvents(rows)
}

type eventRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanMarketEvents scans multiple rows into a slice of MarketEvent.
func scanMarketEvents(rows eventRows) ([]*domain.MarketEvent, error) {
	var events []*domain.MarketEvent

	for rows.Next() {
		var ev domain.MarketEvent
		var typeStr, sideStr, priceStr string

		err := rows.Scan(
			&ev.DatasetID,
			&ev.Sequence,
			&ev.Timestamp,
			&typeStr,
			&sideStr,
			&priceStr,
			&ev.Size,
			&ev.OrderID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market event row: %w", err)
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse event price %q: %w", priceStr, err)
		}

		ev.Type = domain.EventType(typeStr)
		ev.Side = domain.BookSide(sideStr)
		ev.Price = price
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market event rows: %w", err)
	}

	return events, nil
}
