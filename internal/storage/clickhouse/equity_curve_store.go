package clickhouse

import (
	"context"
	"fmt"

	"market-replay-lab/internal/storage"
)

// EquityCurveStore implements storage.EquityCurveStore using ClickHouse.
// MergeTree does not enforce uniqueness; curves are written once per run
// and keyed by run_id, so duplicate detection is left to the caller.
type EquityCurveStore struct {
	conn *Conn
}

// NewEquityCurveStore creates a new EquityCurveStore.
func NewEquityCurveStore(conn *Conn) *EquityCurveStore {
	return &EquityCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityCurveStore = (*EquityCurveStore)(nil)

// InsertBulk adds the full curve of a run in one batch.
func (s *EquityCurveStore) InsertBulk(ctx context.Context, points []*storage.EquityCurvePoint) error {
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curves (
			run_id, timestamp_us, equity, drawdown
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, uint64(p.Timestamp), p.Equity, p.Drawdown,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves the curve for a run, ordered by timestamp ASC.
func (s *EquityCurveStore) GetByRunID(ctx context.Context, runID string) ([]*storage.EquityCurvePoint, error) {
	query := `
		SELECT run_id, timestamp_us, equity, drawdown
		FROM equity_curves
		WHERE run_id = ?
		ORDER BY timestamp_us ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve by run id: %w", err)
	}
	defer rows.Close()

	var points []*storage.EquityCurvePoint
	for rows.Next() {
		var p storage.EquityCurvePoint
		var ts uint64

		if err := rows.Scan(&p.RunID, &ts, &p.Equity, &p.Drawdown); err != nil {
			return nil, fmt.Errorf("scan equity curve row: %w", err)
		}

		p.Timestamp = int64(ts)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity curve rows: %w", err)
	}

	return points, nil
}
