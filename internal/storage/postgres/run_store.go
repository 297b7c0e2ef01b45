package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	query := `
		INSERT INTO run_records (
			run_id, dataset_id, strategy_id, state,
			start_capital, end_capital, total_return_pct, max_drawdown_pct,
			hit_rate_pct, sharpe_ratio, profit_factor, total_trades,
			events_processed, events_skipped, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		r.DatasetID,
		r.StrategyID,
		string(r.State),
		r.StartCapital,
		r.EndCapital,
		r.TotalReturnPct,
		r.MaxDrawdownPct,
		r.HitRatePct,
		r.SharpeRatio,
		r.ProfitFactor,
		r.TotalTrades,
		r.EventsProcessed,
		r.EventsSkipped,
		r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// GetByID retrieves a run record by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	query := selectRunRecords + ` WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRunRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run record by id: %w", err)
	}
	return r, nil
}

// GetByDatasetID retrieves all runs over a dataset, ordered by created_at ASC.
func (s *RunStore) GetByDatasetID(ctx context.Context, datasetID string) ([]*domain.RunRecord, error) {
	query := selectRunRecords + ` WHERE dataset_id = $1 ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("get run records by dataset id: %w", err)
	}
	defer rows.Close()

	var records []*domain.RunRecord
	for rows.Next() {
		r, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run record rows: %w", err)
	}

	return records, nil
}

const selectRunRecords = `
	SELECT run_id, dataset_id, strategy_id, state,
	       start_capital, end_capital, total_return_pct, max_drawdown_pct,
	       hit_rate_pct, sharpe_ratio, profit_factor, total_trades,
	       events_processed, events_skipped, created_at
	FROM run_records
`

// scanRunRecord scans a single row into a RunRecord.
func scanRunRecord(row pgx.Row) (*domain.RunRecord, error) {
	var r domain.RunRecord
	var stateStr string

	err := row.Scan(
		&r.RunID,
		&r.DatasetID,
		&r.StrategyID,
		&stateStr,
		&r.StartCapital,
		&r.EndCapital,
		&r.TotalReturnPct,
		&r.MaxDrawdownPct,
		&r.HitRatePct,
		&r.SharpeRatio,
		&r.ProfitFactor,
		&r.TotalTrades,
		&r.EventsProcessed,
		&r.EventsSkipped,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.State = domain.RunState(stateStr)
	return &r, nil
}
