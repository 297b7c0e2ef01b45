// Package runhash computes deterministic identifiers for runs and
// datasets. IDs are SHA256 digests over the identifying inputs,
// base58-encoded so they stay short and copy-paste safe.
package runhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"market-replay-lab/internal/domain"
)

// ComputeRunID derives the run identifier from everything that determines
// a run's outcome: the dataset (or synthetic seed), the strategy, and the
// full parameter set. Two runs with identical inputs share an ID.
func ComputeRunID(datasetID, strategyID string, p domain.BacktestParameters) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%g|%s|%d|%g|%g|%g|%t|%t|%s|%g|%g|%d|%d|%g|%d",
		datasetID,
		strategyID,
		p.StartTime,
		p.EndTime,
		p.FeePerSide,
		p.TickSize.String(),
		p.LotSize,
		p.TakeProfitPoints,
		p.StopLossPoints,
		p.ContractMultiplier,
		p.UseMBO,
		p.UseLatency,
		p.Latency.Distribution,
		p.Latency.MeanUs,
		p.Latency.StdDevUs,
		p.Limits.MaxLong,
		p.Limits.MaxShort,
		p.StartCapital,
		p.Seed,
	)
	return encode(data)
}

// ComputeDatasetID derives a dataset identifier from its recording
// coordinates.
func ComputeDatasetID(venue, symbol string, firstEvent int64) string {
	return encode(fmt.Sprintf("%s|%s|%d", venue, symbol, firstEvent))
}

func encode(data string) string {
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
