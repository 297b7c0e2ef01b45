// Package stats aggregates a completed trade log and equity curve into
// standard performance statistics. All functions are pure; every returned
// ratio is guaranteed finite.
package stats

import (
	"math"

	"market-replay-lab/internal/domain"
)

// ProfitFactorCap is the sentinel reported when gross loss is zero while
// gross profit is positive.
const ProfitFactorCap = 9999.0

// annualization converts per-period Sharpe to annualized using the
// conventional 252 trading days.
const annualization = 252.0

// Compute builds the results snapshot from the ordered trade log and
// equity curve of a finished run. RunID and State are left for the caller.
//
// Trades with zero PnL are position-opening trades: they count toward the
// trade totals but not toward the win/loss partition.
func Compute(trades []*domain.Trade, equity []*domain.EquityPoint, startCapital float64) *domain.BacktestResults {
	r := &domain.BacktestResults{
		StartCapital: startCapital,
		EndCapital:   startCapital,
		TotalTrades:  len(trades),
		Trades:       trades,
		EquityCurve:  equity,
	}

	grossProfit := 0.0
	grossLoss := 0.0
	for _, t := range trades {
		r.EndCapital += t.PnL
		switch {
		case t.PnL > 0:
			r.WinningTrades++
			grossProfit += t.PnL
			if t.PnL > r.LargestWin {
				r.LargestWin = t.PnL
			}
		case t.PnL < 0:
			r.LosingTrades++
			grossLoss += -t.PnL
			if t.PnL < r.LargestLoss {
				r.LargestLoss = t.PnL
			}
		}
	}

	if r.WinningTrades > 0 {
		r.AvgWin = grossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = -grossLoss / float64(r.LosingTrades)
	}

	if closed := r.WinningTrades + r.LosingTrades; closed > 0 {
		r.HitRatePct = float64(r.WinningTrades) / float64(closed) * 100
	}
	if startCapital != 0 {
		r.TotalReturnPct = (r.EndCapital - startCapital) / startCapital * 100
	}

	r.ProfitFactor = profitFactor(grossProfit, grossLoss)
	r.SharpeRatio = sharpeRatio(equity)
	r.MaxDrawdownPct = maxDrawdown(equity) * 100

	r.TotalReturnPct = sanitize(r.TotalReturnPct)
	r.MaxDrawdownPct = sanitize(r.MaxDrawdownPct)
	r.HitRatePct = sanitize(r.HitRatePct)
	return r
}

// profitFactor returns grossProfit/grossLoss, the cap sentinel when there
// are profits but no losses, and 0 otherwise.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return ProfitFactorCap
		}
		return 0
	}
	return sanitize(grossProfit / grossLoss)
}

// sharpeRatio computes the annualized Sharpe over point-to-point
// percentage changes of the equity curve. Defined as 0 when the standard
// deviation is zero or the result is non-finite.
func sharpeRatio(equity []*domain.EquityPoint) float64 {
	returns := periodReturns(equity)
	n := len(returns)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(n-1))
	if stddev == 0 {
		return 0
	}
	return sanitize(mean / stddev * math.Sqrt(annualization))
}

// periodReturns yields equity-point-to-equity-point percentage changes.
// Points with non-positive equity are skipped as a base.
func periodReturns(equity []*domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		base := equity[i-1].Equity
		if base <= 0 {
			continue
		}
		out = append(out, (equity[i].Equity-base)/base)
	}
	return out
}

// maxDrawdown returns the maximum fraction lost from a running peak over
// the equity curve, in [0, 1].
func maxDrawdown(equity []*domain.EquityPoint) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sanitize substitutes 0 for NaN and Inf.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
