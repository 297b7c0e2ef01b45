package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"market-replay-lab/internal/backtest"
	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/feed"
	"market-replay-lab/internal/runhash"
	"market-replay-lab/internal/storage"
	"market-replay-lab/internal/storage/memory"
	"market-replay-lab/internal/storage/migrations"
	pgstore "market-replay-lab/internal/storage/postgres"
	"market-replay-lab/internal/strategy"
)

// sweepResult pairs one grid point with its run outcome.
type sweepResult struct {
	strategyID string
	results    *domain.BacktestResults
	err        error
}

func main() {
	// Event source
	datasetID := flag.String("dataset-id", "", "Dataset ID to replay (requires --postgres-dsn)")
	synthetic := flag.Bool("synthetic", false, "Sweep over a synthetic event stream")
	synthEvents := flag.Int("synthetic-events", 100_000, "Synthetic event count")
	synthBase := flag.String("synthetic-base", "100", "Synthetic base price")
	synthMin := flag.String("synthetic-min", "90", "Synthetic price corridor lower bound")
	synthMax := flag.String("synthetic-max", "110", "Synthetic price corridor upper bound")

	// Grid
	strategyType := flag.String("strategy", "", "Strategy to sweep: IMBALANCE, MOMENTUM, MEAN_REVERSION (required)")
	imbalanceThresholds := flag.String("imbalance-thresholds", "0.60,0.65,0.70,0.75", "IMBALANCE threshold grid")
	lookbacks := flag.String("lookbacks", "3,5,8", "MOMENTUM lookback grid")
	momentumTicks := flag.String("momentum-ticks", "1,2,3", "MOMENTUM drift grid (ticks)")
	reversionTicks := flag.String("reversion-ticks", "2,3,4,6", "MEAN_REVERSION band grid (ticks)")

	// Simulation parameters (shared across the grid)
	tickSize := flag.String("tick-size", "0.25", "Price tick size")
	feePerSide := flag.Float64("fee-per-side", 0.85, "Per-contract fee per side")
	stopLossPoints := flag.Float64("stop-loss-points", 4, "Stop-loss threshold in points")
	takeProfitPoints := flag.Float64("take-profit-points", 0, "Take-profit threshold in points (0 = disabled)")
	startCapital := flag.Float64("start-capital", 100_000, "Starting capital")
	seed := flag.Int64("seed", 1, "RNG seed shared by every grid point")

	// Execution
	concurrency := flag.Int("concurrency", runtime.NumCPU(), "Concurrent runs")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	persistResults := flag.Bool("persist", false, "Persist a run record per grid point")

	flag.Parse()

	logger := log.New(os.Stderr, "[sweep] ", log.LstdFlags)

	if *strategyType == "" {
		logger.Fatal("--strategy is required")
	}
	if !*synthetic && *datasetID == "" {
		logger.Fatal("either --dataset-id or --synthetic is required")
	}
	if *datasetID != "" && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required with --dataset-id")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling sweep...", sig)
		cancel()
	}()

	tick, err := decimal.NewFromString(*tickSize)
	if err != nil {
		logger.Fatalf("invalid --tick-size: %v", err)
	}

	params := domain.DefaultParameters()
	params.TickSize = tick
	params.FeePerSide = *feePerSide
	params.StopLossPoints = *stopLossPoints
	params.TakeProfitPoints = *takeProfitPoints
	params.StartCapital = *startCapital
	params.Seed = *seed

	// Build the grid of strategy configs.
	configs, err := buildGrid(strings.ToUpper(*strategyType),
		*imbalanceThresholds, *lookbacks, *momentumTicks, *reversionTicks)
	if err != nil {
		logger.Fatalf("build grid: %v", err)
	}
	logger.Printf("Sweeping %d grid points with concurrency %d", len(configs), *concurrency)

	// Stores
	var runStore storage.RunStore = memory.NewRunStore()
	var events []*domain.MarketEvent
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		runStore = pgstore.NewRunStore(pool)

		if *datasetID != "" {
			logger.Printf("Loading dataset %s...", *datasetID)
			events, err = pgstore.NewMarketEventStore(pool).GetByDatasetID(ctx, *datasetID)
			if err != nil {
				logger.Fatalf("load dataset events: %v", err)
			}
			if len(events) == 0 {
				logger.Fatalf("dataset %s has no events", *datasetID)
			}
			logger.Printf("Loaded %d events", len(events))
		}
	}

	synthCfg := feed.SyntheticConfig{Events: *synthEvents, TickSize: tick, Seed: *seed}
	if *synthetic {
		if synthCfg.BasePrice, err = decimal.NewFromString(*synthBase); err != nil {
			logger.Fatalf("invalid --synthetic-base: %v", err)
		}
		if synthCfg.MinPrice, err = decimal.NewFromString(*synthMin); err != nil {
			logger.Fatalf("invalid --synthetic-min: %v", err)
		}
		if synthCfg.MaxPrice, err = decimal.NewFromString(*synthMax); err != nil {
			logger.Fatalf("invalid --synthetic-max: %v", err)
		}
	}

	// Run the grid. Each point gets its own engine and source so runs
	// share nothing but the immutable event slice.
	results := make([]sweepResult, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	for i, cfg := range configs {
		g.Go(func() error {
			strat, err := strategy.FromConfig(cfg)
			if err != nil {
				results[i] = sweepResult{err: err}
				return nil
			}

			var source feed.Source
			if *synthetic {
				src, err := feed.NewSyntheticSource(synthCfg)
				if err != nil {
					results[i] = sweepResult{strategyID: strat.ID(), err: err}
					return nil
				}
				source = src
			} else {
				source = feed.NewReplaySource(events)
			}

			runID := runhash.ComputeRunID(*datasetID, strat.ID(), params)
			engine, err := backtest.NewEngine(params, backtest.WithRunID(runID))
			if err != nil {
				results[i] = sweepResult{strategyID: strat.ID(), err: err}
				return nil
			}

			res, err := engine.Run(gctx, strat.Evaluate, source)
			results[i] = sweepResult{strategyID: strat.ID(), results: res, err: err}

			if err == nil && *persistResults {
				record := &domain.RunRecord{
					RunID:           res.RunID,
					DatasetID:       *datasetID,
					StrategyID:      strat.ID(),
					State:           res.State,
					StartCapital:    params.StartCapital,
					EndCapital:      res.EndCapital,
					TotalReturnPct:  res.TotalReturnPct,
					MaxDrawdownPct:  res.MaxDrawdownPct,
					HitRatePct:      res.HitRatePct,
					SharpeRatio:     res.SharpeRatio,
					ProfitFactor:    res.ProfitFactor,
					TotalTrades:     res.TotalTrades,
					EventsProcessed: res.EventsProcessed,
					EventsSkipped:   res.EventsSkipped,
					CreatedAt:       time.Now().UnixMilli(),
				}
				if err := runStore.Insert(gctx, record); err != nil {
					logger.Printf("persist %s: %v", res.RunID, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatalf("sweep failed: %v", err)
	}

	printSweepTable(results)
}

// buildGrid expands the flag lists into one StrategyConfig per point.
func buildGrid(strategyType, thresholds, lookbacks, drifts, bands string) ([]domain.StrategyConfig, error) {
	var configs []domain.StrategyConfig

	switch strategyType {
	case domain.StrategyTypeImbalance:
		vals, err := parseFloats(thresholds)
		if err != nil {
			return nil, fmt.Errorf("parse --imbalance-thresholds: %w", err)
		}
		for _, v := range vals {
			t := v
			configs = append(configs, domain.StrategyConfig{
				StrategyType:       strategyType,
				ImbalanceThreshold: &t,
			})
		}

	case domain.StrategyTypeMomentum:
		ns, err := parseInts(lookbacks)
		if err != nil {
			return nil, fmt.Errorf("parse --lookbacks: %w", err)
		}
		ds, err := parseFloats(drifts)
		if err != nil {
			return nil, fmt.Errorf("parse --momentum-ticks: %w", err)
		}
		for _, n := range ns {
			for _, d := range ds {
				lookback, drift := n, d
				configs = append(configs, domain.StrategyConfig{
					StrategyType:   strategyType,
					LookbackTrades: &lookback,
					MomentumTicks:  &drift,
				})
			}
		}

	case domain.StrategyTypeMeanReversion:
		vals, err := parseFloats(bands)
		if err != nil {
			return nil, fmt.Errorf("parse --reversion-ticks: %w", err)
		}
		for _, v := range vals {
			b := v
			configs = append(configs, domain.StrategyConfig{
				StrategyType:   strategyType,
				ReversionTicks: &b,
			})
		}

	default:
		return nil, fmt.Errorf("unknown strategy type %q", strategyType)
	}

	return configs, nil
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// printSweepTable outputs grid points sorted by total return, best first.
func printSweepTable(results []sweepResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := results[i].results, results[j].results
		if ri == nil || rj == nil {
			return rj == nil && ri != nil
		}
		return ri.TotalReturnPct > rj.TotalReturnPct
	})

	fmt.Println()
	fmt.Println("=== Sweep Results ===")
	fmt.Printf("%-32s %10s %10s %10s %8s %8s %8s\n",
		"STRATEGY", "RETURN%", "MAXDD%", "SHARPE", "PF", "HIT%", "TRADES")

	for _, r := range results {
		if r.err != nil {
			fmt.Printf("%-32s FAILED: %v\n", r.strategyID, r.err)
			continue
		}
		res := r.results
		fmt.Printf("%-32s %10.2f %10.2f %10.4f %8.2f %8.2f %8d\n",
			r.strategyID,
			res.TotalReturnPct,
			res.MaxDrawdownPct,
			res.SharpeRatio,
			res.ProfitFactor,
			res.HitRatePct,
			res.TotalTrades,
		)
	}
}
