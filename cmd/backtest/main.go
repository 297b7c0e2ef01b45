package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"market-replay-lab/internal/backtest"
	"market-replay-lab/internal/book"
	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/feed"
	"market-replay-lab/internal/observability"
	"market-replay-lab/internal/runhash"
	"market-replay-lab/internal/storage"
	chstore "market-replay-lab/internal/storage/clickhouse"
	"market-replay-lab/internal/storage/memory"
	"market-replay-lab/internal/storage/migrations"
	pgstore "market-replay-lab/internal/storage/postgres"
	"market-replay-lab/internal/strategy"
)

func main() {
	// Event source
	datasetID := flag.String("dataset-id", "", "Dataset ID to replay (requires --postgres-dsn)")
	synthetic := flag.Bool("synthetic", false, "Generate a synthetic event stream instead of replaying a dataset")
	synthEvents := flag.Int("synthetic-events", 100_000, "Synthetic event count")
	synthBase := flag.String("synthetic-base", "100", "Synthetic base price")
	synthMin := flag.String("synthetic-min", "90", "Synthetic price corridor lower bound")
	synthMax := flag.String("synthetic-max", "110", "Synthetic price corridor upper bound")

	// Strategy
	strategyType := flag.String("strategy", "", "Strategy: IMBALANCE, MOMENTUM, MEAN_REVERSION (required)")
	imbalanceThreshold := flag.Float64("imbalance-threshold", 0.65, "Bid share threshold for IMBALANCE")
	lookbackTrades := flag.Int("lookback-trades", 5, "Trade window for MOMENTUM")
	momentumTicks := flag.Float64("momentum-ticks", 2, "Minimum drift in ticks for MOMENTUM")
	reversionTicks := flag.Float64("reversion-ticks", 3, "Band in ticks for MEAN_REVERSION")

	// Simulation parameters
	tickSize := flag.String("tick-size", "0.25", "Price tick size")
	lotSize := flag.Int64("lot-size", 1, "Contracts per signal trade")
	feePerSide := flag.Float64("fee-per-side", 0.85, "Per-contract fee per side")
	stopLossPoints := flag.Float64("stop-loss-points", 4, "Stop-loss threshold in points")
	takeProfitPoints := flag.Float64("take-profit-points", 0, "Take-profit threshold in points (0 = disabled)")
	contractMultiplier := flag.Float64("contract-multiplier", 5, "Currency value of one point per contract")
	useMBO := flag.Bool("use-mbo", false, "Rank queue estimates by exact order counts")
	maxLong := flag.Int64("max-long", 5, "Maximum long position")
	maxShort := flag.Int64("max-short", 5, "Maximum short position")
	startCapital := flag.Float64("start-capital", 100_000, "Starting capital")
	seed := flag.Int64("seed", 1, "RNG seed for latency and queue estimation")
	startTime := flag.Int64("start-time", 0, "Replay window start (us since epoch, 0 = unbounded)")
	endTime := flag.Int64("end-time", 0, "Replay window end (us since epoch, 0 = unbounded)")

	// Latency model
	useLatency := flag.Bool("use-latency", false, "Enable the latency model")
	latencyDist := flag.String("latency-dist", "GAUSSIAN", "Latency distribution: GAUSSIAN, UNIFORM, EXPONENTIAL")
	latencyMeanUs := flag.Float64("latency-mean-us", 40, "Mean latency (us)")
	latencyStdDevUs := flag.Float64("latency-stddev-us", 12, "Latency standard deviation (us)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	persistResult := flag.Bool("persist", false, "Persist run record and equity curve")
	progressEvery := flag.Int("progress-every", 100_000, "Progress log cadence in events (0 = off)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9091)")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

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

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	tick, err := decimal.NewFromString(*tickSize)
	if err != nil {
		logger.Fatalf("invalid --tick-size: %v", err)
	}

	params := domain.BacktestParameters{
		StartTime:          *startTime,
		EndTime:            *endTime,
		FeePerSide:         *feePerSide,
		TickSize:           tick,
		LotSize:            *lotSize,
		StopLossPoints:     *stopLossPoints,
		TakeProfitPoints:   *takeProfitPoints,
		ContractMultiplier: *contractMultiplier,
		UseMBO:             *useMBO,
		UseLatency:         *useLatency,
		Latency: domain.LatencyProfile{
			Distribution: domain.Distribution(strings.ToUpper(*latencyDist)),
			MeanUs:       *latencyMeanUs,
			StdDevUs:     *latencyStdDevUs,
		},
		Limits: domain.PositionLimits{
			MaxLong:  *maxLong,
			MaxShort: *maxShort,
		},
		StartCapital: *startCapital,
		Seed:         *seed,
	}

	strat, err := strategy.FromConfig(buildStrategyConfig(
		strings.ToUpper(*strategyType),
		*imbalanceThreshold, *lookbackTrades, *momentumTicks, *reversionTicks,
	))
	if err != nil {
		logger.Fatalf("build strategy: %v", err)
	}

	// Stores
	var runStore storage.RunStore = memory.NewRunStore()
	var curveStore storage.EquityCurveStore = memory.NewEquityCurveStore()
	runsDB, curvesDB := "memory", "memory"

	var pool *pgstore.Pool
	if *postgresDSN != "" {
		pool, err = pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		runStore = pgstore.NewRunStore(pool)
		runsDB = "postgres"
	}
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()
		curveStore = chstore.NewEquityCurveStore(conn)
		curvesDB = "clickhouse"
	}

	// Event source
	var source feed.Source
	if *synthetic {
		base, err := decimal.NewFromString(*synthBase)
		if err != nil {
			logger.Fatalf("invalid --synthetic-base: %v", err)
		}
		min, err := decimal.NewFromString(*synthMin)
		if err != nil {
			logger.Fatalf("invalid --synthetic-min: %v", err)
		}
		max, err := decimal.NewFromString(*synthMax)
		if err != nil {
			logger.Fatalf("invalid --synthetic-max: %v", err)
		}

		source, err = feed.NewSyntheticSource(feed.SyntheticConfig{
			BasePrice: base,
			TickSize:  tick,
			MinPrice:  min,
			MaxPrice:  max,
			Events:    *synthEvents,
			Seed:      *seed,
		})
		if err != nil {
			logger.Fatalf("synthetic source: %v", err)
		}
	} else {
		eventStore := pgstore.NewMarketEventStore(pool)
		logger.Printf("Loading dataset %s...", *datasetID)
		events, err := eventStore.GetByDatasetID(ctx, *datasetID)
		if err != nil {
			logger.Fatalf("load dataset events: %v", err)
		}
		if len(events) == 0 {
			logger.Fatalf("dataset %s has no events", *datasetID)
		}
		logger.Printf("Loaded %d events", len(events))
		source = feed.NewReplaySource(events)
	}

	runID := runhash.ComputeRunID(*datasetID, strat.ID(), params)

	opts := []backtest.Option{
		backtest.WithRunID(runID),
		backtest.WithWarnFunc(func(err error, ev *domain.MarketEvent) {
			observability.RecordEventSkipped(skipReason(err))
			logger.Printf("warning: %v", err)
		}),
	}
	if *progressEvery > 0 {
		opts = append(opts, backtest.WithProgress(func(p backtest.Progress) {
			logger.Printf("progress: %d/%d events, %d trades, capital %.2f",
				p.Processed, p.Total, p.TradesExecuted, p.Capital)
		}, *progressEvery))
	}

	engine, err := backtest.NewEngine(params, opts...)
	if err != nil {
		logger.Fatalf("build engine: %v", err)
	}

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, stopping run...", sig)
		engine.Stop()
	}()

	logger.Printf("Running backtest: run=%s strategy=%s", runID, strat.ID())
	started := time.Now()

	observability.DefaultMetrics.ActiveRuns.Inc()
	results, err := engine.Run(ctx, strat.Evaluate, source)
	observability.DefaultMetrics.ActiveRuns.Dec()

	duration := time.Since(started)
	observability.RecordRun(string(engine.State()), duration.Seconds())
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	observability.RecordEventsProcessed(results.EventsProcessed)
	for _, tr := range results.Trades {
		observability.RecordTrade(string(tr.Side), tr.Reason)
	}

	logger.Printf("Run %s finished in %v", results.State, duration.Round(time.Millisecond))

	if *persistResult {
		if err := persist(ctx, runStore, curveStore, runsDB, curvesDB, *datasetID, strat.ID(), params, results); err != nil {
			logger.Fatalf("persist results: %v", err)
		}
		logger.Printf("Persisted run %s", results.RunID)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	} else {
		printResults(results)
	}
}

// buildStrategyConfig creates a StrategyConfig from CLI flags.
func buildStrategyConfig(
	strategyType string,
	imbalanceThreshold float64,
	lookbackTrades int,
	momentumTicks, reversionTicks float64,
) domain.StrategyConfig {
	cfg := domain.StrategyConfig{StrategyType: strategyType}

	switch strategyType {
	case domain.StrategyTypeImbalance:
		cfg.ImbalanceThreshold = &imbalanceThreshold
	case domain.StrategyTypeMomentum:
		cfg.LookbackTrades = &lookbackTrades
		cfg.MomentumTicks = &momentumTicks
	case domain.StrategyTypeMeanReversion:
		cfg.ReversionTicks = &reversionTicks
	}

	return cfg
}

// skipReason maps a warning to a metric label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, book.ErrPriceOffTick):
		return "price_off_tick"
	case errors.Is(err, book.ErrNegativeSize):
		return "negative_size"
	case errors.Is(err, book.ErrUnknownSide), errors.Is(err, book.ErrUnknownEventType):
		return "unknown_field"
	default:
		return "strategy_fault"
	}
}

// persist writes the run summary and equity curve.
func persist(
	ctx context.Context,
	runs storage.RunStore,
	curves storage.EquityCurveStore,
	runsDB, curvesDB string,
	datasetID, strategyID string,
	params domain.BacktestParameters,
	r *domain.BacktestResults,
) error {
	record := &domain.RunRecord{
		RunID:           r.RunID,
		DatasetID:       datasetID,
		StrategyID:      strategyID,
		State:           r.State,
		StartCapital:    params.StartCapital,
		EndCapital:      r.EndCapital,
		TotalReturnPct:  r.TotalReturnPct,
		MaxDrawdownPct:  r.MaxDrawdownPct,
		HitRatePct:      r.HitRatePct,
		SharpeRatio:     r.SharpeRatio,
		ProfitFactor:    r.ProfitFactor,
		TotalTrades:     r.TotalTrades,
		EventsProcessed: r.EventsProcessed,
		EventsSkipped:   r.EventsSkipped,
		CreatedAt:       time.Now().UnixMilli(),
	}
	started := time.Now()
	err := runs.Insert(ctx, record)
	observability.RecordDBQuery(runsDB, "insert_run_record", time.Since(started).Seconds(), err)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	points := make([]*storage.EquityCurvePoint, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		points[i] = &storage.EquityCurvePoint{
			RunID:     r.RunID,
			Timestamp: p.Timestamp,
			Equity:    p.Equity,
			Drawdown:  p.Drawdown,
		}
	}
	started = time.Now()
	err = curves.InsertBulk(ctx, points)
	observability.RecordDBQuery(curvesDB, "insert_equity_curve", time.Since(started).Seconds(), err)
	if err != nil {
		return fmt.Errorf("insert equity curve: %w", err)
	}
	observability.DefaultMetrics.EquityPoints.Add(float64(len(points)))

	return nil
}

// printResults outputs a human-readable run summary.
func printResults(r *domain.BacktestResults) {
	fmt.Println()
	fmt.Println("=== Backtest Results ===")
	fmt.Printf("Run ID:             %s\n", r.RunID)
	fmt.Printf("State:              %s\n", r.State)
	fmt.Println()

	fmt.Println("Capital:")
	fmt.Printf("  Start:            %.2f\n", r.StartCapital)
	fmt.Printf("  End:              %.2f\n", r.EndCapital)
	fmt.Printf("  Total Return:     %.2f%%\n", r.TotalReturnPct)
	fmt.Printf("  Max Drawdown:     %.2f%%\n", r.MaxDrawdownPct)
	fmt.Println()

	fmt.Println("Trades:")
	fmt.Printf("  Total:            %d\n", r.TotalTrades)
	fmt.Printf("  Winning:          %d\n", r.WinningTrades)
	fmt.Printf("  Losing:           %d\n", r.LosingTrades)
	fmt.Printf("  Hit Rate:         %.2f%%\n", r.HitRatePct)
	fmt.Printf("  Avg Win:          %.2f\n", r.AvgWin)
	fmt.Printf("  Avg Loss:         %.2f\n", r.AvgLoss)
	fmt.Printf("  Largest Win:      %.2f\n", r.LargestWin)
	fmt.Printf("  Largest Loss:     %.2f\n", r.LargestLoss)
	fmt.Println()

	fmt.Println("Ratios:")
	fmt.Printf("  Sharpe:           %.4f\n", r.SharpeRatio)
	fmt.Printf("  Profit Factor:    %.4f\n", r.ProfitFactor)
	fmt.Println()

	fmt.Println("Events:")
	fmt.Printf("  Processed:        %d\n", r.EventsProcessed)
	fmt.Printf("  Skipped:          %d\n", r.EventsSkipped)
}
