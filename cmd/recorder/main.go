package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/observability"
	"market-replay-lab/internal/recorder"
	"market-replay-lab/internal/storage"
	"market-replay-lab/internal/storage/memory"
	"market-replay-lab/internal/storage/migrations"
	pgstore "market-replay-lab/internal/storage/postgres"
)

func main() {
	endpoint := flag.String("endpoint", "", "Websocket depth feed URL (required)")
	name := flag.String("name", "", "Dataset name (defaults to recording-<session>)")
	venue := flag.String("venue", "", "Venue identifier (required)")
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	batchSize := flag.Int("batch-size", 500, "Events per storage batch")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until signal)")

	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9092)")

	flag.Parse()

	logger := log.New(os.Stderr, "[recorder] ", log.LstdFlags)

	if *endpoint == "" {
		logger.Fatal("--endpoint is required")
	}
	if *venue == "" || *symbol == "" {
		logger.Fatal("--venue and --symbol are required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required when not using --use-memory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	// Stores
	var eventStore storage.MarketEventStore = memory.NewMarketEventStore()
	var datasetStore storage.DatasetStore = memory.NewDatasetStore()
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		eventStore = pgstore.NewMarketEventStore(pool)
		datasetStore = pgstore.NewDatasetStore(pool)
	}

	client, err := recorder.NewFeedClient(ctx, *endpoint, nil)
	if err != nil {
		logger.Fatalf("connect feed: %v", err)
	}

	// On SIGINT/SIGTERM close the client; the recorder drains what it
	// has and registers the dataset.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, closing feed...", sig)
		case <-ctx.Done():
			logger.Printf("Duration reached, closing feed...")
		}
		client.Close()
	}()

	rec := recorder.New(recorder.Config{
		Name:      *name,
		Venue:     *venue,
		Symbol:    *symbol,
		BatchSize: *batchSize,
		WarnFunc: func(err error, raw []byte) {
			logger.Printf("skipped message: %v", err)
		},
	}, eventStore, datasetStore)

	logger.Printf("Recording session %s from %s (%s %s)", rec.Session(), *endpoint, *venue, *symbol)
	started := time.Now()

	// Record drains until the feed channel closes; use a background
	// context so a duration timeout flushes instead of aborting.
	dataset, err := rec.Record(context.Background(), client.Events())
	if err != nil {
		if errors.Is(err, recorder.ErrNoEvents) {
			logger.Fatal("session captured no events")
		}
		logger.Fatalf("recording failed: %v", err)
	}

	logger.Printf("Session finished in %v", time.Since(started).Round(time.Second))
	printDataset(dataset)
}

// printDataset outputs a human-readable dataset summary.
func printDataset(d *domain.Dataset) {
	fmt.Println()
	fmt.Println("=== Recorded Dataset ===")
	fmt.Printf("Dataset ID:   %s\n", d.DatasetID)
	fmt.Printf("Name:         %s\n", d.Name)
	fmt.Printf("Venue:        %s\n", d.Venue)
	fmt.Printf("Symbol:       %s\n", d.Symbol)
	fmt.Printf("Events:       %d\n", d.EventCount)
	fmt.Printf("First Event:  %s\n", time.UnixMicro(d.FirstEvent).UTC().Format(time.RFC3339Nano))
	fmt.Printf("Last Event:   %s\n", time.UnixMicro(d.LastEvent).UTC().Format(time.RFC3339Nano))
}
