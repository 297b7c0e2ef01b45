// Package recorder captures live depth feeds into replayable datasets.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"market-replay-lab/internal/domain"
	"market-replay-lab/internal/observability"
	"market-replay-lab/internal/runhash"
	"market-replay-lab/internal/storage"
)

// ErrNoEvents is returned when a recording session captured nothing.
var ErrNoEvents = errors.New("no events recorded")

const defaultBatchSize = 500

// Config describes one recording session.
type Config struct {
	Name      string // dataset name, defaults to recording-<session id>
	Venue     string
	Symbol    string
	BatchSize int // events per storage batch, defaults to 500

	// WarnFunc receives messages that failed normalization. May be nil.
	WarnFunc func(err error, raw []byte)
}

// Recorder drains a feed into market event storage and registers the
// resulting dataset.
type Recorder struct {
	cfg      Config
	events   storage.MarketEventStore
	datasets storage.DatasetStore

	session string
}

// New creates a recorder for one session.
func New(cfg Config, events storage.MarketEventStore, datasets storage.DatasetStore) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	return &Recorder{
		cfg:      cfg,
		events:   events,
		datasets: datasets,
		session:  uuid.NewString(),
	}
}

// Session returns the unique ID of this recording session.
func (r *Recorder) Session() string {
	return r.session
}

// Record consumes raw feed messages until the channel closes or the
// context is cancelled, then registers and returns the dataset.
// Messages that fail normalization are reported to WarnFunc and skipped.
func (r *Recorder) Record(ctx context.Context, messages <-chan []byte) (*domain.Dataset, error) {
	var (
		batch      []*domain.MarketEvent
		datasetID  string
		count      int64
		firstEvent int64
		lastEvent  int64
		sequence   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.events.InsertBulk(ctx, batch); err != nil {
			return fmt.Errorf("store event batch: %w", err)
		}
		observability.DefaultMetrics.FeedBatchesStored.Inc()
		batch = batch[:0]
		return nil
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case raw, ok := <-messages:
			if !ok {
				break loop
			}

			ev, err := normalize(raw)
			if err != nil {
				r.warn(err, raw)
				continue
			}

			if datasetID == "" {
				firstEvent = ev.Timestamp
				datasetID = runhash.ComputeDatasetID(r.cfg.Venue, r.cfg.Symbol, firstEvent)
			}

			// Feeds without sequence numbers get arrival order.
			sequence++
			if ev.Sequence == 0 {
				ev.Sequence = sequence
			}

			ev.DatasetID = datasetID
			lastEvent = ev.Timestamp
			count++

			batch = append(batch, ev)
			if len(batch) >= r.cfg.BatchSize {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoEvents
	}

	name := r.cfg.Name
	if name == "" {
		name = "recording-" + r.session
	}

	dataset := &domain.Dataset{
		DatasetID:  datasetID,
		Name:       name,
		Venue:      r.cfg.Venue,
		Symbol:     r.cfg.Symbol,
		EventCount: count,
		FirstEvent: firstEvent,
		LastEvent:  lastEvent,
		CreatedAt:  time.Now().UnixMilli(),
	}

	if err := r.datasets.Insert(ctx, dataset); err != nil {
		return nil, fmt.Errorf("register dataset: %w", err)
	}

	return dataset, nil
}

func (r *Recorder) warn(err error, raw []byte) {
	if r.cfg.WarnFunc != nil {
		r.cfg.WarnFunc(err, raw)
	}
}
