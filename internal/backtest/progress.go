package backtest

// Progress is a periodic snapshot pushed to an optional sink while a run
// is in flight.
type Progress struct {
	Processed      int
	Total          int
	CurrentPrice   float64 // book mid, 0 while either side is empty
	Capital        float64
	TradesExecuted int
}

// ProgressFn receives progress snapshots. Implementations must not block:
// the simulation loop calls the sink inline at the configured cadence.
type ProgressFn func(Progress)

// ChannelSink adapts a channel into a non-blocking ProgressFn. Snapshots
// are dropped when the channel is full, so a slow consumer never stalls
// the run.
func ChannelSink(ch chan<- Progress) ProgressFn {
	return func(p Progress) {
		select {
		case ch <- p:
		default:
		}
	}
}
