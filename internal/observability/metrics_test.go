package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordEventsProcessed(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.EventsProcessed)
	RecordEventsProcessed(250)
	require.Equal(t, before+250, testutil.ToFloat64(DefaultMetrics.EventsProcessed))
}

func TestRecordEventSkipped(t *testing.T) {
	c := DefaultMetrics.EventsSkipped.WithLabelValues("price_off_tick")
	before := testutil.ToFloat64(c)
	RecordEventSkipped("price_off_tick")
	require.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordTrade(t *testing.T) {
	c := DefaultMetrics.TradesExecuted.WithLabelValues("BUY", "SIGNAL")
	before := testutil.ToFloat64(c)
	RecordTrade("BUY", "SIGNAL")
	RecordTrade("BUY", "SIGNAL")
	require.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestRecordRun(t *testing.T) {
	c := DefaultMetrics.RunsTotal.WithLabelValues("COMPLETED")
	before := testutil.ToFloat64(c)
	RecordRun("COMPLETED", 1.5)
	require.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordDBQuery_ErrorCounting(t *testing.T) {
	c := DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert_run_record")
	before := testutil.ToFloat64(c)

	RecordDBQuery("postgres", "insert_run_record", 0.01, nil)
	require.Equal(t, before, testutil.ToFloat64(c))

	RecordDBQuery("postgres", "insert_run_record", 0.01, errors.New("boom"))
	require.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestActiveRunsGauge(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.ActiveRuns)
	DefaultMetrics.ActiveRuns.Inc()
	require.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.ActiveRuns))
	DefaultMetrics.ActiveRuns.Dec()
	require.Equal(t, before, testutil.ToFloat64(DefaultMetrics.ActiveRuns))
}
