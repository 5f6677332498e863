package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesKey(t *testing.T) {
	assert.Equal(t, "requests", seriesKey("requests", nil))

	// Label order never changes the series identity
	a := seriesKey("requests", map[string]string{"status": "ok", "route": "/query"})
	b := seriesKey("requests", map[string]string{"route": "/query", "status": "ok"})
	assert.Equal(t, a, b)
	assert.Equal(t, "requests{route=/query,status=ok}", a)
}

func TestRegistry_Counters(t *testing.T) {
	registry := NewRegistry()

	registry.IncCounter("ingest_total", map[string]string{"status": "completed"}, 1)
	registry.IncCounter("ingest_total", map[string]string{"status": "completed"}, 2)
	registry.IncCounter("ingest_total", map[string]string{"status": "failed"}, 1)

	snapshot := registry.Snapshot()
	counters := snapshot["counters"].(map[string]float64)
	assert.Equal(t, 3.0, counters["ingest_total{status=completed}"])
	assert.Equal(t, 1.0, counters["ingest_total{status=failed}"])
}

func TestRegistry_Gauges(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("active_jobs", nil, 4)
	registry.SetGauge("active_jobs", nil, 2)

	snapshot := registry.Snapshot()
	gauges := snapshot["gauges"].(map[string]float64)
	assert.Equal(t, 2.0, gauges["active_jobs"])
}

func TestRegistry_HistogramSummary(t *testing.T) {
	registry := NewRegistry()

	for i := 1; i <= 100; i++ {
		registry.ObserveHistogram("latency_ms", nil, float64(i))
	}

	snapshot := registry.Snapshot()
	histograms := snapshot["histograms"].(map[string]interface{})
	summary := histograms["latency_ms"].(map[string]interface{})

	assert.Equal(t, int64(100), summary["count"])
	assert.InDelta(t, 50.5, summary["avg"].(float64), 1e-9)
	assert.Equal(t, 50.0, summary["p50"])
	assert.Equal(t, 95.0, summary["p95"])
	assert.Equal(t, 99.0, summary["p99"])
}

func TestRegistry_HistogramWindowBounded(t *testing.T) {
	registry := NewRegistry()

	// First 1000 low observations age out of the window
	for i := 0; i < histogramWindow; i++ {
		registry.ObserveHistogram("latency_ms", nil, 1)
	}
	for i := 0; i < histogramWindow; i++ {
		registry.ObserveHistogram("latency_ms", nil, 100)
	}

	snapshot := registry.Snapshot()
	summary := snapshot["histograms"].(map[string]interface{})["latency_ms"].(map[string]interface{})

	// Count is lifetime, percentiles reflect only the window
	assert.Equal(t, int64(2*histogramWindow), summary["count"])
	assert.Equal(t, 100.0, summary["p50"])
}

func TestRegistry_EmptySnapshot(t *testing.T) {
	snapshot := NewRegistry().Snapshot()
	require.Contains(t, snapshot, "counters")
	require.Contains(t, snapshot, "gauges")
	require.Contains(t, snapshot, "histograms")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				registry.IncCounter("ops", nil, 1)
				registry.ObserveHistogram("dur", nil, float64(i))
				_ = registry.Snapshot()
			}
		}()
	}
	wg.Wait()

	counters := registry.Snapshot()["counters"].(map[string]float64)
	assert.Equal(t, 4000.0, counters["ops"])
}
