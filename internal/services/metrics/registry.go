// -----------------------------------------------------------------------
// Metrics Registry - process-wide counters, gauges, and histograms
// keyed by name plus sorted label pairs
// -----------------------------------------------------------------------

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/respondeo/internal/interfaces"
)

const histogramWindow = 1000

// Registry is the single metrics surface for the process
type Registry struct {
	mu         sync.Mutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string]*histogram
}

// Compile-time interface assertion
var _ interfaces.MetricsRegistry = (*Registry)(nil)

// histogram keeps a bounded window of recent observations
type histogram struct {
	values []float64 // Ring buffer, latest histogramWindow observations
	next   int
	count  int64
	sum    float64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*histogram),
	}
}

// seriesKey renders "name{k=v,...}" with labels in sorted order so the
// same label set always maps to the same series
func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%s", k, labels[k])
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

// IncCounter adds delta to the counter series
func (r *Registry) IncCounter(name string, labels map[string]string, delta float64) {
	key := seriesKey(name, labels)
	r.mu.Lock()
	r.counters[key] += delta
	r.mu.Unlock()
}

// SetGauge records the current value of the gauge series
func (r *Registry) SetGauge(name string, labels map[string]string, value float64) {
	key := seriesKey(name, labels)
	r.mu.Lock()
	r.gauges[key] = value
	r.mu.Unlock()
}

// ObserveHistogram adds an observation to the histogram series
func (r *Registry) ObserveHistogram(name string, labels map[string]string, value float64) {
	key := seriesKey(name, labels)

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.histograms[key]
	if !ok {
		h = &histogram{values: make([]float64, 0, histogramWindow)}
		r.histograms[key] = h
	}

	if len(h.values) < histogramWindow {
		h.values = append(h.values, value)
	} else {
		h.values[h.next] = value
		h.next = (h.next + 1) % histogramWindow
	}
	h.count++
	h.sum += value
}

// Snapshot renders every series. Histograms report count, average, and
// window percentiles.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	counters := make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(r.gauges))
	for k, v := range r.gauges {
		gauges[k] = v
	}

	histograms := make(map[string]interface{}, len(r.histograms))
	for k, h := range r.histograms {
		histograms[k] = h.summarize()
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

func (h *histogram) summarize() map[string]interface{} {
	avg := 0.0
	if h.count > 0 {
		avg = h.sum / float64(h.count)
	}

	sorted := make([]float64, len(h.values))
	copy(sorted, h.values)
	sort.Float64s(sorted)

	return map[string]interface{}{
		"count": h.count,
		"avg":   avg,
		"p50":   percentile(sorted, 0.50),
		"p95":   percentile(sorted, 0.95),
		"p99":   percentile(sorted, 0.99),
	}
}

// percentile reads the nearest-rank value from a sorted window
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
