package obs

import (
	"sync"
	"sync/atomic"
	"time"

	"main/internal/validate"
)

const maxFindingKind = int(validate.KindConsistencyAnomaly)

// Metrics collects rebuild counters and per-stage latency stats.
type Metrics struct {
	rebuilds            uint64
	rebuildFailures     uint64
	swapFailures        uint64
	executionsProcessed uint64
	executionsRejected  uint64
	positionsBuilt      uint64
	intakeDrops         uint64
	findingCounts       [maxFindingKind + 1]uint64

	fetchLatency    LatencyStats
	scanLatency     LatencyStats
	validateLatency LatencyStats
	swapLatency     LatencyStats
}

// Snapshot is a point-in-time view of the metrics.
type Snapshot struct {
	Rebuilds            uint64
	RebuildFailures     uint64
	SwapFailures        uint64
	ExecutionsProcessed uint64
	ExecutionsRejected  uint64
	PositionsBuilt      uint64
	IntakeDrops         uint64
	FindingCounts       map[validate.FindingKind]uint64

	FetchLatency    LatencySnapshot
	ScanLatency     LatencySnapshot
	ValidateLatency LatencySnapshot
	SwapLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncRebuild counts a started rebuild.
func (m *Metrics) IncRebuild() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rebuilds, 1)
}

// IncRebuildFailure counts a failed rebuild.
func (m *Metrics) IncRebuildFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rebuildFailures, 1)
}

// IncSwapFailure counts a failed atomic position swap.
func (m *Metrics) IncSwapFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.swapFailures, 1)
}

// IncIntakeDrop counts an execution dropped by a full intake queue.
func (m *Metrics) IncIntakeDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.intakeDrops, 1)
}

// AddProcessed accumulates processed/rejected execution and built
// position counts for one rebuild.
func (m *Metrics) AddProcessed(processed, rejected, built int) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.executionsProcessed, uint64(processed))
	atomic.AddUint64(&m.executionsRejected, uint64(rejected))
	atomic.AddUint64(&m.positionsBuilt, uint64(built))
}

// ObserveFindings increments per-kind finding counters.
func (m *Metrics) ObserveFindings(findings []validate.Finding) {
	if m == nil {
		return
	}
	for _, f := range findings {
		idx := int(f.Kind)
		if idx >= 0 && idx < len(m.findingCounts) {
			atomic.AddUint64(&m.findingCounts[idx], 1)
		}
	}
}

// ObserveFetch records execution-fetch latency.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchLatency.Observe(d)
}

// ObserveScan records flow-scan latency.
func (m *Metrics) ObserveScan(d time.Duration) {
	if m == nil {
		return
	}
	m.scanLatency.Observe(d)
}

// ObserveValidate records validation latency.
func (m *Metrics) ObserveValidate(d time.Duration) {
	if m == nil {
		return
	}
	m.validateLatency.Observe(d)
}

// ObserveSwap records atomic-swap latency.
func (m *Metrics) ObserveSwap(d time.Duration) {
	if m == nil {
		return
	}
	m.swapLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	findings := make(map[validate.FindingKind]uint64)
	for i := range m.findingCounts {
		if v := atomic.LoadUint64(&m.findingCounts[i]); v > 0 {
			findings[validate.FindingKind(i)] = v
		}
	}
	return Snapshot{
		Rebuilds:            atomic.LoadUint64(&m.rebuilds),
		RebuildFailures:     atomic.LoadUint64(&m.rebuildFailures),
		SwapFailures:        atomic.LoadUint64(&m.swapFailures),
		ExecutionsProcessed: atomic.LoadUint64(&m.executionsProcessed),
		ExecutionsRejected:  atomic.LoadUint64(&m.executionsRejected),
		PositionsBuilt:      atomic.LoadUint64(&m.positionsBuilt),
		IntakeDrops:         atomic.LoadUint64(&m.intakeDrops),
		FindingCounts:       findings,
		FetchLatency:        m.fetchLatency.Snapshot(),
		ScanLatency:         m.scanLatency.Snapshot(),
		ValidateLatency:     m.validateLatency.Snapshot(),
		SwapLatency:         m.swapLatency.Snapshot(),
	}
}

// LatencyStats aggregates duration samples.
type LatencyStats struct {
	mu    sync.Mutex
	count uint64
	sum   time.Duration
	min   time.Duration
	max   time.Duration
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.sum += d
	if l.count == 1 || d < l.min {
		l.min = d
	}
	if d > l.max {
		l.max = d
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: l.count,
		Min:   l.min,
		Max:   l.max,
		Avg:   l.sum / time.Duration(l.count),
	}
}
