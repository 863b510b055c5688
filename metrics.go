package distvec

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
//	type PrometheusCollector struct {
//	    collectives *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordCollective(op string, d time.Duration, err error) {
//	    p.collectives.WithLabelValues(op).Inc()
//	}
type MetricsCollector interface {
	// RecordInit is called after each Init. global and local are the
	// requested sizes.
	RecordInit(global, local int, duration time.Duration, err error)

	// RecordCollective is called after each reduction (sum, norms, min,
	// max, dot).
	RecordCollective(op string, duration time.Duration, err error)

	// RecordLocalize is called after each localize variant. elements is the
	// number of values delivered to this worker.
	RecordLocalize(op string, elements int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInit(int, int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordCollective(string, time.Duration, error)    {}
func (NoopMetricsCollector) RecordLocalize(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InitCount            atomic.Int64
	InitErrors           atomic.Int64
	InitTotalNanos       atomic.Int64
	CollectiveCount      atomic.Int64
	CollectiveErrors     atomic.Int64
	CollectiveTotalNanos atomic.Int64
	LocalizeCount        atomic.Int64
	LocalizeErrors       atomic.Int64
	LocalizeElements     atomic.Int64
	LocalizeTotalNanos   atomic.Int64

	mu   sync.Mutex
	byOp map[string]int64
}

// RecordInit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInit(global, local int, duration time.Duration, err error) {
	b.InitCount.Add(1)
	b.InitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InitErrors.Add(1)
	}
}

// RecordCollective implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCollective(op string, duration time.Duration, err error) {
	b.CollectiveCount.Add(1)
	b.CollectiveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CollectiveErrors.Add(1)
	}
	b.countOp(op)
}

// RecordLocalize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLocalize(op string, elements int, duration time.Duration, err error) {
	b.LocalizeCount.Add(1)
	b.LocalizeElements.Add(int64(elements))
	b.LocalizeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LocalizeErrors.Add(1)
	}
	b.countOp(op)
}

func (b *BasicMetricsCollector) countOp(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.byOp == nil {
		b.byOp = make(map[string]int64)
	}
	b.byOp[op]++
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	b.mu.Lock()
	byOp := make(map[string]int64, len(b.byOp))
	for k, v := range b.byOp {
		byOp[k] = v
	}
	b.mu.Unlock()

	return BasicMetricsStats{
		InitCount:          b.InitCount.Load(),
		InitErrors:         b.InitErrors.Load(),
		InitAvgNanos:       avg(b.InitTotalNanos.Load(), b.InitCount.Load()),
		CollectiveCount:    b.CollectiveCount.Load(),
		CollectiveErrors:   b.CollectiveErrors.Load(),
		CollectiveAvgNanos: avg(b.CollectiveTotalNanos.Load(), b.CollectiveCount.Load()),
		LocalizeCount:      b.LocalizeCount.Load(),
		LocalizeErrors:     b.LocalizeErrors.Load(),
		LocalizeElements:   b.LocalizeElements.Load(),
		LocalizeAvgNanos:   avg(b.LocalizeTotalNanos.Load(), b.LocalizeCount.Load()),
		ByOp:               byOp,
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of metrics from BasicMetricsCollector.
type BasicMetricsStats struct {
	InitCount          int64
	InitErrors         int64
	InitAvgNanos       int64
	CollectiveCount    int64
	CollectiveErrors   int64
	CollectiveAvgNanos int64
	LocalizeCount      int64
	LocalizeErrors     int64
	LocalizeElements   int64
	LocalizeAvgNanos   int64
	ByOp               map[string]int64
}
