package vecbench

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecbench/lifecycle"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    buildHistogram  *prometheus.HistogramVec
//	    searchHistogram *prometheus.HistogramVec
//	}
//
//	func (p *PrometheusCollector) RecordBuild(family string, d time.Duration, err error) {
//	    p.buildHistogram.WithLabelValues(family).Observe(d.Seconds())
//	}
//
// Methods are called once per lifecycle operation: RecordBuild after each
// Build, RecordSearch after each timed Search, RecordPersist after each
// artifact write with the stored byte count, and RecordRestore after each
// reload.
type MetricsCollector = lifecycle.MetricsCollector

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(string, time.Duration, error)          {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordPersist(string, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRestore(string, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount        atomic.Int64
	BuildErrors       atomic.Int64
	BuildTotalNanos   atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	PersistCount      atomic.Int64
	PersistErrors     atomic.Int64
	PersistBytes      atomic.Int64
	RestoreCount      atomic.Int64
	RestoreErrors     atomic.Int64
	RestoreTotalNanos atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ string, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ string, _ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordPersist implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPersist(_ string, bytes int64, _ time.Duration, err error) {
	b.PersistCount.Add(1)
	b.PersistBytes.Add(bytes)
	if err != nil {
		b.PersistErrors.Add(1)
	}
}

// RecordRestore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestore(_ string, duration time.Duration, err error) {
	b.RestoreCount.Add(1)
	b.RestoreTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:      b.BuildCount.Load(),
		BuildErrors:     b.BuildErrors.Load(),
		BuildAvgNanos:   avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		SearchCount:     b.SearchCount.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchAvgNanos:  avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		PersistCount:    b.PersistCount.Load(),
		PersistErrors:   b.PersistErrors.Load(),
		PersistBytes:    b.PersistBytes.Load(),
		RestoreCount:    b.RestoreCount.Load(),
		RestoreErrors:   b.RestoreErrors.Load(),
		RestoreAvgNanos: avg(b.RestoreTotalNanos.Load(), b.RestoreCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount      int64
	BuildErrors     int64
	BuildAvgNanos   int64
	SearchCount     int64
	SearchErrors    int64
	SearchAvgNanos  int64
	PersistCount    int64
	PersistErrors   int64
	PersistBytes    int64
	RestoreCount    int64
	RestoreErrors   int64
	RestoreAvgNanos int64
}

// loggingMetrics forwards every event to the logger and then to next.
type loggingMetrics struct {
	log  *Logger
	next MetricsCollector
}

func (m loggingMetrics) RecordBuild(family string, d time.Duration, err error) {
	m.log.LogBuild(family, d, err)
	m.next.RecordBuild(family, d, err)
}

func (m loggingMetrics) RecordSearch(family string, k int, d time.Duration, err error) {
	m.log.LogSearch(family, k, d, err)
	m.next.RecordSearch(family, k, d, err)
}

func (m loggingMetrics) RecordPersist(family string, bytes int64, d time.Duration, err error) {
	m.log.LogPersist(family, bytes, d, err)
	m.next.RecordPersist(family, bytes, d, err)
}

func (m loggingMetrics) RecordRestore(family string, d time.Duration, err error) {
	m.log.LogRestore(family, d, err)
	m.next.RecordRestore(family, d, err)
}
