package silo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// server.PrometheusCollector is such an implementation.
type MetricsCollector interface {
	// RecordQuery is called after each query. action is the action type,
	// or empty when the request was rejected before it was parsed.
	RecordQuery(action string, duration time.Duration, rows int, err error)

	// RecordSnapshotSwap is called whenever a snapshot becomes active.
	RecordSnapshotSwap(dataVersion string, partitions int)

	// RecordRejected is called when admission control turns a query away.
	RecordRejected()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(string, time.Duration, int, error) {}
func (NoopMetricsCollector) RecordSnapshotSwap(string, int)                {}
func (NoopMetricsCollector) RecordRejected()                               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	RowsReturned    atomic.Int64
	SnapshotSwaps   atomic.Int64
	Partitions      atomic.Int64
	Rejected        atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ string, duration time.Duration, rows int, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.RowsReturned.Add(int64(rows))
}

// RecordSnapshotSwap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotSwap(_ string, partitions int) {
	b.SnapshotSwaps.Add(1)
	b.Partitions.Store(int64(partitions))
}

// RecordRejected implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRejected() {
	b.Rejected.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QueryCount:    b.QueryCount.Load(),
		QueryErrors:   b.QueryErrors.Load(),
		QueryAvgNanos: b.getAvgQueryNanos(),
		RowsReturned:  b.RowsReturned.Load(),
		SnapshotSwaps: b.SnapshotSwaps.Load(),
		Partitions:    b.Partitions.Load(),
		RejectedCount: b.Rejected.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount    int64
	QueryErrors   int64
	QueryAvgNanos int64
	RowsReturned  int64
	SnapshotSwaps int64
	Partitions    int64
	RejectedCount int64
}
